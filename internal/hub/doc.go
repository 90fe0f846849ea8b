// Package hub terminates the per-device WebSocket control channel for
// Fleet Core.
//
// Each display holds one persistent connection through which the server
// pushes commands and the device reports state and acks. The hub owns
// the connection table, the hello/auth handshake, and command/ack
// correlation.
//
// # Wire Protocol
//
// JSON text frames, one message per frame:
//
//	device→hub  hello      {deviceId, deviceSecret}
//	hub→device  hello-ack
//	hub→device  command    {id?, type, payload}
//	device→hub  ack        {id, status, info?}
//	device→hub  ping
//	hub→device  pong
//	device→hub  state      {state}
//
// The first frame must be a hello; anything else closes the socket with
// policy-violation code 1008. Auth verifier failures close with 1011.
//
// # Guarantees
//
//   - At most one live connection per device: a second handshake for the
//     same ID tears the first connection down (rejecting its pending
//     acks) before the new one activates.
//   - SendCommand fails with exactly one of ErrNotConnected,
//     ErrAckTimeout, or ErrSocketClosed; internal state (timers, pending
//     map) is consistent on every path.
//   - Awaited-command timeouts are floored at MinAckTimeout.
//   - Transport write and close errors are absorbed and logged; the hub
//     never panics out of a connection handler.
//
// # Usage
//
//	h := hub.New(cfg.WebSocket, verify, hub.Callbacks{
//	    OnConnect:    markOnline,
//	    OnDisconnect: markOffline,
//	    OnState:      mergeState,
//	}, log)
//	router.Get(cfg.WebSocket.Path, h.HandleConnection)
//
//	res, err := h.SendCommand(ctx, "lobby-01", "playback.pause", nil, 0)
package hub
