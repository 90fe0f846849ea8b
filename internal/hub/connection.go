package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ackOutcome carries the resolution of an awaited command.
type ackOutcome struct {
	result AckResult
	err    error
}

// pendingCommand tracks one awaited command. The channel is buffered so
// resolution never blocks the resolver.
type pendingCommand struct {
	ch    chan ackOutcome
	timer *time.Timer
}

// Connection is one live, authenticated device socket. Unauthenticated
// sockets never become a Connection in the hub's table; the handshake
// runs before registration.
type Connection struct {
	hub      *Hub
	deviceID string
	conn     *websocket.Conn
	send     chan []byte

	pending map[string]*pendingCommand
	closed  bool
	// Lock ordering: never take hub.mu while holding mu.
	mu sync.Mutex
}

// readPump runs the handshake and then the authenticated read loop.
// It owns connection teardown on every exit path.
func (c *Connection) readPump(ctx context.Context) {
	defer func() {
		c.hub.unregister(c)
		c.teardown()
	}()

	cfg := c.hub.cfg
	c.conn.SetReadLimit(int64(cfg.MaxMessageSize))

	if !c.handshake(ctx) {
		return
	}

	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	pongWait := time.Duration(cfg.PongTimeout) * time.Second
	_ = c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read error", "device_id", c.deviceID, "error", err)
			} else {
				c.hub.logger.Debug("websocket closed", "device_id", c.deviceID, "error", err)
			}
			return
		}
		// Any inbound frame keeps the connection alive.
		_ = c.conn.SetReadDeadline(time.Now().Add(pingInterval + pongWait))
		c.handleMessage(data)
	}
}

// handshake enforces the hello/auth state machine. Returns true when the
// connection is authenticated and registered.
func (c *Connection) handshake(ctx context.Context) bool {
	authWait := time.Duration(c.hub.cfg.AuthTimeout) * time.Second
	_ = c.conn.SetReadDeadline(time.Now().Add(authWait))

	_, data, err := c.conn.ReadMessage()
	if err != nil {
		c.hub.logger.Debug("closed before hello", "error", err)
		return false
	}

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil || msg.Kind != KindHello {
		c.closeWith(websocket.ClosePolicyViolation, ReasonAuthFirst)
		return false
	}
	if msg.DeviceID == "" || msg.DeviceSecret == "" {
		c.closeWith(websocket.ClosePolicyViolation, ReasonMissingCredentials)
		return false
	}

	ok, err := c.hub.verify(ctx, msg.DeviceID, msg.DeviceSecret)
	if err != nil {
		c.hub.logger.Error("device auth check failed", "device_id", msg.DeviceID, "error", err)
		c.closeWith(websocket.CloseInternalServerErr, ReasonAuthError)
		return false
	}
	if !ok {
		c.hub.logger.Warn("device auth rejected", "device_id", msg.DeviceID)
		c.closeWith(websocket.ClosePolicyViolation, ReasonUnauthorized)
		return false
	}

	c.deviceID = msg.DeviceID
	if !c.hub.register(c) {
		// Hub shutting down.
		return false
	}

	c.sendMessage(Message{Kind: KindHelloAck})
	return true
}

// handleMessage processes one authenticated inbound frame. Malformed
// payloads are dropped without error.
func (c *Connection) handleMessage(data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		c.hub.logger.Debug("dropping malformed frame", "device_id", c.deviceID)
		return
	}

	c.hub.fire(c.hub.callbacks.OnActivity, c.deviceID)

	switch msg.Kind {
	case KindPing:
		c.sendMessage(Message{Kind: KindPong})
	case KindAck:
		c.resolvePending(msg.ID, AckResult{Status: msg.Status, Info: msg.Info}, nil)
	case KindState:
		if msg.State != nil {
			c.hub.fireState(c.deviceID, msg.State)
		}
	default:
		c.hub.logger.Debug("dropping unknown frame kind", "device_id", c.deviceID, "kind", msg.Kind)
	}
}

// sendCommandAwait allocates a correlation id, registers a pending entry
// with a deadline timer, and sends the command frame. It resolves on a
// matching ack, the deadline, connection teardown, or context cancel.
func (c *Connection) sendCommandAwait(ctx context.Context, cmdType string, payload map[string]any, timeout time.Duration) (AckResult, error) {
	id := uuid.NewString()
	pc := &pendingCommand{ch: make(chan ackOutcome, 1)}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return AckResult{}, ErrSocketClosed
	}
	c.pending[id] = pc
	pc.timer = time.AfterFunc(timeout, func() {
		c.resolvePending(id, AckResult{}, ErrAckTimeout)
	})
	c.mu.Unlock()

	msg := Message{Kind: KindCommand, ID: id, Type: cmdType, Payload: payload}
	data, err := json.Marshal(msg)
	if err != nil {
		c.resolvePending(id, AckResult{}, err)
		return AckResult{}, err
	}
	if !c.trySend(data) {
		c.resolvePending(id, AckResult{}, ErrSocketClosed)
	}

	select {
	case out := <-pc.ch:
		return out.result, out.err
	case <-ctx.Done():
		c.resolvePending(id, AckResult{}, ctx.Err())
		// The resolver may have raced with an ack; prefer whatever won.
		out := <-pc.ch
		return out.result, out.err
	}
}

// resolvePending completes an awaited command exactly once. Unknown or
// already-resolved ids are silently ignored; timer stop failures are
// harmless because resolution is gated on the map entry.
func (c *Connection) resolvePending(id string, result AckResult, err error) {
	c.mu.Lock()
	pc, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()

	if !ok {
		return
	}
	if pc.timer != nil {
		pc.timer.Stop()
	}
	pc.ch <- ackOutcome{result: result, err: err}
}

// teardown closes the socket and rejects every outstanding pending ack
// with ErrSocketClosed. Idempotent.
func (c *Connection) teardown() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	orphans := c.pending
	c.pending = make(map[string]*pendingCommand)
	close(c.send)
	c.mu.Unlock()

	_ = c.conn.Close()

	for _, pc := range orphans {
		if pc.timer != nil {
			pc.timer.Stop()
		}
		pc.ch <- ackOutcome{err: ErrSocketClosed}
	}
}

// trySend enqueues a frame for the write pump. Returns false when the
// connection is closed or the buffer is full (slow device).
func (c *Connection) trySend(data []byte) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()

	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// sendMessage marshals and enqueues a frame, best-effort.
func (c *Connection) sendMessage(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.trySend(data)
}

// closeWith sends a close frame with a code and reason, then closes.
// Write failures are swallowed; the socket is closed regardless.
func (c *Connection) closeWith(code int, reason string) {
	deadline := time.Now().Add(time.Second)
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(code, reason), deadline)
}

// writePump drains the send channel onto the socket and emits periodic
// protocol-level pings. Exits when the channel closes or a write fails.
func (c *Connection) writePump() {
	cfg := c.hub.cfg
	pingInterval := time.Duration(cfg.PingInterval) * time.Second
	writeWait := time.Duration(cfg.PongTimeout) * time.Second

	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
