package hub

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/posterrama/fleet-core/internal/infrastructure/config"
	"github.com/posterrama/fleet-core/internal/infrastructure/logging"
)

// MinAckTimeout is the floor applied to awaited-command deadlines
// regardless of the caller-requested value, to avoid false-timeout
// storms on slow links.
const MinAckTimeout = 500 * time.Millisecond

// sendBufferSize is the per-connection outbound message buffer size.
const sendBufferSize = 64

// VerifyFunc authenticates a device's hello handshake. It returns
// (false, nil) for bad credentials and a non-nil error when the check
// itself failed (store unavailable, etc.).
type VerifyFunc func(ctx context.Context, deviceID, secret string) (bool, error)

// Callbacks are best-effort side-effect hooks. They run on the
// connection's read goroutine; panics are absorbed and failures never
// affect the connection itself.
type Callbacks struct {
	// OnConnect fires after a successful handshake.
	OnConnect func(deviceID string)

	// OnDisconnect fires after a device's connection closes. It does not
	// fire for a superseded connection; the device stays connected.
	OnDisconnect func(deviceID string)

	// OnState fires when a device reports a state document.
	OnState func(deviceID string, state map[string]any)

	// OnActivity fires on every authenticated inbound message and is
	// the hook for last-seen tracking.
	OnActivity func(deviceID string)
}

// upgrader configures the WebSocket upgrader.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		// Devices connect with bearer-less socket auth; origin is not
		// meaningful for non-browser clients.
		return true
	},
}

// Hub terminates per-device persistent connections, authenticates them,
// and provides command delivery with ack correlation plus fire-and-forget
// broadcast. At most one live connection exists per device ID; a new
// handshake for an already-connected device supersedes the old
// connection, rejecting its pending acks, before the new one activates.
type Hub struct {
	cfg       config.WebSocketConfig
	logger    *logging.Logger
	verify    VerifyFunc
	callbacks Callbacks

	conns  map[string]*Connection
	mu     sync.RWMutex
	closed bool
}

// New creates a hub. The verify callback is required; callbacks may be
// zero-valued.
func New(cfg config.WebSocketConfig, verify VerifyFunc, callbacks Callbacks, logger *logging.Logger) *Hub {
	return &Hub{
		cfg:       cfg,
		logger:    logger,
		verify:    verify,
		callbacks: callbacks,
		conns:     make(map[string]*Connection),
	}
}

// HandleConnection upgrades an HTTP request to a device WebSocket and
// runs the connection until it closes. Intended to be mounted on the
// configured websocket path.
func (h *Hub) HandleConnection(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	c := &Connection{
		hub:     h,
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
		pending: make(map[string]*pendingCommand),
	}

	go c.writePump()
	c.readPump(r.Context())
}

// IsConnected reports whether a device has a live connection.
func (h *Hub) IsConnected(deviceID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.conns[deviceID]
	return ok
}

// ConnectionCount returns the number of live device connections.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

// ConnectedIDs returns the IDs of all currently connected devices.
func (h *Hub) ConnectedIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.conns))
	for id := range h.conns {
		ids = append(ids, id)
	}
	return ids
}

// SendToDevice performs a synchronous best-effort send with no ack
// tracking. Returns false when the device has no live connection or the
// enqueue fails; transport errors are caught and logged, never
// propagated.
func (h *Hub) SendToDevice(deviceID string, command map[string]any) bool {
	h.mu.RLock()
	c := h.conns[deviceID]
	h.mu.RUnlock()

	if c == nil {
		return false
	}

	frame := make(map[string]any, len(command)+1)
	frame["kind"] = KindCommand
	for k, v := range command {
		frame[k] = v
	}

	data, err := json.Marshal(frame)
	if err != nil {
		h.logger.Warn("command marshal failed", "device_id", deviceID, "error", err)
		return false
	}
	return c.trySend(data)
}

// SendCommand delivers a command and awaits the device's ack. The
// timeout is floored at MinAckTimeout; pass zero to use the configured
// default. Fails with ErrNotConnected, ErrAckTimeout, or ErrSocketClosed.
func (h *Hub) SendCommand(ctx context.Context, deviceID, cmdType string, payload map[string]any, timeout time.Duration) (AckResult, error) {
	if timeout <= 0 {
		timeout = time.Duration(h.cfg.AckTimeoutMs) * time.Millisecond
	}
	if timeout < MinAckTimeout {
		timeout = MinAckTimeout
	}

	h.mu.RLock()
	c := h.conns[deviceID]
	h.mu.RUnlock()

	if c == nil {
		return AckResult{}, ErrNotConnected
	}

	return c.sendCommandAwait(ctx, cmdType, payload, timeout)
}

// Broadcast sends a command to every connected device, best-effort.
// Individual send failures are per-device and non-fatal; the returned
// count is the number of devices the command was enqueued for.
func (h *Hub) Broadcast(command map[string]any) int {
	h.mu.RLock()
	conns := make([]*Connection, 0, len(h.conns))
	ids := make([]string, 0, len(h.conns))
	for id, c := range h.conns {
		conns = append(conns, c)
		ids = append(ids, id)
	}
	h.mu.RUnlock()

	frame := make(map[string]any, len(command)+1)
	frame["kind"] = KindCommand
	for k, v := range command {
		frame[k] = v
	}
	data, err := json.Marshal(frame)
	if err != nil {
		h.logger.Warn("broadcast marshal failed", "error", err)
		return 0
	}

	sent := 0
	for i, c := range conns {
		if c.trySend(data) {
			sent++
		} else {
			h.logger.Debug("broadcast skipped device", "device_id", ids[i])
		}
	}
	return sent
}

// Close terminates all connections. Safe to call more than once.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	conns := make([]*Connection, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.conns = make(map[string]*Connection)
	h.mu.Unlock()

	for _, c := range conns {
		c.teardown()
	}
}

// register installs an authenticated connection, superseding any prior
// connection for the same device. The old connection is fully torn down
// (socket closed, pending acks rejected) before the new entry is
// installed so two entries never coexist for one device.
func (h *Hub) register(c *Connection) bool {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return false
	}
	old := h.conns[c.deviceID]
	delete(h.conns, c.deviceID)
	h.mu.Unlock()

	if old != nil {
		h.logger.Info("superseding connection", "device_id", c.deviceID)
		old.teardown()
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return false
	}
	h.conns[c.deviceID] = c
	h.mu.Unlock()

	h.logger.Info("device connected", "device_id", c.deviceID, "connections", h.ConnectionCount())
	h.fire(h.callbacks.OnConnect, c.deviceID)
	return true
}

// unregister removes a connection if it is still the registered one for
// its device. A superseded connection's unregister is a no-op because
// the map already points at its replacement.
func (h *Hub) unregister(c *Connection) {
	h.mu.Lock()
	current, ok := h.conns[c.deviceID]
	if ok && current == c {
		delete(h.conns, c.deviceID)
	} else {
		ok = false
	}
	h.mu.Unlock()

	if ok {
		h.logger.Info("device disconnected", "device_id", c.deviceID, "connections", h.ConnectionCount())
		h.fire(h.callbacks.OnDisconnect, c.deviceID)
	}
}

// fire invokes a notification callback, absorbing panics so side-channel
// failures never crash the hub.
func (h *Hub) fire(fn func(string), deviceID string) {
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("hub callback panicked", "device_id", deviceID, "panic", r)
		}
	}()
	fn(deviceID)
}

// fireState invokes the state callback with panic absorption.
func (h *Hub) fireState(deviceID string, state map[string]any) {
	fn := h.callbacks.OnState
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("hub state callback panicked", "device_id", deviceID, "panic", r)
		}
	}()
	fn(deviceID, state)
}
