package hub

import "errors"

// Failure kinds surfaced to callers of SendCommand. All other transport
// errors are absorbed at the point of occurrence.
var (
	// ErrNotConnected is returned when the target device has no live
	// connection at call time.
	ErrNotConnected = errors.New("hub: device not connected")

	// ErrAckTimeout is returned when the device does not acknowledge a
	// command before the deadline.
	ErrAckTimeout = errors.New("hub: ack timeout")

	// ErrSocketClosed is returned when the connection drops (or is
	// superseded) while a command is awaiting its ack.
	ErrSocketClosed = errors.New("hub: socket closed")
)
