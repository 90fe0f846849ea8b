package hub

// Wire message kinds. All frames are JSON text.
const (
	KindHello    = "hello"
	KindHelloAck = "hello-ack"
	KindCommand  = "command"
	KindAck      = "ack"
	KindPing     = "ping"
	KindPong     = "pong"
	KindState    = "state"
)

// Close reasons sent with policy-violation (1008) and internal-error
// (1011) close codes during the handshake.
const (
	ReasonMissingCredentials = "Missing credentials"
	ReasonUnauthorized       = "Unauthorized"
	ReasonAuthError          = "Auth error"
	ReasonAuthFirst          = "Authenticate first"
)

// Message is the single frame shape used in both directions; unused
// fields are omitted per kind.
type Message struct {
	Kind string `json:"kind"`

	// hello
	DeviceID     string `json:"deviceId,omitempty"`
	DeviceSecret string `json:"deviceSecret,omitempty"`

	// command / ack correlation
	ID string `json:"id,omitempty"`

	// command
	Type    string         `json:"type,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`

	// ack
	Status string `json:"status,omitempty"`
	Info   any    `json:"info,omitempty"`

	// state report
	State map[string]any `json:"state,omitempty"`
}

// AckResult is the device's reply to an awaited command.
type AckResult struct {
	Status string `json:"status"`
	Info   any    `json:"info,omitempty"`
}
