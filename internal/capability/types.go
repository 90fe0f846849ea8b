package capability

import (
	"context"
	"strings"

	"github.com/posterrama/fleet-core/internal/device"
)

// ID is a dotted capability identifier, e.g. "playback.pause" or
// "settings.wallartMode.density". IDs never contain underscores so the
// MQTT topic form (dots transported as underscores) stays reversible.
type ID string

// Slug returns the topic-safe form of the ID with dots as underscores.
func (id ID) Slug() string {
	return strings.ReplaceAll(string(id), ".", "_")
}

// ParseSlug converts a topic segment back to a capability ID.
func ParseSlug(slug string) ID {
	return ID(strings.ReplaceAll(slug, "_", "."))
}

// EntityType classifies how a third-party console should render a capability.
type EntityType string

// Entity types.
const (
	EntityButton EntityType = "button"
	EntitySwitch EntityType = "switch"
	EntitySelect EntityType = "select"
	EntityNumber EntityType = "number"
	EntityText   EntityType = "text"
	EntitySensor EntityType = "sensor"
	EntityCamera EntityType = "camera"
)

// HandlerFunc executes a capability command for a device. The value is the
// decoded command payload (string, bool, float64, or map) and may be nil
// for parameterless capabilities such as buttons.
type HandlerFunc func(ctx context.Context, deviceID string, value any) error

// StateFunc projects a reportable scalar from device state.
type StateFunc func(d *device.Device) any

// AvailableFunc reports whether a capability currently applies to a device.
type AvailableFunc func(d *device.Device) bool

// Definition describes one controllable or observable facet of a device.
// Definitions are immutable after registration.
type Definition struct {
	ID         ID
	Name       string
	Icon       string
	EntityType EntityType

	// AvailableWhen gates discovery publication. Nil means always available.
	AvailableWhen AvailableFunc

	// Handle executes inbound commands. Nil for read-only entities
	// (sensors, camera).
	Handle HandlerFunc

	// State projects the current reportable value. Nil when the
	// capability has no state (buttons).
	State StateFunc

	// StateField names the key in the published device state document
	// that carries this capability's value, for consumers that template
	// values out of the state topic. Empty for stateless entities.
	StateField string

	// Select metadata.
	Options []string

	// Number metadata.
	Min  float64
	Max  float64
	Step float64

	// Unit is the unit of measurement for numbers and sensors, if any.
	Unit string
}

// Available reports whether the capability applies to the device,
// treating a nil predicate as always-available.
func (def *Definition) Available(d *device.Device) bool {
	if def.AvailableWhen == nil {
		return true
	}
	return def.AvailableWhen(d)
}
