package mqtt

import "fmt"

// Default topic prefixes. Both are overridable via config; the defaults
// match what existing dashboard integrations subscribe to.
const (
	// DefaultTopicPrefix is the root of the fleet topic namespace.
	DefaultTopicPrefix = "posterrama"

	// DefaultDiscoveryPrefix is the root of the retained discovery namespace,
	// following the Home Assistant discovery convention.
	DefaultDiscoveryPrefix = "homeassistant"
)

// Topics provides builders for fleet MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.NewTopics("posterrama", "homeassistant")
//	stateTopic := topics.DeviceState("lobby-01")
//	// Returns: "posterrama/device/lobby-01/state"
type Topics struct {
	prefix          string
	discoveryPrefix string
}

// NewTopics creates a topic builder with the given prefixes.
// Empty prefixes fall back to the defaults.
func NewTopics(prefix, discoveryPrefix string) Topics {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	if discoveryPrefix == "" {
		discoveryPrefix = DefaultDiscoveryPrefix
	}
	return Topics{prefix: prefix, discoveryPrefix: discoveryPrefix}
}

// Prefix returns the configured fleet topic prefix.
func (t Topics) Prefix() string {
	return t.prefix
}

// DeviceCommand returns the inbound command topic for one device capability.
// The capability segment is the underscore slug, not the dotted id.
//
// Example: posterrama/device/lobby-01/command/playback_pause
func (t Topics) DeviceCommand(deviceID, capSlug string) string {
	return fmt.Sprintf("%s/device/%s/command/%s", t.prefix, deviceID, capSlug)
}

// DeviceCommandPattern returns a pattern matching all command topics for
// all devices.
//
// Pattern: posterrama/device/+/command/+
func (t Topics) DeviceCommandPattern() string {
	return fmt.Sprintf("%s/device/+/command/+", t.prefix)
}

// BroadcastCommand returns the fleet-wide command topic for one capability.
//
// Example: posterrama/broadcast/command/playback_pause
func (t Topics) BroadcastCommand(capSlug string) string {
	return fmt.Sprintf("%s/broadcast/command/%s", t.prefix, capSlug)
}

// BroadcastCommandPattern returns a pattern matching all broadcast commands.
//
// Pattern: posterrama/broadcast/command/+
func (t Topics) BroadcastCommandPattern() string {
	return fmt.Sprintf("%s/broadcast/command/+", t.prefix)
}

// DeviceState returns the state topic for a device.
// State payloads are published at least once per sweep, non-retained.
//
// Example: posterrama/device/lobby-01/state
func (t Topics) DeviceState(deviceID string) string {
	return fmt.Sprintf("%s/device/%s/state", t.prefix, deviceID)
}

// DeviceAvailability returns the retained availability topic for a device.
//
// Example: posterrama/device/lobby-01/availability
func (t Topics) DeviceAvailability(deviceID string) string {
	return fmt.Sprintf("%s/device/%s/availability", t.prefix, deviceID)
}

// DeviceCamera returns the camera preview topic for a device.
// Payloads are base64-encoded poster images.
//
// Example: posterrama/device/lobby-01/camera
func (t Topics) DeviceCamera(deviceID string) string {
	return fmt.Sprintf("%s/device/%s/camera", t.prefix, deviceID)
}

// ServiceStatus returns the retained bridge status topic, used for the
// broker LWT so subscribers see "offline" if the service dies.
//
// Example: posterrama/bridge/status
func (t Topics) ServiceStatus() string {
	return fmt.Sprintf("%s/bridge/status", t.prefix)
}

// Discovery returns the retained discovery config topic for one capability
// of one device, following the Home Assistant convention:
// {discovery_prefix}/{component}/{node_id}/{object_id}/config
//
// Example: homeassistant/switch/posterrama_lobby-01/playback_pinned/config
func (t Topics) Discovery(component, deviceID, objectID string) string {
	return fmt.Sprintf("%s/%s/%s_%s/%s/config",
		t.discoveryPrefix, component, t.prefix, deviceID, objectID)
}
