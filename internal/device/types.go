package device

import "time"

// Device represents a signage display registered with the fleet.
// This matches the database schema in migrations/20260815_100000_create_devices.up.sql.
type Device struct {
	// Identity
	ID       string `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location"`

	// SecretHash is the SHA-256 hex digest of the device secret used for
	// WebSocket authentication. Never serialised to clients.
	SecretHash string `json:"-"`

	// Status is the last derived connectivity status.
	Status Status `json:"status"`

	// CurrentState is the device-reported state document.
	// Well-known keys: mode, paused, pinned, poweredOff, mediaId,
	// posterUrl, nowPlaying.
	CurrentState State `json:"currentState"`

	// SettingsOverride holds per-device setting overrides pushed from the
	// admin layer (e.g. wallart density, transition interval).
	SettingsOverride Settings `json:"settingsOverride"`

	// LastSeenAt is the time of the last heartbeat or WebSocket activity.
	LastSeenAt *time.Time `json:"lastSeenAt,omitempty"`

	// Timestamps
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// State holds the device-reported state as a JSON map.
//
// Example:
//
//	{"mode": "wallart", "paused": false, "pinned": true,
//	 "mediaId": "tt0133093", "posterUrl": "/images/matrix.jpg"}
type State map[string]any

// Settings holds per-device setting overrides as a JSON map.
type Settings map[string]any

// Status represents the derived connectivity status of a device.
type Status string

// Status constants.
const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
	StatusUnknown Status = "unknown"
)

// AllStatuses returns all valid status values.
func AllStatuses() []Status {
	return []Status{StatusOnline, StatusOffline, StatusUnknown}
}

// DeepCopy creates a complete independent copy of the Device.
// All map fields are cloned so modifications to the copy do not affect
// the original. This is essential for cache isolation.
func (d *Device) DeepCopy() *Device {
	if d == nil {
		return nil
	}

	cpy := *d // Shallow copy of value fields

	// Deep copy maps
	cpy.CurrentState = deepCopyMap(d.CurrentState)
	cpy.SettingsOverride = deepCopyMap(d.SettingsOverride)

	if d.LastSeenAt != nil {
		t := *d.LastSeenAt
		cpy.LastSeenAt = &t
	}

	return &cpy
}

// deepCopyMap creates a deep copy of a map[string]any.
// Nested maps and slices are recursively copied.
func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cpy := make(map[string]any, len(m))
	for k, v := range m {
		cpy[k] = deepCopyValue(v)
	}
	return cpy
}

// deepCopyValue recursively copies a value, handling nested maps and slices.
func deepCopyValue(v any) any {
	if v == nil {
		return nil
	}
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		cpy := make([]any, len(val))
		for i, elem := range val {
			cpy[i] = deepCopyValue(elem)
		}
		return cpy
	default:
		// Primitives (string, bool, int, float64, etc.) are safe to copy by value
		return v
	}
}

// Display mode values reported by devices.
const (
	ModeScreensaver = "screensaver"
	ModeWallart     = "wallart"
	ModeCinema      = "cinema"
)

// AllModes returns the valid display mode values.
func AllModes() []string {
	return []string{ModeScreensaver, ModeWallart, ModeCinema}
}

// Mode returns the current display mode, or empty string if unreported.
func (d *Device) Mode() string {
	if d == nil || d.CurrentState == nil {
		return ""
	}
	if m, ok := d.CurrentState["mode"].(string); ok {
		return m
	}
	return ""
}

// Paused reports whether playback is currently paused.
func (d *Device) Paused() bool {
	return d.stateBool("paused")
}

// Pinned reports whether the current poster is pinned.
func (d *Device) Pinned() bool {
	return d.stateBool("pinned")
}

// PoweredOff reports whether the display is blanked.
func (d *Device) PoweredOff() bool {
	return d.stateBool("poweredOff")
}

// MediaID returns the id of the currently displayed media, if any.
func (d *Device) MediaID() string {
	return d.stateString("mediaId")
}

// PosterURL returns the poster image URL reported by the device.
// May be relative to the server base URL.
func (d *Device) PosterURL() string {
	return d.stateString("posterUrl")
}

// NowPlaying returns the human-readable now-playing title, if any.
func (d *Device) NowPlaying() string {
	return d.stateString("nowPlaying")
}

func (d *Device) stateBool(key string) bool {
	if d == nil || d.CurrentState == nil {
		return false
	}
	v, _ := d.CurrentState[key].(bool)
	return v
}

func (d *Device) stateString(key string) string {
	if d == nil || d.CurrentState == nil {
		return ""
	}
	v, _ := d.CurrentState[key].(string)
	return v
}

// EffectiveStatus derives connectivity from the last-seen timestamp.
// A device is online if it was seen within the timeout window.
// Devices never seen are unknown.
func (d *Device) EffectiveStatus(timeout time.Duration, now time.Time) Status {
	if d == nil || d.LastSeenAt == nil {
		return StatusUnknown
	}
	if now.Sub(*d.LastSeenAt) <= timeout {
		return StatusOnline
	}
	return StatusOffline
}

// Online reports whether the device counts as online for the given timeout.
func (d *Device) Online(timeout time.Duration, now time.Time) bool {
	return d.EffectiveStatus(timeout, now) == StatusOnline
}
