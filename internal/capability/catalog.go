package capability

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/posterrama/fleet-core/internal/device"
)

// catalog builds the built-in capability definitions wired to deps.
//
// Handlers follow a common shape: patch the device store so the desired
// state survives a device restart, then push the command over the live
// socket best-effort. A disconnected device picks the change up from its
// settings on reconnect.
func catalog(deps Deps) []Definition {
	c := catalogDeps{deps}

	return []Definition{
		{
			ID:         "playback.pause",
			Name:       "Pause",
			Icon:       "mdi:pause",
			EntityType: EntityButton,
			Handle:     c.pushOnly("playback.pause"),
		},
		{
			ID:         "playback.resume",
			Name:       "Resume",
			Icon:       "mdi:play",
			EntityType: EntityButton,
			Handle:     c.pushOnly("playback.resume"),
		},
		{
			ID:         "playback.next",
			Name:       "Next Poster",
			Icon:       "mdi:skip-next",
			EntityType: EntityButton,
			Handle:     c.pushOnly("playback.next"),
		},
		{
			ID:         "playback.paused",
			Name:       "Paused",
			Icon:       "mdi:pause-circle",
			EntityType: EntitySwitch,
			State:      func(d *device.Device) any { return d.Paused() },
			StateField: "paused",
			Handle:     c.stateSwitch("paused"),
		},
		{
			ID:         "poster.pin",
			Name:       "Pin Poster",
			Icon:       "mdi:pin",
			EntityType: EntitySwitch,
			State:      func(d *device.Device) any { return d.Pinned() },
			StateField: "pinned",
			Handle:     c.stateSwitch("pinned"),
		},
		{
			ID:         "power.off",
			Name:       "Display Off",
			Icon:       "mdi:power",
			EntityType: EntitySwitch,
			State:      func(d *device.Device) any { return d.PoweredOff() },
			StateField: "poweredOff",
			Handle:     c.stateSwitch("poweredOff"),
		},
		{
			ID:         "display.mode",
			Name:       "Display Mode",
			Icon:       "mdi:monitor",
			EntityType: EntitySelect,
			Options:    device.AllModes(),
			State:      func(d *device.Device) any { return d.Mode() },
			StateField: "mode",
			Handle:     c.modeSelect(),
		},
		{
			ID:         "settings.wallartMode.density",
			Name:       "Wallart Density",
			Icon:       "mdi:view-grid",
			EntityType: EntitySelect,
			Options:    []string{"low", "medium", "high"},
			AvailableWhen: func(d *device.Device) bool {
				return d.Mode() == device.ModeWallart
			},
			State: func(d *device.Device) any {
				if v, ok := d.SettingsOverride["wallart.density"].(string); ok {
					return v
				}
				return "medium"
			},
			Handle: c.settingSelect("wallart.density", []string{"low", "medium", "high"}),
		},
		{
			ID:         "settings.transition.interval",
			Name:       "Transition Interval",
			Icon:       "mdi:timer-outline",
			EntityType: EntityNumber,
			Min:        5,
			Max:        300,
			Step:       5,
			Unit:       "s",
			AvailableWhen: func(d *device.Device) bool {
				return d.Mode() != device.ModeCinema
			},
			State: func(d *device.Device) any {
				if v, ok := d.SettingsOverride["transition.interval"].(float64); ok {
					return v
				}
				return 15.0
			},
			Handle: c.settingNumber("transition.interval", 5, 300),
		},
		{
			ID:         "device.name",
			Name:       "Device Name",
			Icon:       "mdi:rename",
			EntityType: EntityText,
			State:      func(d *device.Device) any { return d.Name },
			StateField: "name",
			Handle:     c.renameText(),
		},
		{
			ID:         "status.nowPlaying",
			Name:       "Now Playing",
			Icon:       "mdi:movie-open",
			EntityType: EntitySensor,
			State:      func(d *device.Device) any { return d.NowPlaying() },
			StateField: "nowPlaying",
		},
		{
			ID:         "status.connection",
			Name:       "Connection",
			Icon:       "mdi:lan-connect",
			EntityType: EntitySensor,
			State:      func(d *device.Device) any { return string(d.Status) },
			StateField: "status",
		},
		{
			ID:         "camera.preview",
			Name:       "Screen Preview",
			Icon:       "mdi:camera",
			EntityType: EntityCamera,
		},
	}
}

type catalogDeps struct {
	Deps
}

// push delivers a command over the live socket, best-effort.
func (c catalogDeps) push(deviceID string, cmdType string, payload map[string]any) {
	cmd := map[string]any{"type": cmdType}
	if payload != nil {
		cmd["payload"] = payload
	}
	if !c.Commander.SendToDevice(deviceID, cmd) {
		c.Logger.Warn("command not delivered, device offline",
			"device_id", deviceID, "type", cmdType)
	}
}

// pushOnly builds a handler for stateless buttons.
func (c catalogDeps) pushOnly(cmdType string) HandlerFunc {
	return func(ctx context.Context, deviceID string, value any) error {
		c.push(deviceID, cmdType, nil)
		return nil
	}
}

// stateSwitch builds a handler that patches a boolean state key and pushes
// the change to the device.
func (c catalogDeps) stateSwitch(stateKey string) HandlerFunc {
	cmdType := "state." + stateKey
	return func(ctx context.Context, deviceID string, value any) error {
		on, err := asBool(value)
		if err != nil {
			return err
		}
		if err := c.Store.SetDeviceState(ctx, deviceID, device.State{stateKey: on}); err != nil {
			return fmt.Errorf("patching %s: %w", stateKey, err)
		}
		c.push(deviceID, cmdType, map[string]any{stateKey: on})
		return nil
	}
}

// modeSelect builds the display-mode handler.
func (c catalogDeps) modeSelect() HandlerFunc {
	return func(ctx context.Context, deviceID string, value any) error {
		mode, err := asOption(value, device.AllModes())
		if err != nil {
			return err
		}
		if err := c.Store.SetDeviceState(ctx, deviceID, device.State{"mode": mode}); err != nil {
			return fmt.Errorf("patching mode: %w", err)
		}
		c.push(deviceID, "display.mode", map[string]any{"mode": mode})
		return nil
	}
}

// settingSelect builds a handler that stores a select-type setting override.
func (c catalogDeps) settingSelect(key string, options []string) HandlerFunc {
	return func(ctx context.Context, deviceID string, value any) error {
		opt, err := asOption(value, options)
		if err != nil {
			return err
		}
		if err := c.Store.SetDeviceSettings(ctx, deviceID, device.Settings{key: opt}); err != nil {
			return fmt.Errorf("patching setting %s: %w", key, err)
		}
		c.push(deviceID, "settings.update", map[string]any{key: opt})
		return nil
	}
}

// settingNumber builds a handler that stores a numeric setting override.
func (c catalogDeps) settingNumber(key string, min, max float64) HandlerFunc {
	return func(ctx context.Context, deviceID string, value any) error {
		n, err := asFloat(value)
		if err != nil {
			return err
		}
		if n < min || n > max {
			return fmt.Errorf("%w: %v outside [%v, %v]", ErrInvalidValue, n, min, max)
		}
		if err := c.Store.SetDeviceSettings(ctx, deviceID, device.Settings{key: n}); err != nil {
			return fmt.Errorf("patching setting %s: %w", key, err)
		}
		c.push(deviceID, "settings.update", map[string]any{key: n})
		return nil
	}
}

// renameText builds the device-rename handler.
func (c catalogDeps) renameText() HandlerFunc {
	return func(ctx context.Context, deviceID string, value any) error {
		name, err := asString(value)
		if err != nil {
			return err
		}
		d, err := c.Store.GetDevice(ctx, deviceID)
		if err != nil {
			return err
		}
		d.Name = name
		if err := c.Store.UpdateDevice(ctx, d); err != nil {
			return err
		}
		c.push(deviceID, "device.rename", map[string]any{"name": name})
		return nil
	}
}

// asBool coerces a command value to bool. Accepts JSON booleans plus the
// ON/OFF strings a Home Assistant switch publishes.
func asBool(v any) (bool, error) {
	switch val := v.(type) {
	case bool:
		return val, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "on", "true", "1":
			return true, nil
		case "off", "false", "0":
			return false, nil
		}
	}
	return false, fmt.Errorf("%w: expected boolean, got %T", ErrInvalidValue, v)
}

// asString coerces a command value to a non-empty string.
func asString(v any) (string, error) {
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("%w: expected non-empty string, got %T", ErrInvalidValue, v)
	}
	return strings.TrimSpace(s), nil
}

// asFloat coerces a command value to float64. JSON numbers decode as
// float64; numeric strings from select/number topics are parsed.
func asFloat(v any) (float64, error) {
	switch val := v.(type) {
	case float64:
		return val, nil
	case int:
		return float64(val), nil
	case string:
		if n, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return n, nil
		}
	}
	return 0, fmt.Errorf("%w: expected number, got %T", ErrInvalidValue, v)
}

// asOption coerces a command value to one of the allowed options.
func asOption(v any, options []string) (string, error) {
	s, err := asString(v)
	if err != nil {
		return "", err
	}
	for _, opt := range options {
		if s == opt {
			return s, nil
		}
	}
	return "", fmt.Errorf("%w: %q not in %v", ErrInvalidValue, s, options)
}
