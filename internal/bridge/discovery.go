package bridge

import (
	"encoding/json"
	"fmt"

	"github.com/posterrama/fleet-core/internal/capability"
	"github.com/posterrama/fleet-core/internal/device"
)

// discoveryOp is one pending retained publish. A nil payload retracts.
type discoveryOp struct {
	topic   string
	payload []byte
}

// publishDiscovery reconciles the retained discovery configs for one
// device against the capabilities currently available to it. With force
// set, every published config is retracted and republished, which
// consoles need to pick up changed entity metadata after a mode switch.
func (b *Bridge) publishDiscovery(d *device.Device, force bool) {
	if !b.cfg.Bridge.Discovery.Enabled {
		return
	}

	defs := b.caps.All()

	b.cacheMu.Lock()
	published := b.discovered[d.ID]
	if published == nil {
		published = make(map[capability.ID]bool)
		b.discovered[d.ID] = published
	}

	var ops []discoveryOp
	for _, def := range defs {
		topic := b.topics.Discovery(string(def.EntityType), d.ID, def.ID.Slug())
		want := def.Available(d)
		have, seen := published[def.ID]

		if force {
			if have {
				ops = append(ops, discoveryOp{topic: topic})
			}
			if want {
				ops = append(ops, discoveryOp{topic: topic, payload: b.discoveryPayload(d, def)})
			}
			published[def.ID] = want
			continue
		}

		switch {
		case want && !have:
			ops = append(ops, discoveryOp{topic: topic, payload: b.discoveryPayload(d, def)})
			published[def.ID] = true
		case !want && (have || !seen):
			// Also retract never-seen entries once, to clear retained
			// configs left over from an earlier run.
			ops = append(ops, discoveryOp{topic: topic})
			published[def.ID] = false
		}
	}
	b.cacheMu.Unlock()

	for _, op := range ops {
		if err := b.client.Publish(op.topic, op.payload, 1, true); err != nil {
			b.publishErrors.Add(1)
			b.logger.Warn("discovery publish failed", "device_id", d.ID, "topic", op.topic, "error", err)
			continue
		}
		if op.payload != nil {
			b.discoveryPublishes.Add(1)
		}
	}
}

// retractDevice clears every retained topic for a removed device and
// drops its caches.
func (b *Bridge) retractDevice(deviceID string) {
	b.cacheMu.Lock()
	delete(b.discovered, deviceID)
	delete(b.lastState, deviceID)
	delete(b.lastMode, deviceID)
	delete(b.lastAvail, deviceID)
	b.cacheMu.Unlock()

	if b.cfg.Bridge.Discovery.Enabled {
		for _, def := range b.caps.All() {
			topic := b.topics.Discovery(string(def.EntityType), deviceID, def.ID.Slug())
			if err := b.client.Publish(topic, nil, 1, true); err != nil {
				b.publishErrors.Add(1)
				b.logger.Warn("discovery retract failed", "device_id", deviceID, "topic", topic, "error", err)
			}
		}
	}
	if b.cfg.Bridge.Availability.Enabled {
		if err := b.client.Publish(b.topics.DeviceAvailability(deviceID), nil, 1, true); err != nil {
			b.publishErrors.Add(1)
			b.logger.Warn("availability retract failed", "device_id", deviceID, "error", err)
		}
	}

	b.logger.Info("device removed, retained topics cleared", "device_id", deviceID)
}

// discoveryPayload builds the retained config document for one
// device/capability pair, following the Home Assistant MQTT discovery
// schema. Entity types map one-to-one onto discovery components.
func (b *Bridge) discoveryPayload(d *device.Device, def *capability.Definition) []byte {
	uniqueID := fmt.Sprintf("%s_%s_%s", b.topics.Prefix(), d.ID, def.ID.Slug())

	deviceBlock := map[string]any{
		"identifiers":  []string{b.topics.Prefix() + "_" + d.ID},
		"name":         d.Name,
		"manufacturer": "Posterrama",
		"model":        "Display",
	}
	if d.Location != "" {
		deviceBlock["suggested_area"] = d.Location
	}

	payload := map[string]any{
		"name":      def.Name,
		"unique_id": uniqueID,
		"object_id": uniqueID,
		"device":    deviceBlock,
	}
	if def.Icon != "" {
		payload["icon"] = def.Icon
	}
	if b.cfg.Bridge.Availability.Enabled {
		payload["availability_topic"] = b.topics.DeviceAvailability(d.ID)
	}

	cmdTopic := b.topics.DeviceCommand(d.ID, def.ID.Slug())
	stateTopic := b.topics.DeviceState(d.ID)

	switch def.EntityType {
	case capability.EntityButton:
		payload["command_topic"] = cmdTopic
		payload["payload_press"] = "PRESS"

	case capability.EntitySwitch:
		payload["command_topic"] = cmdTopic
		payload["payload_on"] = "ON"
		payload["payload_off"] = "OFF"
		if def.StateField != "" {
			payload["state_topic"] = stateTopic
			payload["value_template"] = fmt.Sprintf("{{ 'ON' if value_json.%s else 'OFF' }}", def.StateField)
		} else {
			payload["optimistic"] = true
		}

	case capability.EntitySelect:
		payload["command_topic"] = cmdTopic
		payload["options"] = def.Options
		if def.StateField != "" {
			payload["state_topic"] = stateTopic
			payload["value_template"] = fmt.Sprintf("{{ value_json.%s }}", def.StateField)
		} else {
			payload["optimistic"] = true
		}

	case capability.EntityNumber:
		payload["command_topic"] = cmdTopic
		payload["min"] = def.Min
		payload["max"] = def.Max
		payload["step"] = def.Step
		if def.Unit != "" {
			payload["unit_of_measurement"] = def.Unit
		}
		if def.StateField != "" {
			payload["state_topic"] = stateTopic
			payload["value_template"] = fmt.Sprintf("{{ value_json.%s }}", def.StateField)
		} else {
			payload["optimistic"] = true
		}

	case capability.EntityText:
		payload["command_topic"] = cmdTopic
		if def.StateField != "" {
			payload["state_topic"] = stateTopic
			payload["value_template"] = fmt.Sprintf("{{ value_json.%s }}", def.StateField)
		}

	case capability.EntitySensor:
		payload["state_topic"] = stateTopic
		if def.StateField != "" {
			payload["value_template"] = fmt.Sprintf("{{ value_json.%s }}", def.StateField)
		}
		if def.Unit != "" {
			payload["unit_of_measurement"] = def.Unit
		}

	case capability.EntityCamera:
		payload["topic"] = b.topics.DeviceCamera(d.ID)
		payload["image_encoding"] = "b64"
	}

	data, _ := json.Marshal(payload) //nolint:errcheck // map of plain values cannot fail
	return data
}
