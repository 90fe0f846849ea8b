package telemetry

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteDeviceStatus records an online/offline transition for a device.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - deviceID: Unique identifier for the device (e.g., "lobby-01")
//   - online: Whether the device transitioned to online
func (c *Client) WriteDeviceStatus(deviceID string, online bool) {
	if !c.IsConnected() {
		return
	}

	status := 0.0
	if online {
		status = 1.0
	}

	point := write.NewPoint(
		"device_status",
		map[string]string{
			"device_id": deviceID,
		},
		map[string]interface{}{
			"online": status,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteCommand records a command executed against a device.
//
// Parameters:
//   - deviceID: Device identifier, or "broadcast" for fleet-wide commands
//   - capability: Dotted capability id (e.g., "playback.pause")
//   - source: Where the command originated ("mqtt", "api")
func (c *Client) WriteCommand(deviceID, capability, source string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"commands",
		map[string]string{
			"device_id":  deviceID,
			"capability": capability,
			"source":     source,
		},
		map[string]interface{}{
			"count": 1,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteFleetStats records aggregate fleet health counters.
//
// Parameters:
//   - connected: Number of devices with a live WebSocket connection
//   - total: Number of registered devices
func (c *Client) WriteFleetStats(connected, total int) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"fleet_stats",
		nil,
		map[string]interface{}{
			"connected": connected,
			"total":     total,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
