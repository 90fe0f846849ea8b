package bridge

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/posterrama/fleet-core/internal/capability"
	"github.com/posterrama/fleet-core/internal/device"
	"github.com/posterrama/fleet-core/internal/infrastructure/config"
	"github.com/posterrama/fleet-core/internal/infrastructure/logging"
	"github.com/posterrama/fleet-core/internal/infrastructure/mqtt"
)

// maxPosterBytes bounds a single preview image read.
const maxPosterBytes = 5 << 20

// MQTTClient is the broker surface the bridge needs. *mqtt.Client
// satisfies it; tests substitute a recorder.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	IsConnected() bool
}

// DeviceSource is the fleet registry surface the bridge needs.
// *device.Registry satisfies it.
type DeviceSource interface {
	ListDevices(ctx context.Context) ([]device.Device, error)
	Subscribe(handler device.EventHandler) func()
}

// Telemetry receives fire-and-forget measurements. Optional;
// *telemetry.Client satisfies it.
type Telemetry interface {
	WriteDeviceStatus(deviceID string, online bool)
	WriteCommand(deviceID, capability, source string)
	WriteFleetStats(connected, total int)
}

// ConnectionCounter reports how many devices hold a live socket.
// Optional; *hub.Hub satisfies it.
type ConnectionCounter interface {
	ConnectionCount() int
}

// Options configures a Bridge. Config, Client, Devices, and
// Capabilities are required.
type Options struct {
	Config       *config.Config
	Topics       mqtt.Topics
	Client       MQTTClient
	Devices      DeviceSource
	Capabilities *capability.Registry
	Hub          ConnectionCounter
	Telemetry    Telemetry
	Logger       *logging.Logger
}

// Metrics is a point-in-time snapshot of bridge counters.
// MessagesReceived counts every inbound command-topic message whether
// or not it routed; CommandsReceived counts executed commands.
type Metrics struct {
	MessagesReceived   uint64 `json:"messages_received"`
	CommandsReceived   uint64 `json:"commands_received"`
	CommandErrors      uint64 `json:"command_errors"`
	StatePublishes     uint64 `json:"state_publishes"`
	DiscoveryPublishes uint64 `json:"discovery_publishes"`
	PublishErrors      uint64 `json:"publish_errors"`
	HistorySize        int    `json:"history_size"`
	Connected          bool   `json:"connected"`
}

// Bridge mirrors the device fleet onto MQTT: it routes inbound command
// topics to capability handlers, publishes deduplicated state and
// retained availability, maintains retained discovery configs, and
// pushes camera preview images.
type Bridge struct {
	cfg    *config.Config
	topics mqtt.Topics
	client MQTTClient
	caps   *capability.Registry

	devices   DeviceSource
	hub       ConnectionCounter
	telemetry Telemetry
	logger    *logging.Logger

	httpClient *http.Client
	history    *commandHistory

	// Publish caches, all keyed by device ID. lastState holds the
	// canonical snapshot JSON, lastAvail the last availability payload,
	// discovered the retained discovery configs currently published
	// per capability.
	cacheMu    sync.Mutex
	lastState  map[string]string
	lastMode   map[string]string
	lastAvail  map[string]string
	discovered map[string]map[capability.ID]bool

	messagesReceived   atomic.Uint64
	commandsReceived   atomic.Uint64
	commandErrors      atomic.Uint64
	statePublishes     atomic.Uint64
	discoveryPublishes atomic.Uint64
	publishErrors      atomic.Uint64

	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe func()
	done        chan struct{}
	wg          sync.WaitGroup
	stopOnce    sync.Once
}

// New creates a bridge. It does not touch the broker until Start.
func New(opts Options) (*Bridge, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("bridge: config is required")
	}
	if opts.Client == nil {
		return nil, fmt.Errorf("bridge: mqtt client is required")
	}
	if opts.Devices == nil {
		return nil, fmt.Errorf("bridge: device source is required")
	}
	if opts.Capabilities == nil {
		return nil, fmt.Errorf("bridge: capability registry is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Default()
	}

	return &Bridge{
		cfg:        opts.Config,
		topics:     opts.Topics,
		client:     opts.Client,
		caps:       opts.Capabilities,
		devices:    opts.Devices,
		hub:        opts.Hub,
		telemetry:  opts.Telemetry,
		logger:     logger,
		httpClient: &http.Client{Timeout: opts.Config.GetCameraFetchTimeout()},
		history:    newCommandHistory(opts.Config.Bridge.HistoryCap),
		lastState:  make(map[string]string),
		lastMode:   make(map[string]string),
		lastAvail:  make(map[string]string),
		discovered: make(map[string]map[capability.ID]bool),
		done:       make(chan struct{}),
	}, nil
}

// Start subscribes to the command topics, announces the bridge online,
// hooks fleet change events, and begins the periodic publish sweep.
func (b *Bridge) Start(ctx context.Context) error {
	b.ctx, b.cancel = context.WithCancel(ctx)

	if err := b.client.Subscribe(b.topics.DeviceCommandPattern(), 1, b.handleDeviceCommand); err != nil {
		return fmt.Errorf("subscribing to device commands: %w", err)
	}
	if err := b.client.Subscribe(b.topics.BroadcastCommandPattern(), 1, b.handleBroadcastCommand); err != nil {
		return fmt.Errorf("subscribing to broadcast commands: %w", err)
	}

	if err := b.client.Publish(b.topics.ServiceStatus(), []byte("online"), 1, true); err != nil {
		b.logger.Warn("service status publish failed", "error", err)
	}

	b.unsubscribe = b.devices.Subscribe(b.handleDeviceEvent)

	b.wg.Add(1)
	go b.sweepLoop()

	b.logger.Info("bridge started",
		"topic_prefix", b.topics.Prefix(),
		"state_interval", b.cfg.GetStateInterval(),
		"discovery", b.cfg.Bridge.Discovery.Enabled)
	return nil
}

// Stop halts the sweep, detaches from fleet events, and marks the
// bridge offline on the broker. Safe to call more than once.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		if b.unsubscribe != nil {
			b.unsubscribe()
		}
		if b.cancel != nil {
			b.cancel()
		}
		close(b.done)
		b.wg.Wait()

		if err := b.client.Publish(b.topics.ServiceStatus(), []byte("offline"), 1, true); err != nil {
			b.logger.Warn("service status publish failed", "error", err)
		}
		b.logger.Info("bridge stopped")
	})
}

// GetMetrics returns a snapshot of the bridge counters.
func (b *Bridge) GetMetrics() Metrics {
	return Metrics{
		MessagesReceived:   b.messagesReceived.Load(),
		CommandsReceived:   b.commandsReceived.Load(),
		CommandErrors:      b.commandErrors.Load(),
		StatePublishes:     b.statePublishes.Load(),
		DiscoveryPublishes: b.discoveryPublishes.Load(),
		PublishErrors:      b.publishErrors.Load(),
		HistorySize:        b.history.size(),
		Connected:          b.client.IsConnected(),
	}
}

// CommandHistory returns the recent routed commands, newest first.
func (b *Bridge) CommandHistory() []HistoryEntry {
	return b.history.list()
}

// handleDeviceCommand routes an inbound per-device command topic to the
// capability registry. Malformed topics and unknown capabilities are
// logged and dropped, never errored, so the broker does not redeliver.
func (b *Bridge) handleDeviceCommand(topic string, payload []byte) error {
	b.messagesReceived.Add(1)

	deviceID, slug, ok := parseDeviceCommandTopic(topic)
	if !ok {
		b.logger.Debug("dropping unroutable command topic", "topic", topic)
		return nil
	}

	id := capability.ParseSlug(slug)
	if !b.caps.Has(id) {
		b.logger.Warn("dropping command for unknown capability", "capability", slug, "device_id", deviceID)
		return nil
	}

	b.dispatch(deviceID, id, parseCommandValue(payload))
	return nil
}

// handleBroadcastCommand fans a fleet-wide command out to every device.
// Per-device failures are recorded individually and do not stop the fan-out.
func (b *Bridge) handleBroadcastCommand(topic string, payload []byte) error {
	b.messagesReceived.Add(1)

	slug, ok := parseBroadcastCommandTopic(topic)
	if !ok {
		b.logger.Debug("dropping unroutable broadcast topic", "topic", topic)
		return nil
	}

	id := capability.ParseSlug(slug)
	if !b.caps.Has(id) {
		b.logger.Warn("dropping broadcast for unknown capability", "capability", slug)
		return nil
	}

	devices, err := b.devices.ListDevices(b.ctx)
	if err != nil {
		b.logger.Error("broadcast device listing failed", "error", err)
		return nil
	}

	value := parseCommandValue(payload)
	for i := range devices {
		b.dispatch(devices[i].ID, id, value)
	}
	b.logger.Info("broadcast command dispatched", "capability", string(id), "devices", len(devices))
	return nil
}

// dispatch executes one command, records it in the history ring, and
// emits telemetry. Execution errors are logged and counted, not propagated.
func (b *Bridge) dispatch(deviceID string, id capability.ID, value any) {
	b.commandsReceived.Add(1)

	entry := HistoryEntry{
		DeviceID:   deviceID,
		Capability: id,
		Source:     "mqtt",
		Timestamp:  time.Now().UTC(),
	}
	if err := b.caps.Execute(b.ctx, id, deviceID, value); err != nil {
		entry.Error = err.Error()
		b.commandErrors.Add(1)
		b.logger.Warn("command execution failed",
			"device_id", deviceID, "capability", string(id), "error", err)
	}
	b.history.record(entry)

	if b.telemetry != nil {
		b.telemetry.WriteCommand(deviceID, string(id), "mqtt")
	}
}

// handleDeviceEvent reacts to fleet registry changes: deletions retract
// every retained topic, everything else publishes the fresh view
// immediately instead of waiting for the next sweep.
func (b *Bridge) handleDeviceEvent(evt device.Event) {
	select {
	case <-b.done:
		return
	default:
	}

	if evt.Type == device.EventDeleted {
		b.retractDevice(evt.DeviceID)
		return
	}
	if evt.Device != nil {
		b.publishDevice(evt.Device)
	}
}

// sweepLoop publishes the whole fleet immediately and then on every
// state interval tick until Stop.
func (b *Bridge) sweepLoop() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.cfg.GetStateInterval())
	defer ticker.Stop()

	b.sweep()
	for {
		select {
		case <-b.done:
			return
		case <-ticker.C:
			b.sweep()
		}
	}
}

// sweep publishes state, availability, discovery, and camera previews
// for every device, then reports fleet stats.
func (b *Bridge) sweep() {
	devices, err := b.devices.ListDevices(b.ctx)
	if err != nil {
		b.logger.Error("sweep device listing failed", "error", err)
		return
	}

	for i := range devices {
		b.publishDevice(&devices[i])
		b.publishCamera(&devices[i])
	}

	if b.telemetry != nil && b.hub != nil {
		b.telemetry.WriteFleetStats(b.hub.ConnectionCount(), len(devices))
	}
}

// publishDevice publishes the device's state snapshot and availability,
// both deduplicated against the last published values, and reconciles
// discovery. A mode change forces a full discovery republish.
func (b *Bridge) publishDevice(d *device.Device) {
	snap := buildSnapshot(d, b.cfg.GetAvailabilityTimeout(), time.Now().UTC())
	data := snap.canonical()

	online := snap.Status == string(device.StatusOnline)
	availPayload := "offline"
	if online {
		availPayload = "online"
	}

	b.cacheMu.Lock()
	stateChanged := b.lastState[d.ID] != string(data)
	if stateChanged {
		b.lastState[d.ID] = string(data)
	}
	prevMode := b.lastMode[d.ID]
	b.lastMode[d.ID] = snap.Mode
	availChanged := b.cfg.Bridge.Availability.Enabled && b.lastAvail[d.ID] != availPayload
	if availChanged {
		b.lastAvail[d.ID] = availPayload
	}
	b.cacheMu.Unlock()

	if stateChanged {
		if err := b.client.Publish(b.topics.DeviceState(d.ID), data, 1, false); err != nil {
			b.publishErrors.Add(1)
			b.logger.Warn("state publish failed", "device_id", d.ID, "error", err)
		} else {
			b.statePublishes.Add(1)
		}
	}

	if availChanged {
		if err := b.client.Publish(b.topics.DeviceAvailability(d.ID), []byte(availPayload), 1, true); err != nil {
			b.publishErrors.Add(1)
			b.logger.Warn("availability publish failed", "device_id", d.ID, "error", err)
		}
		if b.telemetry != nil {
			b.telemetry.WriteDeviceStatus(d.ID, online)
		}
	}

	force := prevMode != "" && prevMode != snap.Mode
	b.publishDiscovery(d, force)
}

// publishCamera fetches and publishes the device's current poster image.
// The camera topic is not retained, so every sweep republishes while a
// poster URL is present; a console that missed one frame catches the
// next. Fetch failures are non-fatal.
func (b *Bridge) publishCamera(d *device.Device) {
	if !b.cfg.Bridge.Camera.Enabled {
		return
	}
	posterURL := d.PosterURL()
	if posterURL == "" {
		return
	}

	img, err := b.fetchPoster(posterURL)
	if err != nil {
		b.logger.Warn("poster fetch failed", "device_id", d.ID, "url", posterURL, "error", err)
		return
	}

	encoded := base64.StdEncoding.EncodeToString(img)
	if err := b.client.Publish(b.topics.DeviceCamera(d.ID), []byte(encoded), 0, false); err != nil {
		b.publishErrors.Add(1)
		b.logger.Warn("camera publish failed", "device_id", d.ID, "error", err)
	}
}

// fetchPoster retrieves a poster image. Relative URLs resolve against
// the configured API base URL.
func (b *Bridge) fetchPoster(rawURL string) ([]byte, error) {
	u := rawURL
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		u = strings.TrimRight(b.cfg.API.BaseURL, "/") + "/" + strings.TrimLeft(rawURL, "/")
	}

	ctx, cancel := context.WithTimeout(b.ctx, b.cfg.GetCameraFetchTimeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxPosterBytes))
}

// parseDeviceCommandTopic extracts the device ID and capability slug
// from a {prefix}/device/{id}/command/{slug} topic.
func parseDeviceCommandTopic(topic string) (deviceID, slug string, ok bool) {
	parts := strings.Split(topic, "/")
	n := len(parts)
	if n < 4 || parts[n-2] != "command" || parts[n-4] != "device" {
		return "", "", false
	}
	if parts[n-3] == "" || parts[n-1] == "" {
		return "", "", false
	}
	return parts[n-3], parts[n-1], true
}

// parseBroadcastCommandTopic extracts the capability slug from a
// {prefix}/broadcast/command/{slug} topic.
func parseBroadcastCommandTopic(topic string) (slug string, ok bool) {
	parts := strings.Split(topic, "/")
	n := len(parts)
	if n < 3 || parts[n-2] != "command" || parts[n-3] != "broadcast" {
		return "", false
	}
	if parts[n-1] == "" {
		return "", false
	}
	return parts[n-1], true
}

// parseCommandValue decodes a command payload. JSON objects with a
// "value" key unwrap to that value; other JSON decodes as-is; anything
// unparseable (bare ON/OFF strings, option names) passes through as a
// string.
func parseCommandValue(payload []byte) any {
	var parsed any
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return string(payload)
	}
	if m, ok := parsed.(map[string]any); ok {
		if v, exists := m["value"]; exists {
			return v
		}
		return m
	}
	return parsed
}
