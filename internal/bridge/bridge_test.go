package bridge

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/posterrama/fleet-core/internal/capability"
	"github.com/posterrama/fleet-core/internal/device"
	"github.com/posterrama/fleet-core/internal/infrastructure/config"
	"github.com/posterrama/fleet-core/internal/infrastructure/logging"
	"github.com/posterrama/fleet-core/internal/infrastructure/mqtt"
)

// publication is one recorded MQTT publish.
type publication struct {
	topic    string
	payload  string
	qos      byte
	retained bool
}

// fakeMQTT records publishes and subscriptions in memory.
type fakeMQTT struct {
	mu        sync.Mutex
	pubs      []publication
	subs      map[string]mqtt.MessageHandler
	connected bool
}

func newFakeMQTT() *fakeMQTT {
	return &fakeMQTT{subs: make(map[string]mqtt.MessageHandler), connected: true}
}

func (f *fakeMQTT) Publish(topic string, payload []byte, qos byte, retained bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pubs = append(f.pubs, publication{topic: topic, payload: string(payload), qos: qos, retained: retained})
	return nil
}

func (f *fakeMQTT) Subscribe(topic string, _ byte, handler mqtt.MessageHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs[topic] = handler
	return nil
}

func (f *fakeMQTT) IsConnected() bool { return f.connected }

// publishesTo returns all recorded publishes for one exact topic.
func (f *fakeMQTT) publishesTo(topic string) []publication {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []publication
	for _, p := range f.pubs {
		if p.topic == topic {
			out = append(out, p)
		}
	}
	return out
}

func (f *fakeMQTT) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pubs = nil
}

// fakeFleet is an in-memory DeviceSource with manual event emission.
type fakeFleet struct {
	mu       sync.Mutex
	devices  map[string]*device.Device
	handlers []device.EventHandler
}

func newFakeFleet(devs ...*device.Device) *fakeFleet {
	f := &fakeFleet{devices: make(map[string]*device.Device)}
	for _, d := range devs {
		f.devices[d.ID] = d
	}
	return f
}

func (f *fakeFleet) ListDevices(_ context.Context) ([]device.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []device.Device
	for _, d := range f.devices {
		out = append(out, *d.DeepCopy())
	}
	return out, nil
}

func (f *fakeFleet) Subscribe(handler device.EventHandler) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers = append(f.handlers, handler)
	return func() {}
}

func (f *fakeFleet) emit(evt device.Event) {
	f.mu.Lock()
	handlers := append([]device.EventHandler(nil), f.handlers...)
	f.mu.Unlock()
	for _, h := range handlers {
		h(evt)
	}
}

func (f *fakeFleet) remove(id string) {
	f.mu.Lock()
	delete(f.devices, id)
	f.mu.Unlock()
}

// capStore is the minimal capability.Store behind the test registry.
type capStore struct {
	mu      sync.Mutex
	fleet   *fakeFleet
	states  []device.State
	updated []string
}

func (s *capStore) GetDevice(_ context.Context, id string) (*device.Device, error) {
	s.fleet.mu.Lock()
	defer s.fleet.mu.Unlock()
	d, ok := s.fleet.devices[id]
	if !ok {
		return nil, device.ErrDeviceNotFound
	}
	return d.DeepCopy(), nil
}

func (s *capStore) ListDevices(ctx context.Context) ([]device.Device, error) {
	return s.fleet.ListDevices(ctx)
}

func (s *capStore) SetDeviceState(_ context.Context, id string, state device.State) error {
	s.fleet.mu.Lock()
	defer s.fleet.mu.Unlock()
	d, ok := s.fleet.devices[id]
	if !ok {
		return device.ErrDeviceNotFound
	}
	for k, v := range state {
		d.CurrentState[k] = v
	}
	s.mu.Lock()
	s.states = append(s.states, state)
	s.mu.Unlock()
	return nil
}

func (s *capStore) SetDeviceSettings(_ context.Context, id string, settings device.Settings) error {
	s.fleet.mu.Lock()
	defer s.fleet.mu.Unlock()
	if _, ok := s.fleet.devices[id]; !ok {
		return device.ErrDeviceNotFound
	}
	return nil
}

func (s *capStore) UpdateDevice(_ context.Context, d *device.Device) error {
	s.fleet.mu.Lock()
	defer s.fleet.mu.Unlock()
	if _, ok := s.fleet.devices[d.ID]; !ok {
		return device.ErrDeviceNotFound
	}
	s.fleet.devices[d.ID] = d.DeepCopy()
	s.mu.Lock()
	s.updated = append(s.updated, d.ID)
	s.mu.Unlock()
	return nil
}

// capCommander records socket pushes.
type capCommander struct {
	mu   sync.Mutex
	sent []string
}

func (c *capCommander) SendToDevice(deviceID string, _ map[string]any) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, deviceID)
	return true
}

func (c *capCommander) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

func testBridgeConfig() *config.Config {
	return &config.Config{
		API: config.APIConfig{BaseURL: "http://localhost:4000"},
		Bridge: config.BridgeConfig{
			Enabled:     true,
			TopicPrefix: "posterrama",
			Discovery: config.DiscoveryConfig{
				Enabled: true,
				Prefix:  "homeassistant",
			},
			Availability: config.AvailabilityConfig{
				Enabled:        true,
				TimeoutSeconds: 90,
			},
			// Long enough that ticks never interleave with test-driven sweeps.
			StateIntervalSeconds: 3600,
			HistoryCap:           5,
			Camera: config.CameraConfig{
				Enabled:             false,
				FetchTimeoutSeconds: 2,
			},
		},
	}
}

func onlineDevice(id, name, mode string) *device.Device {
	now := time.Now().UTC()
	return &device.Device{
		ID:       id,
		Name:     name,
		Location: "Lobby",
		Status:   device.StatusOnline,
		CurrentState: device.State{
			"mode":   mode,
			"paused": false,
		},
		SettingsOverride: device.Settings{},
		LastSeenAt:       &now,
	}
}

// newTestBridge wires a bridge to in-memory fakes with a live context,
// without starting the sweep goroutine, so tests drive it directly.
func newTestBridge(t *testing.T, fleet *fakeFleet) (*Bridge, *fakeMQTT, *capStore, *capCommander) {
	t.Helper()

	client := newFakeMQTT()
	store := &capStore{fleet: fleet}
	commander := &capCommander{}

	caps := capability.NewRegistry()
	caps.Init(capability.Deps{Store: store, Commander: commander})

	cfg := testBridgeConfig()
	b, err := New(Options{
		Config:       cfg,
		Topics:       mqtt.NewTopics(cfg.Bridge.TopicPrefix, cfg.Bridge.Discovery.Prefix),
		Client:       client,
		Devices:      fleet,
		Capabilities: caps,
		Logger:       logging.New(config.LoggingConfig{Level: "error", Format: "text"}, "test"),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	b.ctx, b.cancel = ctx, cancel
	t.Cleanup(cancel)

	return b, client, store, commander
}

func TestNew_RequiredOptions(t *testing.T) {
	cfg := testBridgeConfig()
	caps := capability.NewRegistry()
	fleet := newFakeFleet()
	client := newFakeMQTT()

	cases := []struct {
		name string
		opts Options
	}{
		{"missing config", Options{Client: client, Devices: fleet, Capabilities: caps}},
		{"missing client", Options{Config: cfg, Devices: fleet, Capabilities: caps}},
		{"missing devices", Options{Config: cfg, Client: client, Capabilities: caps}},
		{"missing capabilities", Options{Config: cfg, Client: client, Devices: fleet}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(tc.opts); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestSweep_PublishesStateAvailabilityDiscovery(t *testing.T) {
	fleet := newFakeFleet(onlineDevice("dev1", "Lobby Display", device.ModeScreensaver))
	b, client, _, _ := newTestBridge(t, fleet)

	b.sweep()

	statePubs := client.publishesTo(b.topics.DeviceState("dev1"))
	if len(statePubs) != 1 {
		t.Fatalf("expected 1 state publish, got %d", len(statePubs))
	}
	if statePubs[0].retained {
		t.Error("state publish should not be retained")
	}
	var snap map[string]any
	if err := json.Unmarshal([]byte(statePubs[0].payload), &snap); err != nil {
		t.Fatalf("state payload is not JSON: %v", err)
	}
	if snap["id"] != "dev1" || snap["mode"] != "screensaver" || snap["status"] != "online" {
		t.Errorf("unexpected snapshot: %v", snap)
	}

	availPubs := client.publishesTo(b.topics.DeviceAvailability("dev1"))
	if len(availPubs) != 1 || availPubs[0].payload != "online" || !availPubs[0].retained {
		t.Fatalf("expected one retained online publish, got %v", availPubs)
	}

	// In screensaver mode every capability except the wallart density
	// select is available.
	densityTopic := b.topics.Discovery("select", "dev1", "settings_wallartMode_density")
	densityPubs := client.publishesTo(densityTopic)
	if len(densityPubs) != 1 || densityPubs[0].payload != "" {
		t.Fatalf("expected single retraction on density topic, got %v", densityPubs)
	}

	switchTopic := b.topics.Discovery("switch", "dev1", "playback_paused")
	switchPubs := client.publishesTo(switchTopic)
	if len(switchPubs) != 1 {
		t.Fatalf("expected 1 switch config publish, got %d", len(switchPubs))
	}
	var conf map[string]any
	if err := json.Unmarshal([]byte(switchPubs[0].payload), &conf); err != nil {
		t.Fatalf("config payload is not JSON: %v", err)
	}
	if conf["command_topic"] != b.topics.DeviceCommand("dev1", "playback_paused") {
		t.Errorf("wrong command_topic: %v", conf["command_topic"])
	}
	if !strings.Contains(conf["value_template"].(string), "value_json.paused") {
		t.Errorf("wrong value_template: %v", conf["value_template"])
	}
	if conf["unique_id"] != "posterrama_dev1_playback_paused" {
		t.Errorf("wrong unique_id: %v", conf["unique_id"])
	}
	dev, ok := conf["device"].(map[string]any)
	if !ok || dev["suggested_area"] != "Lobby" {
		t.Errorf("wrong device block: %v", conf["device"])
	}
}

func TestSweep_DeduplicatesUnchangedState(t *testing.T) {
	fleet := newFakeFleet(onlineDevice("dev1", "Lobby Display", device.ModeScreensaver))
	b, client, _, _ := newTestBridge(t, fleet)

	b.sweep()
	first := len(client.publishesTo(b.topics.DeviceState("dev1")))
	b.sweep()
	second := len(client.publishesTo(b.topics.DeviceState("dev1")))

	if first != 1 || second != 1 {
		t.Fatalf("expected exactly one state publish across sweeps, got %d then %d", first, second)
	}
	if n := len(client.publishesTo(b.topics.DeviceAvailability("dev1"))); n != 1 {
		t.Errorf("expected 1 availability publish, got %d", n)
	}
}

func TestDeviceEvent_PublishesImmediately(t *testing.T) {
	d := onlineDevice("dev1", "Lobby Display", device.ModeScreensaver)
	fleet := newFakeFleet(d)
	b, client, _, _ := newTestBridge(t, fleet)
	fleet.Subscribe(b.handleDeviceEvent)

	b.sweep()

	changed := d.DeepCopy()
	changed.CurrentState["paused"] = true
	fleet.emit(device.Event{Type: device.EventState, DeviceID: "dev1", Device: changed})

	statePubs := client.publishesTo(b.topics.DeviceState("dev1"))
	if len(statePubs) != 2 {
		t.Fatalf("expected 2 state publishes, got %d", len(statePubs))
	}
	var snap map[string]any
	if err := json.Unmarshal([]byte(statePubs[1].payload), &snap); err != nil {
		t.Fatal(err)
	}
	if snap["paused"] != true {
		t.Errorf("expected paused=true in published state, got %v", snap["paused"])
	}
}

func TestModeChange_ForcesDiscoveryRepublish(t *testing.T) {
	d := onlineDevice("dev1", "Lobby Display", device.ModeScreensaver)
	fleet := newFakeFleet(d)
	b, client, _, _ := newTestBridge(t, fleet)

	b.sweep()
	client.reset()

	changed := d.DeepCopy()
	changed.CurrentState["mode"] = device.ModeWallart
	fleet.devices["dev1"] = changed
	b.handleDeviceEvent(device.Event{Type: device.EventState, DeviceID: "dev1", Device: changed})

	// Density becomes available in wallart mode.
	densityTopic := b.topics.Discovery("select", "dev1", "settings_wallartMode_density")
	densityPubs := client.publishesTo(densityTopic)
	if len(densityPubs) == 0 || densityPubs[len(densityPubs)-1].payload == "" {
		t.Fatalf("expected density config publish after mode change, got %v", densityPubs)
	}

	// Previously published configs go through a retract-then-republish cycle.
	switchTopic := b.topics.Discovery("switch", "dev1", "playback_paused")
	switchPubs := client.publishesTo(switchTopic)
	if len(switchPubs) != 2 || switchPubs[0].payload != "" || switchPubs[1].payload == "" {
		t.Fatalf("expected retract then republish on switch topic, got %v", switchPubs)
	}
}

func TestDeviceDeleted_RetractsRetainedTopics(t *testing.T) {
	d := onlineDevice("dev1", "Lobby Display", device.ModeScreensaver)
	fleet := newFakeFleet(d)
	b, client, _, _ := newTestBridge(t, fleet)

	b.sweep()
	client.reset()

	fleet.remove("dev1")
	b.handleDeviceEvent(device.Event{Type: device.EventDeleted, DeviceID: "dev1"})

	availPubs := client.publishesTo(b.topics.DeviceAvailability("dev1"))
	if len(availPubs) != 1 || availPubs[0].payload != "" || !availPubs[0].retained {
		t.Fatalf("expected retained empty availability publish, got %v", availPubs)
	}
	switchTopic := b.topics.Discovery("switch", "dev1", "playback_paused")
	switchPubs := client.publishesTo(switchTopic)
	if len(switchPubs) != 1 || switchPubs[0].payload != "" {
		t.Fatalf("expected discovery retraction, got %v", switchPubs)
	}
}

func TestDeviceCommand_RoutedToCapability(t *testing.T) {
	fleet := newFakeFleet(onlineDevice("dev1", "Lobby Display", device.ModeScreensaver))
	b, _, store, commander := newTestBridge(t, fleet)

	err := b.handleDeviceCommand("posterrama/device/dev1/command/playback_paused", []byte("ON"))
	if err != nil {
		t.Fatalf("handler returned error: %v", err)
	}

	if len(store.states) != 1 {
		t.Fatalf("expected 1 state patch, got %d", len(store.states))
	}
	if store.states[0]["paused"] != true {
		t.Errorf("expected paused=true patch, got %v", store.states[0])
	}
	if commander.count() != 1 {
		t.Errorf("expected 1 socket push, got %d", commander.count())
	}

	hist := b.CommandHistory()
	if len(hist) != 1 || hist[0].Capability != "playback.paused" || hist[0].Error != "" {
		t.Fatalf("unexpected history: %+v", hist)
	}
	if m := b.GetMetrics(); m.MessagesReceived != 1 || m.CommandsReceived != 1 || m.CommandErrors != 0 {
		t.Errorf("unexpected metrics: %+v", m)
	}
}

func TestDeviceCommand_Dropped(t *testing.T) {
	fleet := newFakeFleet(onlineDevice("dev1", "Lobby Display", device.ModeScreensaver))
	b, _, store, _ := newTestBridge(t, fleet)

	cases := []struct {
		name  string
		topic string
	}{
		{"unknown capability", "posterrama/device/dev1/command/volume_up"},
		{"malformed topic", "posterrama/device/dev1/playback_paused"},
		{"missing device segment", "posterrama/command/playback_paused"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := b.handleDeviceCommand(tc.topic, []byte("ON")); err != nil {
				t.Fatalf("handler returned error: %v", err)
			}
		})
	}

	if len(store.states) != 0 {
		t.Errorf("expected no state patches, got %d", len(store.states))
	}
	if len(b.CommandHistory()) != 0 {
		t.Error("dropped commands must not enter history")
	}

	// Dropped messages still count as received; only routed ones count
	// as commands.
	m := b.GetMetrics()
	if m.MessagesReceived != uint64(len(cases)) {
		t.Errorf("expected %d messages received, got %d", len(cases), m.MessagesReceived)
	}
	if m.CommandsReceived != 0 {
		t.Errorf("expected 0 commands received, got %d", m.CommandsReceived)
	}
}

func TestDeviceCommand_HandlerErrorRecorded(t *testing.T) {
	fleet := newFakeFleet(onlineDevice("dev1", "Lobby Display", device.ModeScreensaver))
	b, _, _, _ := newTestBridge(t, fleet)

	if err := b.handleDeviceCommand("posterrama/device/dev1/command/playback_paused", []byte("maybe")); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}

	hist := b.CommandHistory()
	if len(hist) != 1 || hist[0].Error == "" {
		t.Fatalf("expected history entry with error, got %+v", hist)
	}
	if m := b.GetMetrics(); m.CommandErrors != 1 {
		t.Errorf("expected 1 command error, got %d", m.CommandErrors)
	}
}

func TestBroadcastCommand_FansOut(t *testing.T) {
	fleet := newFakeFleet(
		onlineDevice("dev1", "Lobby Display", device.ModeScreensaver),
		onlineDevice("dev2", "Bar Display", device.ModeWallart),
	)
	b, _, _, commander := newTestBridge(t, fleet)

	if err := b.handleBroadcastCommand("posterrama/broadcast/command/playback_pause", []byte("PRESS")); err != nil {
		t.Fatalf("handler returned error: %v", err)
	}

	if commander.count() != 2 {
		t.Errorf("expected pushes to both devices, got %d", commander.count())
	}
	if len(b.CommandHistory()) != 2 {
		t.Errorf("expected 2 history entries, got %d", len(b.CommandHistory()))
	}
}

func TestCommandHistory_BoundedNewestFirst(t *testing.T) {
	fleet := newFakeFleet(onlineDevice("dev1", "Lobby Display", device.ModeScreensaver))
	b, _, _, _ := newTestBridge(t, fleet)

	for i := 0; i < 7; i++ {
		b.dispatch("dev1", "playback.pause", nil)
	}

	hist := b.CommandHistory()
	if len(hist) != 5 {
		t.Fatalf("expected history capped at 5, got %d", len(hist))
	}
	for i := 1; i < len(hist); i++ {
		if hist[i].Timestamp.After(hist[i-1].Timestamp) {
			t.Fatal("history not ordered newest first")
		}
	}
}

func TestPublishCamera(t *testing.T) {
	img := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x01, 0x02}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(img)
	}))
	defer srv.Close()

	d := onlineDevice("dev1", "Lobby Display", device.ModeScreensaver)
	d.CurrentState["posterUrl"] = srv.URL + "/poster.jpg"
	fleet := newFakeFleet(d)
	b, client, _, _ := newTestBridge(t, fleet)
	b.cfg.Bridge.Camera.Enabled = true

	b.publishCamera(d)

	camPubs := client.publishesTo(b.topics.DeviceCamera("dev1"))
	if len(camPubs) != 1 {
		t.Fatalf("expected 1 camera publish, got %d", len(camPubs))
	}
	if camPubs[0].payload != base64.StdEncoding.EncodeToString(img) {
		t.Error("camera payload is not the base64 image")
	}

	// The camera topic is not retained, so the next sweep republishes
	// even when the poster URL is unchanged.
	b.publishCamera(d)
	if n := len(client.publishesTo(b.topics.DeviceCamera("dev1"))); n != 2 {
		t.Errorf("expected republish on every sweep, got %d publishes", n)
	}

	// No poster URL, no publish.
	delete(d.CurrentState, "posterUrl")
	b.publishCamera(d)
	if n := len(client.publishesTo(b.topics.DeviceCamera("dev1"))); n != 2 {
		t.Errorf("expected no publish without a poster URL, got %d publishes", n)
	}
}

func TestStartStop_Lifecycle(t *testing.T) {
	fleet := newFakeFleet(onlineDevice("dev1", "Lobby Display", device.ModeScreensaver))
	client := newFakeMQTT()
	store := &capStore{fleet: fleet}
	caps := capability.NewRegistry()
	caps.Init(capability.Deps{Store: store, Commander: &capCommander{}})

	cfg := testBridgeConfig()
	b, err := New(Options{
		Config:       cfg,
		Topics:       mqtt.NewTopics(cfg.Bridge.TopicPrefix, cfg.Bridge.Discovery.Prefix),
		Client:       client,
		Devices:      fleet,
		Capabilities: caps,
		Logger:       logging.New(config.LoggingConfig{Level: "error", Format: "text"}, "test"),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := b.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	client.mu.Lock()
	_, devSub := client.subs[b.topics.DeviceCommandPattern()]
	_, bcastSub := client.subs[b.topics.BroadcastCommandPattern()]
	client.mu.Unlock()
	if !devSub || !bcastSub {
		t.Fatal("expected subscriptions to both command patterns")
	}

	// The initial sweep runs on the background goroutine.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(client.publishesTo(b.topics.DeviceState("dev1"))) > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if len(client.publishesTo(b.topics.DeviceState("dev1"))) == 0 {
		t.Fatal("initial sweep never published state")
	}

	status := client.publishesTo(b.topics.ServiceStatus())
	if len(status) == 0 || status[0].payload != "online" || !status[0].retained {
		t.Fatalf("expected retained online status, got %v", status)
	}

	b.Stop()
	b.Stop()

	status = client.publishesTo(b.topics.ServiceStatus())
	last := status[len(status)-1]
	if last.payload != "offline" || !last.retained {
		t.Fatalf("expected retained offline status after stop, got %v", last)
	}
}

func TestParseCommandTopics(t *testing.T) {
	cases := []struct {
		topic    string
		deviceID string
		slug     string
		ok       bool
	}{
		{"posterrama/device/dev1/command/playback_pause", "dev1", "playback_pause", true},
		{"nested/prefix/device/dev1/command/display_mode", "dev1", "display_mode", true},
		{"posterrama/device/dev1/state", "", "", false},
		{"posterrama/device//command/playback_pause", "", "", false},
		{"posterrama/device/dev1/command/", "", "", false},
	}
	for _, tc := range cases {
		id, slug, ok := parseDeviceCommandTopic(tc.topic)
		if id != tc.deviceID || slug != tc.slug || ok != tc.ok {
			t.Errorf("parseDeviceCommandTopic(%q) = (%q, %q, %v), want (%q, %q, %v)",
				tc.topic, id, slug, ok, tc.deviceID, tc.slug, tc.ok)
		}
	}

	if slug, ok := parseBroadcastCommandTopic("posterrama/broadcast/command/playback_pause"); !ok || slug != "playback_pause" {
		t.Errorf("broadcast parse failed: %q %v", slug, ok)
	}
	if _, ok := parseBroadcastCommandTopic("posterrama/device/dev1/command/playback_pause"); ok {
		t.Error("device topic must not parse as broadcast")
	}
}

func TestParseCommandValue(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		want    any
	}{
		{"raw switch payload", "ON", "ON"},
		{"raw option", "high", "high"},
		{"json string", `"wallart"`, "wallart"},
		{"json number", "42", float64(42)},
		{"json bool", "true", true},
		{"value envelope", `{"value": 15}`, float64(15)},
		{"envelope string", `{"value": "cinema"}`, "cinema"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := parseCommandValue([]byte(tc.payload)); got != tc.want {
				t.Errorf("parseCommandValue(%q) = %v (%T), want %v", tc.payload, got, got, tc.want)
			}
		})
	}

	got := parseCommandValue([]byte(`{"mode": "wallart", "extra": 1}`))
	m, ok := got.(map[string]any)
	if !ok || m["mode"] != "wallart" {
		t.Errorf("expected object passthrough, got %v", got)
	}
}
