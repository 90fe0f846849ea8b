package device

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// EventType classifies a registry change notification.
type EventType string

// Event types emitted by the Registry.
const (
	EventCreated EventType = "created"
	EventUpdated EventType = "updated"
	EventDeleted EventType = "deleted"
	EventState   EventType = "state"
	EventStatus  EventType = "status"
)

// Event describes a change to a device. The Device field is a deep copy
// and is nil for deletions.
type Event struct {
	Type     EventType
	DeviceID string
	Device   *Device
}

// EventHandler receives registry change notifications.
// Handlers run synchronously on the mutating goroutine and must not block.
type EventHandler func(Event)

// Registry provides device management with caching and thread safety.
// It wraps a Repository and adds an in-memory cache for fast lookups.
//
// The cache is populated on startup via RefreshCache() and kept in sync
// by cache-invalidating CRUD operations. Subscribers are notified of
// every change so downstream consumers (the MQTT bridge, the socket hub)
// can react without polling.
//
// All public methods are thread-safe.
type Registry struct {
	repo    Repository
	cache   map[string]*Device // Cached devices by ID
	cacheMu sync.RWMutex       // Protects cache

	handlers   map[int]EventHandler
	nextHandle int
	handlersMu sync.RWMutex

	logger Logger
}

// NewRegistry creates a new device registry.
// The repository is used for persistence; the registry adds caching.
func NewRegistry(repo Repository) *Registry {
	return &Registry{
		repo:     repo,
		cache:    make(map[string]*Device),
		handlers: make(map[int]EventHandler),
		logger:   noopLogger{},
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Subscribe registers a handler for registry change events.
// The returned function removes the subscription.
func (r *Registry) Subscribe(handler EventHandler) func() {
	r.handlersMu.Lock()
	id := r.nextHandle
	r.nextHandle++
	r.handlers[id] = handler
	r.handlersMu.Unlock()

	return func() {
		r.handlersMu.Lock()
		delete(r.handlers, id)
		r.handlersMu.Unlock()
	}
}

// notify delivers an event to all subscribers. The device is deep-copied
// once; handlers share the copy and must treat it as read-only.
func (r *Registry) notify(eventType EventType, id string, d *Device) {
	r.handlersMu.RLock()
	defer r.handlersMu.RUnlock()

	if len(r.handlers) == 0 {
		return
	}

	evt := Event{Type: eventType, DeviceID: id, Device: d.DeepCopy()}
	for _, h := range r.handlers {
		h(evt)
	}
}

// RefreshCache reloads all devices from the repository into the cache.
// This should be called on application startup.
func (r *Registry) RefreshCache(ctx context.Context) error {
	devices, err := r.repo.List(ctx)
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	// Clear and rebuild cache with deep copies
	r.cache = make(map[string]*Device, len(devices))
	for i := range devices {
		d := devices[i]
		r.cache[d.ID] = d.DeepCopy()
	}

	r.logger.Info("device cache refreshed", "count", len(devices))
	return nil
}

// GetDevice retrieves a device by ID.
// Returns ErrDeviceNotFound if the device does not exist.
// The returned device is a deep copy; callers can safely modify it.
func (r *Registry) GetDevice(ctx context.Context, id string) (*Device, error) {
	// Try cache first
	r.cacheMu.RLock()
	cached, ok := r.cache[id]
	r.cacheMu.RUnlock()

	if ok {
		// Return a deep copy to prevent external mutation of cache
		return cached.DeepCopy(), nil
	}

	// Fall back to repository (might be a new device not yet cached)
	device, err := r.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	// Cache for future lookups (store a deep copy)
	r.cacheMu.Lock()
	r.cache[id] = device.DeepCopy()
	r.cacheMu.Unlock()

	return device, nil
}

// ListDevices retrieves all devices.
// The returned devices are deep copies; callers can safely modify them.
func (r *Registry) ListDevices(ctx context.Context) ([]Device, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	// Return from cache if populated
	if len(r.cache) > 0 {
		devices := make([]Device, 0, len(r.cache))
		for _, d := range r.cache {
			// Deep copy to prevent external mutation of cache
			devices = append(devices, *d.DeepCopy())
		}
		return devices, nil
	}

	// Fall back to repository
	return r.repo.List(ctx)
}

// GetDevicesByLocation retrieves all devices at a specific location.
// The returned devices are deep copies; callers can safely modify them.
func (r *Registry) GetDevicesByLocation(ctx context.Context, location string) ([]Device, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	var devices []Device
	for _, d := range r.cache {
		if d.Location == location {
			// Deep copy to prevent external mutation of cache
			devices = append(devices, *d.DeepCopy())
		}
	}
	return devices, nil
}

// GetDevicesByStatus retrieves all devices with a specific stored status.
// The returned devices are deep copies; callers can safely modify them.
func (r *Registry) GetDevicesByStatus(ctx context.Context, status Status) ([]Device, error) {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	var devices []Device
	for _, d := range r.cache {
		if d.Status == status {
			// Deep copy to prevent external mutation of cache
			devices = append(devices, *d.DeepCopy())
		}
	}
	return devices, nil
}

// CreateDevice creates a new device.
// It validates the device, generates an ID if needed, and persists it.
func (r *Registry) CreateDevice(ctx context.Context, device *Device) error {
	// Generate ID if not provided
	if device.ID == "" {
		device.ID = GenerateID()
	}

	// Validate
	if err := ValidateDevice(device); err != nil {
		return err
	}

	// Persist
	if err := r.repo.Create(ctx, device); err != nil {
		return err
	}

	// Update cache (store a deep copy to prevent external modification)
	r.cacheMu.Lock()
	r.cache[device.ID] = device.DeepCopy()
	r.cacheMu.Unlock()

	r.logger.Info("device created", "id", device.ID, "name", device.Name)
	r.notify(EventCreated, device.ID, device)
	return nil
}

// UpdateDevice updates an existing device.
// It validates the device and persists the changes.
func (r *Registry) UpdateDevice(ctx context.Context, device *Device) error {
	// Validate
	if err := ValidateDevice(device); err != nil {
		return err
	}

	// Persist
	if err := r.repo.Update(ctx, device); err != nil {
		return err
	}

	// Update cache (store a deep copy to prevent external modification)
	r.cacheMu.Lock()
	r.cache[device.ID] = device.DeepCopy()
	r.cacheMu.Unlock()

	r.logger.Info("device updated", "id", device.ID, "name", device.Name)
	r.notify(EventUpdated, device.ID, device)
	return nil
}

// DeleteDevice removes a device.
func (r *Registry) DeleteDevice(ctx context.Context, id string) error {
	if err := r.repo.Delete(ctx, id); err != nil {
		return err
	}

	// Update cache
	r.cacheMu.Lock()
	delete(r.cache, id)
	r.cacheMu.Unlock()

	r.logger.Info("device deleted", "id", id)
	r.notify(EventDeleted, id, nil)
	return nil
}

// SetDeviceState merges reported state fields into a device's state.
// This is optimised for frequent reports over the WebSocket; only the
// keys present in state are changed.
func (r *Registry) SetDeviceState(ctx context.Context, id string, state State) error {
	if err := ValidateState(state); err != nil {
		return err
	}

	if err := r.repo.PatchState(ctx, id, state); err != nil {
		return err
	}

	// Update cache using deep copy to prevent race conditions
	var snapshot *Device
	r.cacheMu.Lock()
	if cached, ok := r.cache[id]; ok {
		// Create a deep copy with merged state (atomic replacement)
		updated := cached.DeepCopy()
		if updated.CurrentState == nil {
			updated.CurrentState = make(State, len(state))
		}
		for k, v := range state {
			updated.CurrentState[k] = deepCopyValue(v)
		}
		updated.UpdatedAt = time.Now().UTC()
		r.cache[id] = updated
		snapshot = updated
	}
	r.cacheMu.Unlock()

	r.logger.Debug("device state updated", "id", id)
	r.notify(EventState, id, snapshot)
	return nil
}

// SetDeviceSettings merges setting overrides into a device's settings.
func (r *Registry) SetDeviceSettings(ctx context.Context, id string, settings Settings) error {
	if err := r.repo.PatchSettings(ctx, id, settings); err != nil {
		return err
	}

	var snapshot *Device
	r.cacheMu.Lock()
	if cached, ok := r.cache[id]; ok {
		updated := cached.DeepCopy()
		if updated.SettingsOverride == nil {
			updated.SettingsOverride = make(Settings, len(settings))
		}
		for k, v := range settings {
			updated.SettingsOverride[k] = deepCopyValue(v)
		}
		updated.UpdatedAt = time.Now().UTC()
		r.cache[id] = updated
		snapshot = updated
	}
	r.cacheMu.Unlock()

	r.logger.Debug("device settings updated", "id", id)
	r.notify(EventUpdated, id, snapshot)
	return nil
}

// TouchDevice records activity for a device: sets last_seen_at and status.
// Called on WebSocket connect, heartbeat, and disconnect.
func (r *Registry) TouchDevice(ctx context.Context, id string, status Status, seenAt time.Time) error {
	if err := r.repo.Touch(ctx, id, status, seenAt); err != nil {
		return err
	}

	var snapshot *Device
	r.cacheMu.Lock()
	if cached, ok := r.cache[id]; ok {
		updated := cached.DeepCopy()
		updated.Status = status
		t := seenAt.UTC()
		updated.LastSeenAt = &t
		r.cache[id] = updated
		snapshot = updated
	}
	r.cacheMu.Unlock()

	r.logger.Debug("device touched", "id", id, "status", status)
	r.notify(EventStatus, id, snapshot)
	return nil
}

// GetDeviceCount returns the number of cached devices.
func (r *Registry) GetDeviceCount() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}

// Stats returns registry statistics for monitoring.
type Stats struct {
	TotalDevices int
	ByStatus     map[Status]int
	ByMode       map[string]int
}

// GetStats returns current registry statistics.
func (r *Registry) GetStats() Stats {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()

	stats := Stats{
		TotalDevices: len(r.cache),
		ByStatus:     make(map[Status]int),
		ByMode:       make(map[string]int),
	}

	for _, d := range r.cache {
		stats.ByStatus[d.Status]++
		if mode := d.Mode(); mode != "" {
			stats.ByMode[mode]++
		}
	}

	return stats
}
