package capability

import (
	"context"
	"sort"
	"sync"

	"github.com/posterrama/fleet-core/internal/device"
)

// Commander delivers commands to connected devices. Implemented by the
// socket hub.
type Commander interface {
	// SendToDevice performs a best-effort send; returns false when the
	// device has no live connection or the write fails.
	SendToDevice(deviceID string, command map[string]any) bool
}

// Store is the device-store surface consumed by capability handlers.
// Implemented by *device.Registry.
type Store interface {
	GetDevice(ctx context.Context, id string) (*device.Device, error)
	ListDevices(ctx context.Context) ([]device.Device, error)
	SetDeviceState(ctx context.Context, id string, state device.State) error
	SetDeviceSettings(ctx context.Context, id string, settings device.Settings) error
	UpdateDevice(ctx context.Context, d *device.Device) error
}

// Logger is the minimal logging surface used by handlers.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Deps carries the collaborators capability handlers are wired to.
type Deps struct {
	Store     Store
	Commander Commander
	Logger    Logger
}

// Registry holds the fixed capability catalog. It is populated once via
// Init and safe to query before Init (returning empty results), since
// the hub and bridge are wired together at startup in no particular
// order relative to catalog population.
type Registry struct {
	mu   sync.RWMutex
	defs map[ID]*Definition
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Init populates the registry with the built-in catalog wired to deps.
// Calling Init more than once is a no-op; entries are never duplicated.
func (r *Registry) Init(deps Deps) {
	if deps.Logger == nil {
		deps.Logger = noopLogger{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.defs != nil {
		return
	}

	r.defs = make(map[ID]*Definition)
	for _, def := range catalog(deps) {
		d := def
		r.defs[d.ID] = &d
	}
}

// Get returns the definition for an ID.
func (r *Registry) Get(id ID) (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[id]
	return def, ok
}

// Has reports whether an ID is registered.
func (r *Registry) Has(id ID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.defs[id]
	return ok
}

// All returns the full catalog sorted by ID.
func (r *Registry) All() []*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]*Definition, 0, len(r.defs))
	for _, def := range r.defs {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].ID < defs[j].ID })
	return defs
}

// AvailableFor filters the catalog through each definition's availability
// predicate for the given device.
func (r *Registry) AvailableFor(d *device.Device) []*Definition {
	all := r.All()
	avail := make([]*Definition, 0, len(all))
	for _, def := range all {
		if def.Available(d) {
			avail = append(avail, def)
		}
	}
	return avail
}

// Execute resolves an ID and invokes its command handler.
// Returns ErrNotFound for unknown IDs and ErrNotCommandable for
// read-only entities.
func (r *Registry) Execute(ctx context.Context, id ID, deviceID string, value any) error {
	def, ok := r.Get(id)
	if !ok {
		return ErrNotFound
	}
	if def.Handle == nil {
		return ErrNotCommandable
	}
	return def.Handle(ctx, deviceID, value)
}
