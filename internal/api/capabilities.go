package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/posterrama/fleet-core/internal/capability"
	"github.com/posterrama/fleet-core/internal/device"
)

// capabilityView is the wire form of a capability definition.
type capabilityView struct {
	ID          string   `json:"id"`
	Slug        string   `json:"slug"`
	Name        string   `json:"name"`
	Icon        string   `json:"icon,omitempty"`
	EntityType  string   `json:"entityType"`
	Commandable bool     `json:"commandable"`
	Options     []string `json:"options,omitempty"`
	Min         float64  `json:"min,omitempty"`
	Max         float64  `json:"max,omitempty"`
	Step        float64  `json:"step,omitempty"`
	Unit        string   `json:"unit,omitempty"`
	StateField  string   `json:"stateField,omitempty"`

	// Value is the device-scoped current value; only set on per-device
	// listings.
	Value any `json:"value,omitempty"`
}

func capView(def *capability.Definition, d *device.Device) capabilityView {
	v := capabilityView{
		ID:          string(def.ID),
		Slug:        def.ID.Slug(),
		Name:        def.Name,
		Icon:        def.Icon,
		EntityType:  string(def.EntityType),
		Commandable: def.Handle != nil,
		Options:     def.Options,
		Min:         def.Min,
		Max:         def.Max,
		Step:        def.Step,
		Unit:        def.Unit,
		StateField:  def.StateField,
	}
	if d != nil && def.State != nil {
		v.Value = def.State(d)
	}
	return v
}

// handleListCapabilities returns the full capability catalog.
func (s *Server) handleListCapabilities(w http.ResponseWriter, _ *http.Request) {
	defs := s.caps.All()
	views := make([]capabilityView, 0, len(defs))
	for _, def := range defs {
		views = append(views, capView(def, nil))
	}
	writeJSON(w, http.StatusOK, map[string]any{"capabilities": views, "count": len(views)})
}

// handleDeviceCapabilities returns the capabilities currently available
// to one device, with their current values.
func (s *Server) handleDeviceCapabilities(w http.ResponseWriter, r *http.Request) {
	dev, err := s.registry.GetDevice(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDeviceError(w, err)
		return
	}

	defs := s.caps.AvailableFor(dev)
	views := make([]capabilityView, 0, len(defs))
	for _, def := range defs {
		views = append(views, capView(def, dev))
	}
	writeJSON(w, http.StatusOK, map[string]any{"capabilities": views, "count": len(views)})
}
