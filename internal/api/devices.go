package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/posterrama/fleet-core/internal/device"
)

// deviceView decorates a stored device with live connection status.
type deviceView struct {
	*device.Device
	Connected bool `json:"connected"`
}

func (s *Server) view(d *device.Device) deviceView {
	return deviceView{Device: d, Connected: s.hub.IsConnected(d.ID)}
}

// handleListDevices returns all devices, with optional query filters.
//
// Query parameters:
//   - location: filter by location
//   - status: filter by stored status (online, offline, unknown)
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var (
		devices []device.Device
		err     error
	)
	switch {
	case r.URL.Query().Get("location") != "":
		devices, err = s.registry.GetDevicesByLocation(ctx, r.URL.Query().Get("location"))
	case r.URL.Query().Get("status") != "":
		devices, err = s.registry.GetDevicesByStatus(ctx, device.Status(r.URL.Query().Get("status")))
	default:
		devices, err = s.registry.ListDevices(ctx)
	}
	if err != nil {
		writeInternalError(w, "failed to list devices")
		return
	}

	views := make([]deviceView, 0, len(devices))
	for i := range devices {
		views = append(views, s.view(&devices[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": views, "count": len(views)})
}

// handleGetDevice returns a single device by ID.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	dev, err := s.registry.GetDevice(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDeviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.view(dev))
}

// createDeviceRequest is the registration payload from the admin layer.
type createDeviceRequest struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	Location string `json:"location,omitempty"`
}

// handleCreateDevice registers a device and returns its plaintext
// secret. The secret is shown exactly once; only its hash is stored.
func (s *Server) handleCreateDevice(w http.ResponseWriter, r *http.Request) {
	var req createDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	secret, err := device.GenerateSecret()
	if err != nil {
		writeInternalError(w, "failed to generate device secret")
		return
	}

	dev := &device.Device{
		ID:         req.ID,
		Name:       req.Name,
		Location:   req.Location,
		SecretHash: device.HashSecret(secret),
		Status:     device.StatusUnknown,
	}
	if err := s.registry.CreateDevice(r.Context(), dev); err != nil {
		writeDeviceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"device": s.view(dev),
		"secret": secret,
	})
}

// updateDeviceRequest carries the mutable identity fields.
type updateDeviceRequest struct {
	Name     *string `json:"name,omitempty"`
	Location *string `json:"location,omitempty"`
}

// handleUpdateDevice applies a partial update to name and location.
func (s *Server) handleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	var req updateDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	dev, err := s.registry.GetDevice(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDeviceError(w, err)
		return
	}
	if req.Name != nil {
		dev.Name = *req.Name
	}
	if req.Location != nil {
		dev.Location = *req.Location
	}

	if err := s.registry.UpdateDevice(r.Context(), dev); err != nil {
		writeDeviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.view(dev))
}

// handleDeleteDevice removes a device from the fleet.
func (s *Server) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	if err := s.registry.DeleteDevice(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDeviceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleRotateSecret issues a fresh device secret, invalidating the old
// one. The device must re-authenticate with the new secret.
func (s *Server) handleRotateSecret(w http.ResponseWriter, r *http.Request) {
	dev, err := s.registry.GetDevice(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDeviceError(w, err)
		return
	}

	secret, err := device.GenerateSecret()
	if err != nil {
		writeInternalError(w, "failed to generate device secret")
		return
	}
	dev.SecretHash = device.HashSecret(secret)

	if err := s.registry.UpdateDevice(r.Context(), dev); err != nil {
		writeDeviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"secret": secret})
}

// handleSetDeviceState merges a partial state document into the
// device's current state.
func (s *Server) handleSetDeviceState(w http.ResponseWriter, r *http.Request) {
	var state device.State
	if err := json.NewDecoder(r.Body).Decode(&state); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	id := chi.URLParam(r, "id")
	if err := s.registry.SetDeviceState(r.Context(), id, state); err != nil {
		writeDeviceError(w, err)
		return
	}

	dev, err := s.registry.GetDevice(r.Context(), id)
	if err != nil {
		writeDeviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.view(dev))
}

// handleSetDeviceSettings merges partial setting overrides.
func (s *Server) handleSetDeviceSettings(w http.ResponseWriter, r *http.Request) {
	var settings device.Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	id := chi.URLParam(r, "id")
	if err := s.registry.SetDeviceSettings(r.Context(), id, settings); err != nil {
		writeDeviceError(w, err)
		return
	}

	dev, err := s.registry.GetDevice(r.Context(), id)
	if err != nil {
		writeDeviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.view(dev))
}

// handleDeviceStats returns fleet-level aggregates.
func (s *Server) handleDeviceStats(w http.ResponseWriter, _ *http.Request) {
	stats := s.registry.GetStats()
	writeJSON(w, http.StatusOK, map[string]any{
		"total":     stats.TotalDevices,
		"by_status": stats.ByStatus,
		"by_mode":   stats.ByMode,
		"connected": s.hub.ConnectionCount(),
	})
}

// writeDeviceError maps device-layer sentinel errors onto HTTP responses.
func writeDeviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, device.ErrDeviceNotFound):
		writeNotFound(w, "device not found")
	case errors.Is(err, device.ErrDeviceExists):
		writeError(w, http.StatusConflict, ErrCodeConflict, "device already exists")
	case errors.Is(err, device.ErrInvalidID),
		errors.Is(err, device.ErrInvalidName),
		errors.Is(err, device.ErrInvalidSecret),
		errors.Is(err, device.ErrInvalidDevice):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	default:
		writeInternalError(w, "device operation failed")
	}
}
