package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/posterrama/fleet-core/internal/capability"
	"github.com/posterrama/fleet-core/internal/device"
	"github.com/posterrama/fleet-core/internal/hub"
)

// commandRequest is a raw socket command for one device.
type commandRequest struct {
	Type      string         `json:"type"`
	Payload   map[string]any `json:"payload,omitempty"`
	TimeoutMs int            `json:"timeout_ms,omitempty"`
}

// handleDeviceCommand delivers a command over the device's socket and
// waits for the ack. Delivery failures map onto distinct status codes
// so the admin layer can tell "offline" from "slow" from "dropped".
func (s *Server) handleDeviceCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Type == "" {
		writeBadRequest(w, "command type is required")
		return
	}

	id := chi.URLParam(r, "id")
	if _, err := s.registry.GetDevice(r.Context(), id); err != nil {
		writeDeviceError(w, err)
		return
	}

	res, err := s.hub.SendCommand(r.Context(), id, req.Type, req.Payload,
		time.Duration(req.TimeoutMs)*time.Millisecond)
	if err != nil {
		writeCommandError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": res.Status,
		"info":   res.Info,
	})
}

// handleBroadcastCommand sends a fire-and-forget command to every
// connected device.
func (s *Server) handleBroadcastCommand(w http.ResponseWriter, r *http.Request) {
	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Type == "" {
		writeBadRequest(w, "command type is required")
		return
	}

	command := map[string]any{"type": req.Type}
	if req.Payload != nil {
		command["payload"] = req.Payload
	}
	delivered := s.hub.Broadcast(command)

	writeJSON(w, http.StatusOK, map[string]any{"delivered": delivered})
}

// executeCapabilityRequest is the value envelope for capability execution.
type executeCapabilityRequest struct {
	Value any `json:"value"`
}

// handleExecuteCapability runs a capability handler for one device,
// same path the MQTT bridge uses. The capability segment accepts the
// dotted ID or its underscore slug.
func (s *Server) handleExecuteCapability(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	capID := capability.ID(chi.URLParam(r, "capability"))
	if !s.caps.Has(capID) {
		capID = capability.ParseSlug(string(capID))
	}

	var req executeCapabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.caps.Execute(r.Context(), capID, id, req.Value); err != nil {
		writeCapabilityError(w, err)
		return
	}

	dev, err := s.registry.GetDevice(r.Context(), id)
	if err != nil {
		writeDeviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.view(dev))
}

// handleCommandHistory returns the bridge's recent command log.
func (s *Server) handleCommandHistory(w http.ResponseWriter, _ *http.Request) {
	if s.bridge == nil {
		writeJSON(w, http.StatusOK, map[string]any{"commands": []any{}, "count": 0})
		return
	}
	history := s.bridge.CommandHistory()
	writeJSON(w, http.StatusOK, map[string]any{"commands": history, "count": len(history)})
}

// writeCommandError maps hub delivery errors onto HTTP responses.
func writeCommandError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, hub.ErrNotConnected):
		writeError(w, http.StatusConflict, ErrCodeNotConnected, "device has no live connection")
	case errors.Is(err, hub.ErrAckTimeout):
		writeError(w, http.StatusGatewayTimeout, ErrCodeAckTimeout, "device did not acknowledge in time")
	case errors.Is(err, hub.ErrSocketClosed):
		writeError(w, http.StatusBadGateway, ErrCodeSocketClosed, "device connection closed during delivery")
	default:
		writeInternalError(w, "command delivery failed")
	}
}

// writeCapabilityError maps capability execution errors onto HTTP responses.
func writeCapabilityError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, capability.ErrNotFound):
		writeNotFound(w, "unknown capability")
	case errors.Is(err, capability.ErrNotCommandable):
		writeError(w, http.StatusMethodNotAllowed, ErrCodeBadRequest, "capability is read-only")
	case errors.Is(err, capability.ErrInvalidValue):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, device.ErrDeviceNotFound):
		writeNotFound(w, "device not found")
	default:
		writeInternalError(w, "capability execution failed")
	}
}
