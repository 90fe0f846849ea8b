package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Device WebSocket endpoint. No bearer auth: devices authenticate
	// in-band with the hello handshake.
	r.Get(s.wsCfg.Path, s.hub.HandleConnection)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check and metrics (no auth required for monitoring)
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		// Protected routes (admin layer bearer tokens)
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Route("/devices", func(r chi.Router) {
				r.Get("/", s.handleListDevices)
				r.Post("/", s.handleCreateDevice)
				r.Get("/stats", s.handleDeviceStats)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetDevice)
					r.Patch("/", s.handleUpdateDevice)
					r.Delete("/", s.handleDeleteDevice)
					r.Post("/secret", s.handleRotateSecret)
					r.Put("/state", s.handleSetDeviceState)
					r.Put("/settings", s.handleSetDeviceSettings)
					r.Post("/command", s.handleDeviceCommand)
					r.Get("/capabilities", s.handleDeviceCapabilities)
					r.Post("/capabilities/{capability}", s.handleExecuteCapability)
				})
			})

			r.Get("/capabilities", s.handleListCapabilities)
			r.Post("/broadcast/command", s.handleBroadcastCommand)
			r.Get("/commands/history", s.handleCommandHistory)
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
