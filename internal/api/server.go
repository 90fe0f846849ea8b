package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/posterrama/fleet-core/internal/bridge"
	"github.com/posterrama/fleet-core/internal/capability"
	"github.com/posterrama/fleet-core/internal/device"
	"github.com/posterrama/fleet-core/internal/hub"
	"github.com/posterrama/fleet-core/internal/infrastructure/config"
	"github.com/posterrama/fleet-core/internal/infrastructure/logging"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// DeviceHub is the socket-hub surface the API consumes. *hub.Hub
// satisfies it; tests substitute a fake.
type DeviceHub interface {
	HandleConnection(w http.ResponseWriter, r *http.Request)
	SendCommand(ctx context.Context, deviceID, cmdType string, payload map[string]any, timeout time.Duration) (hub.AckResult, error)
	Broadcast(command map[string]any) int
	IsConnected(deviceID string) bool
	ConnectionCount() int
	ConnectedIDs() []string
}

// BridgeStats exposes bridge counters and command history to the
// metrics and history endpoints. Optional; *bridge.Bridge satisfies it.
type BridgeStats interface {
	GetMetrics() bridge.Metrics
	CommandHistory() []bridge.HistoryEntry
}

// BrokerStatus reports broker connectivity for the metrics endpoint.
// Optional; *mqtt.Client satisfies it.
type BrokerStatus interface {
	IsConnected() bool
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config       config.APIConfig
	WS           config.WebSocketConfig
	Security     config.SecurityConfig
	Logger       *logging.Logger
	Registry     *device.Registry
	Capabilities *capability.Registry
	Hub          DeviceHub
	Bridge       BridgeStats  // optional
	Broker       BrokerStatus // optional
	Version      string
}

// Server is the HTTP surface of Fleet Core: the admin REST API plus the
// device WebSocket endpoint, which it mounts but does not own.
//
// Created with New(), started with Start(), stopped with Close().
type Server struct {
	cfg      config.APIConfig
	wsCfg    config.WebSocketConfig
	secCfg   config.SecurityConfig
	logger   *logging.Logger
	registry *device.Registry
	caps     *capability.Registry
	hub      DeviceHub
	bridge   BridgeStats
	broker   BrokerStatus
	version  string

	server    *http.Server
	startTime time.Time
}

// New creates an API server. It does not listen until Start.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("device registry is required")
	}
	if deps.Capabilities == nil {
		return nil, fmt.Errorf("capability registry is required")
	}
	if deps.Hub == nil {
		return nil, fmt.Errorf("device hub is required")
	}

	return &Server{
		cfg:      deps.Config,
		wsCfg:    deps.WS,
		secCfg:   deps.Security,
		logger:   deps.Logger,
		registry: deps.Registry,
		caps:     deps.Capabilities,
		hub:      deps.Hub,
		bridge:   deps.Bridge,
		broker:   deps.Broker,
		version:  deps.Version,
	}, nil
}

// Start launches the HTTP listener in a background goroutine.
func (s *Server) Start(_ context.Context) error {
	s.startTime = time.Now()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server, waiting up to 10 seconds
// for in-flight requests.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
