// Posterrama Fleet Core - device fleet command and control
//
// Fleet Core terminates device WebSocket connections, persists the
// device catalogue, and mirrors the fleet onto MQTT for third-party
// consoles. The admin layer talks to it over the REST API.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/posterrama/fleet-core/migrations"

	"github.com/posterrama/fleet-core/internal/api"
	"github.com/posterrama/fleet-core/internal/bridge"
	"github.com/posterrama/fleet-core/internal/capability"
	"github.com/posterrama/fleet-core/internal/device"
	"github.com/posterrama/fleet-core/internal/hub"
	"github.com/posterrama/fleet-core/internal/infrastructure/config"
	"github.com/posterrama/fleet-core/internal/infrastructure/database"
	"github.com/posterrama/fleet-core/internal/infrastructure/logging"
	"github.com/posterrama/fleet-core/internal/infrastructure/mqtt"
	"github.com/posterrama/fleet-core/internal/infrastructure/telemetry"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting Fleet Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)

	// Open database and run migrations
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	// Device registry
	deviceRegistry := device.NewRegistry(device.NewSQLiteRepository(db.DB))
	deviceRegistry.SetLogger(log)
	if refreshErr := deviceRegistry.RefreshCache(ctx); refreshErr != nil {
		return fmt.Errorf("loading device registry: %w", refreshErr)
	}
	log.Info("device registry initialised", "devices", deviceRegistry.GetDeviceCount())

	// MQTT broker. The bridge is the only broker consumer, so a disabled
	// bridge skips the connection entirely and an unreachable broker does
	// not block startup.
	var mqttClient *mqtt.Client
	var topics mqtt.Topics
	if cfg.Bridge.Enabled {
		topics = mqtt.NewTopics(cfg.Bridge.TopicPrefix, cfg.Bridge.Discovery.Prefix)
		mqttClient, err = mqtt.Connect(cfg.MQTT, topics)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT connected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("bridge disabled, skipping MQTT connection")
	}

	// Telemetry (optional)
	var telemetryClient *telemetry.Client
	if cfg.Telemetry.Enabled {
		telemetryClient, err = telemetry.Connect(cfg.Telemetry)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing telemetry connection")
			if closeErr := telemetryClient.Close(); closeErr != nil {
				log.Error("error closing telemetry", "error", closeErr)
			}
		}()
		telemetryClient.SetOnError(func(err error) {
			log.Error("telemetry write error", "error", err)
		})
		log.Info("telemetry connected", "url", cfg.Telemetry.URL, "bucket", cfg.Telemetry.Bucket)
	} else {
		log.Info("telemetry disabled")
	}

	// Socket hub. Devices authenticate against their stored secret hash;
	// connectivity transitions and activity feed the last-seen column.
	deviceHub := hub.New(cfg.WebSocket, verifyDevice(deviceRegistry), hub.Callbacks{
		OnConnect: func(deviceID string) {
			touch(deviceRegistry, log, deviceID, device.StatusOnline)
		},
		OnDisconnect: func(deviceID string) {
			touch(deviceRegistry, log, deviceID, device.StatusOffline)
		},
		OnActivity: func(deviceID string) {
			touch(deviceRegistry, log, deviceID, device.StatusOnline)
		},
		OnState: func(deviceID string, state map[string]any) {
			if err := deviceRegistry.SetDeviceState(context.Background(), deviceID, device.State(state)); err != nil {
				log.Warn("device state report rejected", "device_id", deviceID, "error", err)
			}
		},
	}, log)
	defer func() {
		log.Info("closing socket hub")
		deviceHub.Close()
	}()

	// Capability catalog
	capabilities := capability.NewRegistry()
	capabilities.Init(capability.Deps{
		Store:     deviceRegistry,
		Commander: deviceHub,
		Logger:    log,
	})

	// MQTT bridge (optional)
	var fleetBridge *bridge.Bridge
	if cfg.Bridge.Enabled {
		opts := bridge.Options{
			Config:       cfg,
			Topics:       topics,
			Client:       mqttClient,
			Devices:      deviceRegistry,
			Capabilities: capabilities,
			Hub:          deviceHub,
			Logger:       log,
		}
		if telemetryClient != nil {
			opts.Telemetry = telemetryClient
		}
		fleetBridge, err = bridge.New(opts)
		if err != nil {
			return fmt.Errorf("creating bridge: %w", err)
		}
		if startErr := fleetBridge.Start(ctx); startErr != nil {
			return fmt.Errorf("starting bridge: %w", startErr)
		}
		defer func() {
			log.Info("stopping bridge")
			fleetBridge.Stop()
		}()
	}

	// HTTP API + device WebSocket endpoint
	apiDeps := api.Deps{
		Config:       cfg.API,
		WS:           cfg.WebSocket,
		Security:     cfg.Security,
		Logger:       log,
		Registry:     deviceRegistry,
		Capabilities: capabilities,
		Hub:          deviceHub,
		Version:      version,
	}
	if mqttClient != nil {
		apiDeps.Broker = mqttClient
	}
	if fleetBridge != nil {
		apiDeps.Bridge = fleetBridge
	}
	apiServer, err := api.New(apiDeps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := apiServer.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		log.Info("stopping API server")
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	if err := healthCheck(ctx, db, mqttClient, telemetryClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// verifyDevice builds the hub auth callback over the device registry.
// Unknown devices and bad secrets are rejections, not errors.
func verifyDevice(registry *device.Registry) hub.VerifyFunc {
	return func(ctx context.Context, deviceID, secret string) (bool, error) {
		d, err := registry.GetDevice(ctx, deviceID)
		if err != nil {
			if errors.Is(err, device.ErrDeviceNotFound) {
				return false, nil
			}
			return false, err
		}
		if err := device.VerifySecret(secret, d.SecretHash); err != nil {
			return false, nil
		}
		return true, nil
	}
}

// touch records a connectivity transition with the current timestamp.
func touch(registry *device.Registry, log *logging.Logger, deviceID string, status device.Status) {
	if err := registry.TouchDevice(context.Background(), deviceID, status, time.Now().UTC()); err != nil {
		log.Warn("device touch failed", "device_id", deviceID, "error", err)
	}
}

// getConfigPath returns the configuration file path.
// Uses FLEETCORE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("FLEETCORE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, telemetryClient *telemetry.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	if telemetryClient != nil {
		if err := telemetryClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("telemetry: %w", err)
		}
	}
	return nil
}
