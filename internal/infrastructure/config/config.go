package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Fleet Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	API       APIConfig       `yaml:"api"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Bridge    BridgeConfig    `yaml:"bridge"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// BaseURL is the externally reachable root of this server. Relative
	// poster preview paths reported by devices are resolved against it.
	BaseURL string `yaml:"base_url"`

	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
//
// Password may be given inline or indirectly via PasswordEnv, which names an
// environment variable holding the secret. The indirection keeps broker
// credentials out of config files checked into deployment repos.
type MQTTAuthConfig struct {
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	PasswordEnv string `yaml:"password_env"`
}

// ResolvePassword returns the broker password, preferring the PasswordEnv
// indirection when it is set and the named variable is non-empty.
func (a MQTTAuthConfig) ResolvePassword() string {
	if a.PasswordEnv != "" {
		if v := os.Getenv(a.PasswordEnv); v != "" {
			return v
		}
	}
	return a.Password
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// BridgeConfig contains the MQTT device bridge settings.
type BridgeConfig struct {
	// Enabled controls whether the bridge starts at all. When false the
	// fleet is reachable over HTTP and WebSocket only.
	Enabled bool `yaml:"enabled"`

	// TopicPrefix is the root of the bridge topic namespace.
	// Default: "posterrama"
	TopicPrefix string `yaml:"topic_prefix"`

	// Discovery controls retained discovery config publishing.
	Discovery DiscoveryConfig `yaml:"discovery"`

	// Availability controls retained online/offline publishing.
	Availability AvailabilityConfig `yaml:"availability"`

	// StateIntervalSeconds is the periodic state publish sweep interval.
	StateIntervalSeconds int `yaml:"state_interval_seconds"`

	// HistoryCap bounds the in-memory command history ring.
	HistoryCap int `yaml:"history_cap"`

	// Camera controls poster preview image publishing.
	Camera CameraConfig `yaml:"camera"`
}

// DiscoveryConfig contains discovery publishing settings.
type DiscoveryConfig struct {
	Enabled bool `yaml:"enabled"`

	// Prefix is the discovery topic root. Default: "homeassistant"
	Prefix string `yaml:"prefix"`
}

// AvailabilityConfig contains availability publishing settings.
type AvailabilityConfig struct {
	Enabled bool `yaml:"enabled"`

	// TimeoutSeconds is how long after the last heartbeat a device still
	// counts as online. Default: 90
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// CameraConfig contains camera preview publishing settings.
type CameraConfig struct {
	Enabled bool `yaml:"enabled"`

	// FetchTimeoutSeconds bounds a single preview image fetch.
	FetchTimeoutSeconds int `yaml:"fetch_timeout_seconds"`
}

// WebSocketConfig contains device WebSocket settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`

	// AuthTimeout is how long (seconds) an unauthenticated connection may
	// linger before the hello handshake must have completed.
	AuthTimeout int `yaml:"auth_timeout"`

	// AckTimeoutMs is the default deadline for awaited commands.
	AckTimeoutMs int `yaml:"ack_timeout_ms"`
}

// TelemetryConfig contains InfluxDB connection settings.
type TelemetryConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT validation settings. Fleet Core only validates
// tokens; issuance belongs to the admin layer.
type JWTConfig struct {
	Secret string `yaml:"secret"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: FLEETCORE_SECTION_KEY
// For example: FLEETCORE_DATABASE_PATH, FLEETCORE_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		API: APIConfig{
			Host:    "0.0.0.0",
			Port:    4000,
			BaseURL: "http://localhost:4000",
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Database: DatabaseConfig{
			Path:        "./data/fleetcore.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "fleetcore",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		Bridge: BridgeConfig{
			Enabled:     true,
			TopicPrefix: "posterrama",
			Discovery: DiscoveryConfig{
				Enabled: true,
				Prefix:  "homeassistant",
			},
			Availability: AvailabilityConfig{
				Enabled:        true,
				TimeoutSeconds: 90,
			},
			StateIntervalSeconds: 30,
			HistoryCap:           200,
			Camera: CameraConfig{
				Enabled:             true,
				FetchTimeoutSeconds: 5,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws/device",
			MaxMessageSize: 65536,
			PingInterval:   30,
			PongTimeout:    10,
			AuthTimeout:    10,
			AckTimeoutMs:   5000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: FLEETCORE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("FLEETCORE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("FLEETCORE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("FLEETCORE_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("FLEETCORE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("FLEETCORE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// API
	if v := os.Getenv("FLEETCORE_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("FLEETCORE_API_BASE_URL"); v != "" {
		cfg.API.BaseURL = v
	}

	// Bridge
	if v := os.Getenv("FLEETCORE_BRIDGE_TOPIC_PREFIX"); v != "" {
		cfg.Bridge.TopicPrefix = v
	}

	// Telemetry
	if v := os.Getenv("FLEETCORE_TELEMETRY_TOKEN"); v != "" {
		cfg.Telemetry.Token = v
	}

	// Security - JWT secret (IMPORTANT: always override in production)
	if v := os.Getenv("FLEETCORE_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// Validate checks the configuration for errors and security issues.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// Bridge validation
	if c.Bridge.Enabled {
		if c.Bridge.TopicPrefix == "" {
			errs = append(errs, "bridge.topic_prefix is required when the bridge is enabled")
		} else if strings.ContainsAny(c.Bridge.TopicPrefix, "+#/") {
			errs = append(errs, "bridge.topic_prefix must not contain '/', '+', or '#'")
		}
		if c.Bridge.StateIntervalSeconds < 1 {
			errs = append(errs, "bridge.state_interval_seconds must be at least 1")
		}
		if c.Bridge.HistoryCap < 1 {
			errs = append(errs, "bridge.history_cap must be at least 1")
		}
		if c.Bridge.Availability.Enabled && c.Bridge.Availability.TimeoutSeconds < 1 {
			errs = append(errs, "bridge.availability.timeout_seconds must be at least 1")
		}
	}

	// WebSocket validation
	if c.WebSocket.AckTimeoutMs < 500 {
		errs = append(errs, "websocket.ack_timeout_ms must be at least 500")
	}

	// Security validation - JWT secret is REQUIRED
	// The admin API controls physical displays; empty or weak secrets
	// would allow forged tokens to command the whole fleet.
	const minJWTSecretLength = 32
	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set FLEETCORE_JWT_SECRET environment variable)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters for adequate security")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// GetStateInterval returns the bridge state publish interval as a Duration.
func (c *Config) GetStateInterval() time.Duration {
	return time.Duration(c.Bridge.StateIntervalSeconds) * time.Second
}

// GetAvailabilityTimeout returns the device availability timeout as a Duration.
func (c *Config) GetAvailabilityTimeout() time.Duration {
	return time.Duration(c.Bridge.Availability.TimeoutSeconds) * time.Second
}

// GetAckTimeout returns the default awaited-command deadline as a Duration.
func (c *Config) GetAckTimeout() time.Duration {
	return time.Duration(c.WebSocket.AckTimeoutMs) * time.Millisecond
}

// GetCameraFetchTimeout returns the preview fetch timeout as a Duration.
func (c *Config) GetCameraFetchTimeout() time.Duration {
	return time.Duration(c.Bridge.Camera.FetchTimeoutSeconds) * time.Second
}
