package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the UWB ranging core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Coordinator CoordinatorConfig `yaml:"coordinator"`
	Transport   TransportConfig   `yaml:"transport"`
	Database    DatabaseConfig    `yaml:"database"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	InfluxDB    InfluxDBConfig    `yaml:"influxdb"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// CoordinatorConfig contains adapter and session coordination settings.
type CoordinatorConfig struct {
	// CountryCode is the initial regulatory country code (two ASCII letters).
	CountryCode string `yaml:"country_code"`

	// MaxSessions caps concurrently registered sessions. Zero uses the
	// hardware-advertised limit.
	MaxSessions int `yaml:"max_sessions"`

	// Timeouts bounds the per-command notification waits, in milliseconds.
	Timeouts CommandTimeoutConfig `yaml:"timeouts"`

	// WatchdogTimeout bounds the hardware enable sequence, in milliseconds.
	WatchdogTimeout int `yaml:"watchdog_timeout"`

	// DiagnosticsMinInterval throttles error diagnostics captures, in seconds.
	DiagnosticsMinInterval int `yaml:"diagnostics_min_interval"`

	// RestartMaxElapsed caps the recovery retry window, in seconds.
	RestartMaxElapsed int `yaml:"restart_max_elapsed"`

	// HistoryRetentionDays is how long session transition history is kept.
	HistoryRetentionDays int `yaml:"history_retention_days"`
}

// CommandTimeoutConfig contains per-operation notification wait bounds in
// milliseconds.
type CommandTimeoutConfig struct {
	Open        int `yaml:"open"`
	Start       int `yaml:"start"`
	Stop        int `yaml:"stop"`
	Close       int `yaml:"close"`
	Reconfigure int `yaml:"reconfigure"`
}

// TransportConfig contains radio transport settings.
type TransportConfig struct {
	// Driver selects the transport backend. Only "loopback" is built in.
	Driver string `yaml:"driver"`

	// Loopback configures the simulated transport.
	Loopback LoopbackConfig `yaml:"loopback"`
}

// LoopbackConfig contains simulated transport settings.
type LoopbackConfig struct {
	// ChipIDs are the simulated chip identifiers.
	ChipIDs []string `yaml:"chip_ids"`

	// MaxSessions is the advertised session limit.
	MaxSessions int `yaml:"max_sessions"`

	// NotifyDelay is the simulated command-to-notification latency, in
	// milliseconds.
	NotifyDelay int `yaml:"notify_delay"`

	// RangingInterval is the simulated measurement period, in milliseconds.
	RangingInterval int `yaml:"ranging_interval"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
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
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
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

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: UWBCORE_SECTION_KEY
// For example: UWBCORE_DATABASE_PATH, UWBCORE_MQTT_HOST
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
		Coordinator: CoordinatorConfig{
			CountryCode: "US",
			Timeouts: CommandTimeoutConfig{
				Open:        3000,
				Start:       3000,
				Stop:        3000,
				Close:       3000,
				Reconfigure: 3000,
			},
			WatchdogTimeout:        10000,
			DiagnosticsMinInterval: 3600,
			RestartMaxElapsed:      30,
			HistoryRetentionDays:   30,
		},
		Transport: TransportConfig{
			Driver: "loopback",
			Loopback: LoopbackConfig{
				ChipIDs:         []string{"chip0"},
				MaxSessions:     5,
				NotifyDelay:     10,
				RangingInterval: 200,
			},
		},
		Database: DatabaseConfig{
			Path:        "./data/uwbcore.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Enabled: true,
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "uwbcore",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: UWBCORE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Coordinator
	if v := os.Getenv("UWBCORE_COUNTRY_CODE"); v != "" {
		cfg.Coordinator.CountryCode = v
	}
	if v := os.Getenv("UWBCORE_MAX_SESSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Coordinator.MaxSessions = n
		}
	}

	// Database
	if v := os.Getenv("UWBCORE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("UWBCORE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("UWBCORE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("UWBCORE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("UWBCORE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Coordinator validation
	if c.Coordinator.CountryCode != "" && len(c.Coordinator.CountryCode) != 2 {
		errs = append(errs, "coordinator.country_code must be two letters")
	}
	if c.Coordinator.MaxSessions < 0 {
		errs = append(errs, "coordinator.max_sessions must not be negative")
	}
	if c.Coordinator.WatchdogTimeout <= 0 {
		errs = append(errs, "coordinator.watchdog_timeout must be positive")
	}

	// Transport validation
	if c.Transport.Driver != "loopback" {
		errs = append(errs, fmt.Sprintf("transport.driver %q is not supported", c.Transport.Driver))
	}
	if len(c.Transport.Loopback.ChipIDs) == 0 {
		errs = append(errs, "transport.loopback.chip_ids must not be empty")
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Token == "" {
			errs = append(errs, "influxdb.token is required when influxdb is enabled (set UWBCORE_INFLUXDB_TOKEN environment variable)")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// CommandTimeouts returns the per-operation waits as Durations.
func (c *Config) CommandTimeouts() (open, start, stop, closeT, reconfigure time.Duration) {
	ms := func(v int) time.Duration { return time.Duration(v) * time.Millisecond }
	return ms(c.Coordinator.Timeouts.Open),
		ms(c.Coordinator.Timeouts.Start),
		ms(c.Coordinator.Timeouts.Stop),
		ms(c.Coordinator.Timeouts.Close),
		ms(c.Coordinator.Timeouts.Reconfigure)
}

// GetWatchdogTimeout returns the enable watchdog bound as a Duration.
func (c *Config) GetWatchdogTimeout() time.Duration {
	return time.Duration(c.Coordinator.WatchdogTimeout) * time.Millisecond
}

// GetDiagnosticsMinInterval returns the diagnostics throttle as a Duration.
func (c *Config) GetDiagnosticsMinInterval() time.Duration {
	return time.Duration(c.Coordinator.DiagnosticsMinInterval) * time.Second
}

// GetRestartMaxElapsed returns the recovery retry window as a Duration.
func (c *Config) GetRestartMaxElapsed() time.Duration {
	return time.Duration(c.Coordinator.RestartMaxElapsed) * time.Second
}

// GetHistoryRetention returns the transition history retention as a Duration.
func (c *Config) GetHistoryRetention() time.Duration {
	return time.Duration(c.Coordinator.HistoryRetentionDays) * 24 * time.Hour
}
