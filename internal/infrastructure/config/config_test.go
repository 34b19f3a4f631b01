package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_ValidConfig(t *testing.T) {
	// Create a temporary config file
	content := `
coordinator:
  country_code: "GB"
  watchdog_timeout: 10000
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
transport:
  driver: "loopback"
  loopback:
    chip_ids: ["chip0"]
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Coordinator.CountryCode != "GB" {
		t.Errorf("Coordinator.CountryCode = %q, want %q", cfg.Coordinator.CountryCode, "GB")
	}

	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}

	if cfg.MQTT.Broker.Host != "localhost" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "localhost")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	content := `
database:
  path: ""
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected validation error for empty database.path, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := defaultConfig()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid defaults",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "country code wrong length",
			mutate:  func(c *Config) { c.Coordinator.CountryCode = "USA" },
			wantErr: true,
		},
		{
			name:    "negative max sessions",
			mutate:  func(c *Config) { c.Coordinator.MaxSessions = -1 },
			wantErr: true,
		},
		{
			name:    "zero watchdog timeout",
			mutate:  func(c *Config) { c.Coordinator.WatchdogTimeout = 0 },
			wantErr: true,
		},
		{
			name:    "unsupported transport driver",
			mutate:  func(c *Config) { c.Transport.Driver = "pcie" },
			wantErr: true,
		},
		{
			name:    "no chip ids",
			mutate:  func(c *Config) { c.Transport.Loopback.ChipIDs = nil },
			wantErr: true,
		},
		{
			name:    "missing database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: true,
		},
		{
			name:    "invalid QoS",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: true,
		},
		{
			name: "influxdb enabled without token",
			mutate: func(c *Config) {
				c.InfluxDB.Enabled = true
				c.InfluxDB.URL = "http://localhost:8086"
				c.InfluxDB.Token = ""
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_CommandTimeouts(t *testing.T) {
	cfg := &Config{
		Coordinator: CoordinatorConfig{
			Timeouts: CommandTimeoutConfig{
				Open:        1000,
				Start:       2000,
				Stop:        3000,
				Close:       4000,
				Reconfigure: 5000,
			},
		},
	}

	open, start, stop, closeT, reconfigure := cfg.CommandTimeouts()
	if open.Milliseconds() != 1000 {
		t.Errorf("open = %v, want 1s", open)
	}
	if start.Milliseconds() != 2000 {
		t.Errorf("start = %v, want 2s", start)
	}
	if stop.Milliseconds() != 3000 {
		t.Errorf("stop = %v, want 3s", stop)
	}
	if closeT.Milliseconds() != 4000 {
		t.Errorf("close = %v, want 4s", closeT)
	}
	if reconfigure.Milliseconds() != 5000 {
		t.Errorf("reconfigure = %v, want 5s", reconfigure)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	// Set environment variables
	t.Setenv("UWBCORE_COUNTRY_CODE", "DE")
	t.Setenv("UWBCORE_MAX_SESSIONS", "8")
	t.Setenv("UWBCORE_DATABASE_PATH", "/custom/path.db")
	t.Setenv("UWBCORE_MQTT_HOST", "mqtt.example.com")
	t.Setenv("UWBCORE_MQTT_USERNAME", "testuser")
	t.Setenv("UWBCORE_MQTT_PASSWORD", "testpass")
	t.Setenv("UWBCORE_INFLUXDB_TOKEN", "secret-token")

	applyEnvOverrides(cfg)

	if cfg.Coordinator.CountryCode != "DE" {
		t.Errorf("Coordinator.CountryCode = %q, want %q", cfg.Coordinator.CountryCode, "DE")
	}

	if cfg.Coordinator.MaxSessions != 8 {
		t.Errorf("Coordinator.MaxSessions = %d, want 8", cfg.Coordinator.MaxSessions)
	}

	if cfg.Database.Path != "/custom/path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/custom/path.db")
	}

	if cfg.MQTT.Broker.Host != "mqtt.example.com" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "mqtt.example.com")
	}

	if cfg.MQTT.Auth.Username != "testuser" {
		t.Errorf("MQTT.Auth.Username = %q, want %q", cfg.MQTT.Auth.Username, "testuser")
	}

	if cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth.Password = %q, want %q", cfg.MQTT.Auth.Password, "testpass")
	}

	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q, want %q", cfg.InfluxDB.Token, "secret-token")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Coordinator.CountryCode == "" {
		t.Error("defaultConfig should have non-empty Coordinator.CountryCode")
	}

	if cfg.Database.Path == "" {
		t.Error("defaultConfig should have non-empty Database.Path")
	}

	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("defaultConfig MQTT.Broker.Port = %d, want 1883", cfg.MQTT.Broker.Port)
	}

	if cfg.Transport.Driver != "loopback" {
		t.Errorf("defaultConfig Transport.Driver = %q, want %q", cfg.Transport.Driver, "loopback")
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("defaultConfig should validate, got %v", err)
	}
}
