package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
mqtt:
  broker:
    host: "broker.local"
    port: 8883
    tls: true
    client_id: "graymeter-test"
  qos: 2
influxdb:
  url: "http://influx.local:8086"
  token: "test-token"
  org: "home"
  bucket: "fizzle"
telemetry:
  topic_prefix: "tasmota/tele"
  scheme: "fixed"
meter:
  enabled: true
  topic: "meter-reader/impulse/raw"
  device: "garage/meter"
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.MQTT.Broker.Host != "broker.local" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "broker.local")
	}
	if cfg.MQTT.QoS != 2 {
		t.Errorf("MQTT.QoS = %d, want 2", cfg.MQTT.QoS)
	}
	if cfg.InfluxDB.Bucket != "fizzle" {
		t.Errorf("InfluxDB.Bucket = %q, want %q", cfg.InfluxDB.Bucket, "fizzle")
	}
	if !cfg.Meter.Enabled {
		t.Error("Meter.Enabled = false, want true")
	}
}

func TestLoad_DefaultsApplied(t *testing.T) {
	content := `
influxdb:
  token: "test-token"
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.MQTT.Broker.Host != "localhost" {
		t.Errorf("MQTT.Broker.Host = %q, want default %q", cfg.MQTT.Broker.Host, "localhost")
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("MQTT.Broker.Port = %d, want default 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.InfluxDB.Writer.MaxLines != 5000 {
		t.Errorf("InfluxDB.Writer.MaxLines = %d, want default 5000", cfg.InfluxDB.Writer.MaxLines)
	}
	if cfg.InfluxDB.Writer.MaxBytes != 30*1024 {
		t.Errorf("InfluxDB.Writer.MaxBytes = %d, want default %d", cfg.InfluxDB.Writer.MaxBytes, 30*1024)
	}
	if cfg.Telemetry.TopicPrefix != "tasmota/tele" {
		t.Errorf("Telemetry.TopicPrefix = %q, want default %q", cfg.Telemetry.TopicPrefix, "tasmota/tele")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want default %q", cfg.Logging.Level, "info")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	content := `
mqtt:
  broker:
    host: "file-host"
influxdb:
  token: "file-token"
`
	t.Setenv("GRAYMETER_MQTT_HOST", "env-host")
	t.Setenv("GRAYMETER_INFLUXDB_TOKEN", "env-token")

	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.MQTT.Broker.Host != "env-host" {
		t.Errorf("MQTT.Broker.Host = %q, want env override %q", cfg.MQTT.Broker.Host, "env-host")
	}
	if cfg.InfluxDB.Token != "env-token" {
		t.Errorf("InfluxDB.Token = %q, want env override %q", cfg.InfluxDB.Token, "env-token")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := defaultConfig()
		cfg.InfluxDB.Token = "test-token"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "missing broker host",
			mutate:  func(c *Config) { c.MQTT.Broker.Host = "" },
			wantErr: true,
		},
		{
			name:    "invalid qos",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: true,
		},
		{
			name:    "missing influxdb token",
			mutate:  func(c *Config) { c.InfluxDB.Token = "" },
			wantErr: true,
		},
		{
			name: "read-only allows missing token",
			mutate: func(c *Config) {
				c.InfluxDB.Token = ""
				c.InfluxDB.ReadOnly = true
			},
			wantErr: false,
		},
		{
			name:    "unknown scheme",
			mutate:  func(c *Config) { c.Telemetry.Scheme = "magic" },
			wantErr: true,
		},
		{
			name:    "regex scheme without patterns",
			mutate:  func(c *Config) { c.Telemetry.Scheme = "regex" },
			wantErr: true,
		},
		{
			name: "regex scheme with patterns",
			mutate: func(c *Config) {
				c.Telemetry.Scheme = "regex"
				c.Telemetry.DeviceIDPattern = `tele/(?P<device_id>.+)/\w+$`
				c.Telemetry.KindPattern = `/(?P<kind>\w+)$`
			},
			wantErr: false,
		},
		{
			name: "meter enabled without topic",
			mutate: func(c *Config) {
				c.Meter.Enabled = true
				c.Meter.Topic = ""
			},
			wantErr: true,
		},
		{
			name: "display enabled without topic",
			mutate: func(c *Config) {
				c.Display.Enabled = true
				c.Display.MeterTopic = "meter-reader/impulse"
			},
			wantErr: true,
		},
		{
			name: "api enabled with bad port",
			mutate: func(c *Config) {
				c.API.Enabled = true
				c.API.Port = 0
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

func TestDurationHelpers(t *testing.T) {
	cfg := defaultConfig()

	if got := cfg.Telemetry.StaleAge().Seconds(); got != 300 {
		t.Errorf("StaleAge() = %vs, want 300s", got)
	}
	if got := cfg.Telemetry.SweepEvery().Seconds(); got != 60 {
		t.Errorf("SweepEvery() = %vs, want 60s", got)
	}
	if got := cfg.InfluxDB.Writer.FlushEvery().Seconds(); got != 60 {
		t.Errorf("FlushEvery() = %vs, want 60s", got)
	}
}
