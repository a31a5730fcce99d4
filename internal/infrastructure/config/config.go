package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Gray Meter Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	MQTT      MQTTConfig      `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Meter     MeterConfig     `yaml:"meter"`
	Display   DisplayConfig   `yaml:"display"`
	API       APIConfig       `yaml:"api"`
	Logging   LoggingConfig   `yaml:"logging"`
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
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
//
// Enabled controls whether the client reconnects automatically after a
// connection loss. When false, a dropped connection terminates the process.
type MQTTReconnectConfig struct {
	Enabled      bool `yaml:"enabled"`
	InitialDelay int  `yaml:"initial_delay"`
	MaxDelay     int  `yaml:"max_delay"`
}

// InfluxDBConfig contains settings for the InfluxDB v2 sink.
type InfluxDBConfig struct {
	URL    string       `yaml:"url"`
	Token  string       `yaml:"token"`
	Org    string       `yaml:"org"`
	Bucket string       `yaml:"bucket"`
	Writer WriterConfig `yaml:"writer"`

	// ReadOnly disables writes entirely; encoded records are logged and
	// discarded. Useful when replaying live traffic against a production
	// bucket.
	ReadOnly bool `yaml:"read_only"`
}

// WriterConfig contains buffered batch writer settings.
type WriterConfig struct {
	// QueueSize is the capacity of the submission channel. A full channel
	// blocks producers (backpressure).
	QueueSize int `yaml:"queue_size"`

	// MaxLines flushes the pending batch once this many lines accumulate.
	MaxLines int `yaml:"max_lines"`

	// MaxBytes flushes the pending batch once this many bytes accumulate.
	MaxBytes int `yaml:"max_bytes"`

	// FlushInterval is the periodic flush timer in seconds.
	FlushInterval int `yaml:"flush_interval"`
}

// TelemetryConfig contains smart-relay correlation settings.
type TelemetryConfig struct {
	// TopicPrefix is the prefix relays publish telemetry under,
	// e.g. "tasmota/tele" for topics like "tasmota/tele/garage/plug/SENSOR".
	TopicPrefix string `yaml:"topic_prefix"`

	// Scheme selects the topic scheme: "fixed" or "regex".
	Scheme string `yaml:"scheme"`

	// DeviceIDPattern and KindPattern configure the regex scheme.
	// DeviceIDPattern must contain a capture group named 'device_id';
	// KindPattern a capture group named 'kind'.
	DeviceIDPattern string `yaml:"device_id_pattern"`
	KindPattern     string `yaml:"kind_pattern"`

	// StaleAfter is the age in seconds beyond which an unpaired fragment
	// is evicted from the correlation buffer.
	StaleAfter int `yaml:"stale_after"`

	// SweepInterval is how often in seconds the stale sweep runs.
	SweepInterval int `yaml:"sweep_interval"`
}

// MeterConfig contains pulse-meter settings.
type MeterConfig struct {
	Enabled bool `yaml:"enabled"`

	// Topic delivers raw impulse messages, e.g. "meter-reader/impulse/raw".
	Topic string `yaml:"topic"`

	// Device tags the meter's records, e.g. "garage/meter".
	Device string `yaml:"device"`
}

// DisplayConfig contains the auxiliary character display settings.
type DisplayConfig struct {
	Enabled bool `yaml:"enabled"`

	// Topic is where rendered pages are published.
	Topic  string `yaml:"topic"`
	Retain bool   `yaml:"retain"`

	// MeterTopic delivers summarised meter readings to render.
	MeterTopic string `yaml:"meter_topic"`

	// MeterDevice is the device tag used when querying yesterday's usage.
	MeterDevice string `yaml:"meter_device"`

	Buttons []DisplayButtonConfig `yaml:"buttons"`
}

// DisplayButtonConfig forwards a button press topic to an output topic.
type DisplayButtonConfig struct {
	Topic         string `yaml:"topic"`
	OutputTopic   string `yaml:"output_topic"`
	OutputPayload string `yaml:"output_payload"`
	Retain        bool   `yaml:"retain"`
}

// APIConfig contains the ops HTTP endpoint settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
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
// Environment variables follow the pattern: GRAYMETER_SECTION_KEY
// For example: GRAYMETER_MQTT_HOST, GRAYMETER_INFLUXDB_TOKEN
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
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host: "localhost",
				Port: 1883,
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				Enabled:      true,
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		InfluxDB: InfluxDBConfig{
			URL:    "http://localhost:8086",
			Bucket: "telemetry",
			Writer: WriterConfig{
				QueueSize:     64,
				MaxLines:      5000,
				MaxBytes:      30 * 1024,
				FlushInterval: 60,
			},
		},
		Telemetry: TelemetryConfig{
			TopicPrefix:   "tasmota/tele",
			Scheme:        "fixed",
			StaleAfter:    300,
			SweepInterval: 60,
		},
		Meter: MeterConfig{
			Topic:  "meter-reader/impulse/raw",
			Device: "garage/meter",
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8080,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
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
// Environment variables follow the pattern: GRAYMETER_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// MQTT
	if v := os.Getenv("GRAYMETER_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GRAYMETER_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("GRAYMETER_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GRAYMETER_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("GRAYMETER_INFLUXDB_URL"); v != "" {
		cfg.InfluxDB.URL = v
	}
	if v := os.Getenv("GRAYMETER_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
	if v := os.Getenv("GRAYMETER_INFLUXDB_ORG"); v != "" {
		cfg.InfluxDB.Org = v
	}
	if v := os.Getenv("GRAYMETER_INFLUXDB_BUCKET"); v != "" {
		cfg.InfluxDB.Bucket = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// MQTT validation
	if c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required")
	}
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// InfluxDB validation
	if c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required")
	}
	if c.InfluxDB.Bucket == "" {
		errs = append(errs, "influxdb.bucket is required")
	}
	if !c.InfluxDB.ReadOnly && c.InfluxDB.Token == "" {
		errs = append(errs, "influxdb.token is required (set GRAYMETER_INFLUXDB_TOKEN environment variable)")
	}

	// Telemetry validation
	switch c.Telemetry.Scheme {
	case "fixed", "regex":
	default:
		errs = append(errs, `telemetry.scheme must be "fixed" or "regex"`)
	}
	if c.Telemetry.Scheme == "regex" {
		if c.Telemetry.DeviceIDPattern == "" || c.Telemetry.KindPattern == "" {
			errs = append(errs, "telemetry.device_id_pattern and telemetry.kind_pattern are required for the regex scheme")
		}
	}
	if c.Telemetry.TopicPrefix == "" {
		errs = append(errs, "telemetry.topic_prefix is required")
	}

	// Meter validation
	if c.Meter.Enabled && c.Meter.Topic == "" {
		errs = append(errs, "meter.topic is required when the meter is enabled")
	}

	// Display validation
	if c.Display.Enabled {
		if c.Display.Topic == "" {
			errs = append(errs, "display.topic is required when the display is enabled")
		}
		if c.Display.MeterTopic == "" {
			errs = append(errs, "display.meter_topic is required when the display is enabled")
		}
	}

	// API validation
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// StaleAge returns the correlation buffer eviction age as a Duration.
func (c *TelemetryConfig) StaleAge() time.Duration {
	return time.Duration(c.StaleAfter) * time.Second
}

// SweepEvery returns the stale sweep interval as a Duration.
func (c *TelemetryConfig) SweepEvery() time.Duration {
	return time.Duration(c.SweepInterval) * time.Second
}

// FlushEvery returns the writer flush interval as a Duration.
func (c *WriterConfig) FlushEvery() time.Duration {
	return time.Duration(c.FlushInterval) * time.Second
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *APIConfig) GetReadTimeout() time.Duration {
	return time.Duration(c.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *APIConfig) GetWriteTimeout() time.Duration {
	return time.Duration(c.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *APIConfig) GetIdleTimeout() time.Duration {
	return time.Duration(c.Timeouts.Idle) * time.Second
}
