package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root of config.yaml. Durations are written the way
// time.ParseDuration reads them, e.g. "500ms" or "30s".
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Detection DetectionConfig `yaml:"detection"`
}

// DatabaseConfig locates the SQLite file holding the preset catalog.
type DatabaseConfig struct {
	Path        string        `yaml:"path"`
	WALMode     bool          `yaml:"wal_mode"`
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// MQTTConfig is the broker the HAN bridges publish live frames to.
type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	QoS      int    `yaml:"qos"`
}

// APIConfig configures the HTTP listener.
type APIConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
	CORS         CORSConfig    `yaml:"cors"`
}

// Addr returns host:port for http.Server.
func (c APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// CORSConfig lists what browsers on other origins may call.
// No allowed origins means any origin.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig tunes the live detection feed.
type WebSocketConfig struct {
	MaxMessageSize int           `yaml:"max_message_size"`
	PingInterval   time.Duration `yaml:"ping_interval"`
	PongTimeout    time.Duration `yaml:"pong_timeout"`
}

// InfluxDBConfig is the optional history of detection runs.
type InfluxDBConfig struct {
	Enabled       bool          `yaml:"enabled"`
	URL           string        `yaml:"url"`
	Token         string        `yaml:"token"`
	Org           string        `yaml:"org"`
	Bucket        string        `yaml:"bucket"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// LoggingConfig selects level, format (json or text) and stream (stdout or stderr).
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// DetectionConfig controls the live detection monitor and the preset catalog.
type DetectionConfig struct {
	// Debounce is the quiet period after the last frame from a meter
	// before detection runs. Bursts of frames collapse into one run.
	Debounce time.Duration `yaml:"debounce"`

	// SeedDefaults writes the built-in catalog into an empty presets table.
	SeedDefaults bool `yaml:"seed_defaults"`

	// PublishResults republishes every result on meterdetect/detection/{meter}.
	PublishResults bool `yaml:"publish_results"`
}

// Load reads path over the built-in defaults, then applies METERDETECT_*
// environment overrides and validates the result.
//
// Parameters:
//   - path: YAML file; keys it omits keep their default
//
// Returns:
//   - *Config: Validated configuration
//   - error: Read, parse, override or validation failure
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	if err := applyEnvOverrides(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Default returns the built-in configuration. The one-shot CLI commands
// use it as is.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:        "./data/meterdetect.db",
			WALMode:     true,
			BusyTimeout: 5 * time.Second,
		},
		MQTT: MQTTConfig{
			Enabled:  true,
			Host:     "localhost",
			Port:     1883,
			ClientID: "meterdetect",
			QoS:      1,
		},
		API: APIConfig{
			Host:         "0.0.0.0",
			Port:         8090,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30 * time.Second,
			PongTimeout:    10 * time.Second,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Detection: DetectionConfig{
			Debounce:       500 * time.Millisecond,
			SeedDefaults:   true,
			PublishResults: true,
		},
	}
}

// envOverride binds one environment variable to a config field.
type envOverride struct {
	name  string
	apply func(cfg *Config, value string) error
}

func setString(field func(*Config) *string) func(*Config, string) error {
	return func(cfg *Config, v string) error {
		*field(cfg) = v
		return nil
	}
}

func setPort(field func(*Config) *int) func(*Config, string) error {
	return func(cfg *Config, v string) error {
		port, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*field(cfg) = port
		return nil
	}
}

var envOverrides = []envOverride{
	{"METERDETECT_DATABASE_PATH", setString(func(c *Config) *string { return &c.Database.Path })},
	{"METERDETECT_MQTT_HOST", setString(func(c *Config) *string { return &c.MQTT.Host })},
	{"METERDETECT_MQTT_PORT", setPort(func(c *Config) *int { return &c.MQTT.Port })},
	{"METERDETECT_MQTT_USERNAME", setString(func(c *Config) *string { return &c.MQTT.Username })},
	{"METERDETECT_MQTT_PASSWORD", setString(func(c *Config) *string { return &c.MQTT.Password })},
	{"METERDETECT_API_HOST", setString(func(c *Config) *string { return &c.API.Host })},
	{"METERDETECT_API_PORT", setPort(func(c *Config) *int { return &c.API.Port })},
	{"METERDETECT_INFLUXDB_TOKEN", setString(func(c *Config) *string { return &c.InfluxDB.Token })},
	{"METERDETECT_LOG_LEVEL", setString(func(c *Config) *string { return &c.Logging.Level })},
}

// applyEnvOverrides sets every non-empty variable in envOverrides.
// lookup is os.LookupEnv outside tests.
func applyEnvOverrides(cfg *Config, lookup func(string) (string, bool)) error {
	for _, o := range envOverrides {
		v, ok := lookup(o.name)
		if !ok || v == "" {
			continue
		}
		if err := o.apply(cfg, v); err != nil {
			return fmt.Errorf("%s=%q: %w", o.name, v, err)
		}
	}
	return nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	check := func(bad bool, msg string) {
		if bad {
			errs = append(errs, errors.New(msg))
		}
	}

	check(c.Database.Path == "", "database.path is required")
	check(c.MQTT.Enabled && c.MQTT.Host == "", "mqtt.host is required when mqtt is enabled")
	check(c.MQTT.QoS < 0 || c.MQTT.QoS > 2, "mqtt.qos must be 0, 1 or 2")
	check(c.API.Port < 1 || c.API.Port > 65535, "api.port must be between 1 and 65535")
	check(c.Detection.Debounce < 0, "detection.debounce must not be negative")
	check(c.InfluxDB.Enabled && c.InfluxDB.URL == "", "influxdb.url is required when influxdb is enabled")

	return errors.Join(errs...)
}
