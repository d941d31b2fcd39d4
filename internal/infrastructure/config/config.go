package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration for the Gray Logic display bridge.
// Values come from defaults, then the YAML file, then GRAYLOGIC_* env vars.
type Config struct {
	Site      SiteConfig                 `yaml:"site"`
	Database  DatabaseConfig             `yaml:"database"`
	MQTT      MQTTConfig                 `yaml:"mqtt"`
	API       APIConfig                  `yaml:"api"`
	WebSocket WebSocketConfig            `yaml:"websocket"`
	InfluxDB  InfluxDBConfig             `yaml:"influxdb"`
	Logging   LoggingConfig              `yaml:"logging"`
	Bus       BusConfig                  `yaml:"bus"`
	Devices   []DeviceConfig             `yaml:"devices"`
	JoinMaps  map[string]JoinMapOverride `yaml:"join_maps"`
	Health    HealthConfig               `yaml:"health"`
	Telemetry TelemetryConfig            `yaml:"telemetry"`
}

// SiteConfig identifies the installation.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
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

// MQTTAuthConfig contains MQTT credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains reconnect backoff bounds in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// APIConfig contains the introspection HTTP server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeouts in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig contains WebSocket relay settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
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

// BusConfig identifies the join bus the displays are linked to.
type BusConfig struct {
	// ID names the bus instance; it becomes part of every join topic.
	ID string `yaml:"id"`
}

// DeviceConfig is one device entry. Properties are decoded by the
// factory registered for Type.
type DeviceConfig struct {
	Key        string             `yaml:"key"`
	Name       string             `yaml:"name"`
	Type       string             `yaml:"type"`
	Properties yaml.Node          `yaml:"properties"`
	Bridge     DeviceBridgeConfig `yaml:"bridge"`
}

// DeviceBridgeConfig places a device on the join bus.
type DeviceBridgeConfig struct {
	JoinStart  uint32 `yaml:"join_start"`
	JoinMapKey string `yaml:"join_map_key"`
}

// JoinMapOverride is a custom join table: join name → relative address.
type JoinMapOverride map[string]JoinOverrideConfig

// JoinOverrideConfig is one custom join address, 1-based relative to the
// device's join start.
type JoinOverrideConfig struct {
	JoinNumber uint32 `yaml:"join_number"`
	JoinSpan   uint32 `yaml:"join_span"`
}

// HealthConfig controls the bridge health reporter.
type HealthConfig struct {
	// Interval is the publish period in seconds.
	Interval int `yaml:"interval"`
}

// TelemetryConfig controls periodic display telemetry sampling.
type TelemetryConfig struct {
	Enabled bool `yaml:"enabled"`
	// Interval is the sampling period in seconds.
	Interval int `yaml:"interval"`
}

// Load reads configuration from a YAML file, applies environment
// overrides and validates the result.
//
// Environment variables follow GRAYLOGIC_SECTION_KEY, e.g.
// GRAYLOGIC_DATABASE_PATH or GRAYLOGIC_BUS_ID.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with defaults for a single-site bridge.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "site-001",
			Name: "Gray Logic",
		},
		Database: DatabaseConfig{
			Path:        "./data/display-bridge.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graylogic-display",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Bus: BusConfig{
			ID: "eisc-01",
		},
		Health: HealthConfig{
			Interval: 30,
		},
		Telemetry: TelemetryConfig{
			Interval: 60,
		},
	}
}

// applyEnvOverrides applies GRAYLOGIC_* environment overrides.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GRAYLOGIC_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("GRAYLOGIC_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GRAYLOGIC_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("GRAYLOGIC_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GRAYLOGIC_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("GRAYLOGIC_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("GRAYLOGIC_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	if v := os.Getenv("GRAYLOGIC_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("GRAYLOGIC_BUS_ID"); v != "" {
		cfg.Bus.ID = v
	}

	if v := os.Getenv("GRAYLOGIC_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.Bus.ID == "" {
		errs = append(errs, "bus.id is required")
	} else if strings.ContainsAny(c.Bus.ID, "/+#") {
		errs = append(errs, "bus.id must not contain MQTT topic separators or wildcards")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	seen := make(map[string]bool, len(c.Devices))
	for i, d := range c.Devices {
		switch {
		case d.Key == "":
			errs = append(errs, fmt.Sprintf("devices[%d].key is required", i))
		case seen[d.Key]:
			errs = append(errs, fmt.Sprintf("devices[%d].key %q is duplicated", i, d.Key))
		default:
			seen[d.Key] = true
		}
		if d.Type == "" {
			errs = append(errs, fmt.Sprintf("devices[%d].type is required", i))
		}
	}

	for key, table := range c.JoinMaps {
		for name, o := range table {
			if o.JoinNumber == 0 {
				errs = append(errs, fmt.Sprintf("join_maps.%s.%s.join_number must be at least 1", key, name))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// GetHealthInterval returns the health publish interval.
func (c *Config) GetHealthInterval() time.Duration {
	return time.Duration(c.Health.Interval) * time.Second
}

// GetTelemetryInterval returns the telemetry sampling interval.
func (c *Config) GetTelemetryInterval() time.Duration {
	return time.Duration(c.Telemetry.Interval) * time.Second
}
