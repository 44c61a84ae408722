package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/claude/spotter/internal/session"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Auth      AuthConfig      `yaml:"auth"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Session   SessionConfig   `yaml:"session"`
	NATS      NATSConfig      `yaml:"nats"`
	Cache     CacheConfig     `yaml:"cache"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
	// Path is the SQLite database directory.
	Path string `yaml:"path"`
}

type AuthConfig struct {
	APIKey string `yaml:"api_key"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

// SessionConfig tunes the workout engine. Durations use Go syntax ("800ms").
type SessionConfig struct {
	AutoStartNextSet     bool          `yaml:"auto_start_next_set"`
	DebounceDelay        time.Duration `yaml:"debounce_delay"`
	WriteTimeout         time.Duration `yaml:"write_timeout"`
	PrepareDelay         time.Duration `yaml:"prepare_delay"`
	AutoRestDelay        time.Duration `yaml:"auto_rest_delay"`
	ExerciseAdvanceDelay time.Duration `yaml:"exercise_advance_delay"`
	RestWarningLead      time.Duration `yaml:"rest_warning_lead"`
	ActivityPingInterval time.Duration `yaml:"activity_ping_interval"`
	AgentSyncDelay       time.Duration `yaml:"agent_sync_delay"`
}

type NATSConfig struct {
	URL    string `yaml:"url"`
	Stream string `yaml:"stream"`
}

type CacheConfig struct {
	MaxCostMB int           `yaml:"max_cost_mb"`
	TTL       time.Duration `yaml:"ttl"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	// Async routes records through a buffered background writer.
	Async bool `yaml:"async"`
}

type TelemetryConfig struct {
	Enabled bool `yaml:"enabled"`
}

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
}

// Policy converts the session section into the state machine policy. Unset
// durations keep the defaults.
func (s SessionConfig) Policy() session.Policy {
	p := session.DefaultPolicy()
	p.AutoStartNextSet = s.AutoStartNextSet
	if s.PrepareDelay > 0 {
		p.PrepareDelay = s.PrepareDelay
	}
	if s.AutoRestDelay > 0 {
		p.AutoRestDelay = s.AutoRestDelay
	}
	if s.ExerciseAdvanceDelay > 0 {
		p.ExerciseAdvanceDelay = s.ExerciseAdvanceDelay
	}
	if s.RestWarningLead > 0 {
		p.RestWarningLead = s.RestWarningLead
	}
	if s.ActivityPingInterval > 0 {
		p.ActivityPingInterval = s.ActivityPingInterval
	}
	return p
}

// Load reads config from a YAML file, then applies environment variable overrides.
// Env vars use the prefix SPOTTER_ and underscore-separated paths:
//
//	SPOTTER_SERVER_HOST, SPOTTER_SERVER_PORT,
//	SPOTTER_DB_DRIVER, SPOTTER_DB_HOST, SPOTTER_DB_PORT, SPOTTER_DB_NAME,
//	SPOTTER_DB_USER, SPOTTER_DB_PASSWORD, SPOTTER_DB_SSLMODE, SPOTTER_DB_PATH,
//	SPOTTER_AUTH_API_KEY, SPOTTER_NATS_URL, SPOTTER_LOG_LEVEL,
//	SPOTTER_SESSION_AUTO_START_NEXT_SET
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SPOTTER_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("SPOTTER_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SPOTTER_DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("SPOTTER_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("SPOTTER_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("SPOTTER_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("SPOTTER_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("SPOTTER_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("SPOTTER_DB_SSLMODE"); v != "" {
		cfg.Database.SSLMode = v
	}
	if v := os.Getenv("SPOTTER_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("SPOTTER_AUTH_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}
	if v := os.Getenv("SPOTTER_NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("SPOTTER_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SPOTTER_SESSION_AUTO_START_NEXT_SET"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Session.AutoStartNextSet = b
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DriverPostgres
	}
	if cfg.Session.DebounceDelay == 0 {
		cfg.Session.DebounceDelay = 800 * time.Millisecond
	}
	if cfg.Session.WriteTimeout == 0 {
		cfg.Session.WriteTimeout = 5 * time.Second
	}
	if cfg.Session.AgentSyncDelay == 0 {
		cfg.Session.AgentSyncDelay = 2 * time.Second
	}
	if cfg.NATS.Stream == "" {
		cfg.NATS.Stream = "SPOTTER"
	}
	if cfg.Cache.MaxCostMB == 0 {
		cfg.Cache.MaxCostMB = 16
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = 10 * time.Minute
	}
	if cfg.Tailscale.Hostname == "" {
		cfg.Tailscale.Hostname = "spotter"
	}
}

func (c *Config) validate() error {
	if c.Server.Port == 0 {
		return fmt.Errorf("server.port is required")
	}
	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.Host == "" {
			return fmt.Errorf("database.host is required")
		}
		if c.Database.Port == 0 {
			return fmt.Errorf("database.port is required")
		}
		if c.Database.Name == "" {
			return fmt.Errorf("database.name is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database.user is required")
		}
	case DriverSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("database.driver %q is not supported", c.Database.Driver)
	}
	if c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key is required")
	}
	if c.Session.DebounceDelay < 0 || c.Session.WriteTimeout < 0 {
		return fmt.Errorf("session durations must not be negative")
	}
	return nil
}
