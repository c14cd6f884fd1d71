// Package config provides YAML-based configuration loading for Partline.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment variables that override secrets from the config file.
const (
	EnvAuthSecret  = "PARTLINE_AUTH_SECRET"
	EnvDatabaseDSN = "PARTLINE_DATABASE_DSN"
)

// Config is the top-level Partline configuration, loaded from partline.yaml.
type Config struct {
	Database    DatabaseConfig    `yaml:"database"`
	Server      ServerConfig      `yaml:"server"`
	Auth        AuthConfig        `yaml:"auth"`
	Log         LogConfig         `yaml:"log"`
	Trace       TraceConfig       `yaml:"trace"`
	Idempotency IdempotencyConfig `yaml:"idempotency"`
	Alerts      AlertsConfig      `yaml:"alerts"`
	Reports     ReportsConfig     `yaml:"reports"`
	Tracing     TracingConfig     `yaml:"tracing"`
}

// DatabaseConfig selects the gorm dialector and its DSN.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// AuthConfig holds bearer token settings.
type AuthConfig struct {
	Secret          string `yaml:"secret"`
	TokenTTLMinutes int    `yaml:"token_ttl_minutes"`
}

// LogConfig selects the zap preset ("dev" or "prod").
type LogConfig struct {
	Mode string `yaml:"mode"`
}

// TraceConfig holds opt-in recording policies. Both default to false, which
// keeps recording permissive.
type TraceConfig struct {
	RejectAfterScrap  bool `yaml:"reject_after_scrap"`
	EnforceChronology bool `yaml:"enforce_chronology"`
}

// IdempotencyConfig selects the Idempotency-Key backend.
type IdempotencyConfig struct {
	Backend    string `yaml:"backend"` // memory, redis, none
	RedisAddr  string `yaml:"redis_addr"`
	RedisDB    int    `yaml:"redis_db"`
	TTLMinutes int    `yaml:"ttl_minutes"`
}

// AlertsConfig configures scrap alert notifiers. A notifier is enabled when
// both its token and channel are set.
type AlertsConfig struct {
	Slack   ChannelConfig `yaml:"slack"`
	Discord ChannelConfig `yaml:"discord"`
}

// ChannelConfig is a chat platform token plus target channel.
type ChannelConfig struct {
	Token   string `yaml:"token"`
	Channel string `yaml:"channel"`
}

// Enabled reports whether both token and channel are configured.
func (c ChannelConfig) Enabled() bool {
	return c.Token != "" && c.Channel != ""
}

// ReportsConfig schedules periodic overview snapshots. Empty disables them.
type ReportsConfig struct {
	SnapshotSchedule string `yaml:"snapshot_schedule"`
}

// TracingConfig toggles OpenTelemetry request tracing.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	SampleRatio float64 `yaml:"sample_ratio"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a validated config with all defaults applied.
func Default() *Config {
	var cfg Config
	cfg.applyEnv()
	cfg.applyDefaults()
	return &cfg
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvAuthSecret); v != "" {
		c.Auth.Secret = v
	}
	if v := os.Getenv(EnvDatabaseDSN); v != "" {
		c.Database.DSN = v
	}
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	c.Database.Driver = strings.ToLower(c.Database.Driver)
	if c.Database.DSN == "" && c.Database.Driver == "sqlite" {
		c.Database.DSN = "partline.db"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Auth.Secret == "" {
		c.Auth.Secret = "change-this-secret"
	}
	if c.Auth.TokenTTLMinutes == 0 {
		c.Auth.TokenTTLMinutes = 60
	}
	if c.Log.Mode == "" {
		c.Log.Mode = "dev"
	}
	if c.Idempotency.Backend == "" {
		c.Idempotency.Backend = "memory"
	}
	c.Idempotency.Backend = strings.ToLower(c.Idempotency.Backend)
	if c.Idempotency.TTLMinutes == 0 {
		c.Idempotency.TTLMinutes = 24 * 60
	}
	if c.Tracing.SampleRatio == 0 {
		c.Tracing.SampleRatio = 1
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Database.Driver {
	case "sqlite", "mysql", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q is not one of sqlite, mysql, postgres", c.Database.Driver))
	}
	if c.Database.DSN == "" {
		errs = append(errs, "database.dsn is required")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port %d is out of range", c.Server.Port))
	}
	if c.Auth.TokenTTLMinutes < 0 {
		errs = append(errs, "auth.token_ttl_minutes must be positive")
	}
	switch c.Idempotency.Backend {
	case "memory", "none":
	case "redis":
		if c.Idempotency.RedisAddr == "" {
			errs = append(errs, "idempotency.redis_addr is required for the redis backend")
		}
	default:
		errs = append(errs, fmt.Sprintf("idempotency.backend %q is not one of memory, redis, none", c.Idempotency.Backend))
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		errs = append(errs, "tracing.sample_ratio must be between 0 and 1")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
