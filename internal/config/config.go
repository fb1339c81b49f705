// Package config loads ODB server configuration from a YAML file,
// then lets environment variables override individual fields — the
// same two-phase shape as the teacher's internal/config and
// internal/database packages (DefaultConfig / Load / LoadFromEnv /
// Validate), generalized to the CLI surface of spec.md §6.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	apperrors "github.com/obsdb/odb/internal/errors"
)

// DatabaseConfig holds the Postgres connection parameters.
type DatabaseConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	SSLMode         string        `yaml:"ssl_mode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// ServerConfig holds the HTTP surface's configuration.
type ServerConfig struct {
	HTTPPort    int `yaml:"http_port"`
	MetricsPort int `yaml:"metrics_port"`
}

// ExternalConfig holds endpoints for the external oracles of spec.md §1
// (ITC, Smart-GCAL, and Gaia), which this core treats as abstract
// collaborators.
type ExternalConfig struct {
	ITCBaseURL       string `yaml:"itc_base_url"`
	SmartGcalBaseURL string `yaml:"smartgcal_base_url"`
	GaiaBaseURL      string `yaml:"gaia_base_url"`
}

// RedisConfig holds the digest/ITC cache backend of spec.md §4.E.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// AlertConfig holds the operational Slack notifier's destination
// (spec.md §7, SequenceTooLong / repeated ExternalServiceError).
type AlertConfig struct {
	SlackWebhookURL string `yaml:"slack_webhook_url"`
	SlackChannel    string `yaml:"slack_channel"`
	Threshold       int    `yaml:"threshold"`
}

// Config is the root configuration object for the `odb-server serve`
// command (spec.md §6, CLI surface).
type Config struct {
	Database    DatabaseConfig `yaml:"database"`
	Server      ServerConfig   `yaml:"server"`
	External    ExternalConfig `yaml:"external"`
	Redis       RedisConfig    `yaml:"redis"`
	Alert       AlertConfig    `yaml:"alert"`
	CommitHash  string         `yaml:"commit_hash"`
	SigningKey  string         `yaml:"signing_key"`
	AuthzPolicy string         `yaml:"authz_policy"`
}

// DefaultConfig returns the configuration a fresh install should start
// from before a config file or environment is applied.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			User:            "odb",
			Database:        "odb",
			SSLMode:         "disable",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Server: ServerConfig{
			HTTPPort:    8080,
			MetricsPort: 9090,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
			TTL:  24 * time.Hour,
		},
		Alert: AlertConfig{
			Threshold: 3,
		},
	}
}

// Load reads a YAML config file into a fresh DefaultConfig. A missing
// file is not an error — callers are expected to rely on LoadFromEnv
// for container deployments that carry no mounted file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrorTypeInternal, "reading config file %s", path)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ErrorTypeInternal, "parsing config file %s", path)
	}
	return cfg, nil
}

// LoadFromEnv overlays environment variables onto c. Unset or
// unparsable values leave the existing field untouched, matching the
// teacher's "keep default port value" contract for DB_PORT.
func (c *Config) LoadFromEnv() {
	if v := os.Getenv("DB_HOST"); v != "" {
		c.Database.Host = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Database.Port = port
		}
	}
	if v := os.Getenv("DB_USER"); v != "" {
		c.Database.User = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		c.Database.Database = v
	}
	if v := os.Getenv("DB_SSL_MODE"); v != "" {
		c.Database.SSLMode = v
	}
	if v := os.Getenv("HTTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.HTTPPort = port
		}
	}
	if v := os.Getenv("ITC_BASE_URL"); v != "" {
		c.External.ITCBaseURL = v
	}
	if v := os.Getenv("SMARTGCAL_BASE_URL"); v != "" {
		c.External.SmartGcalBaseURL = v
	}
	if v := os.Getenv("GAIA_BASE_URL"); v != "" {
		c.External.GaiaBaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.MetricsPort = port
		}
	}
	if v := os.Getenv("COMMIT_HASH"); v != "" {
		c.CommitHash = v
	}
	if v := os.Getenv("SIGNING_KEY"); v != "" {
		c.SigningKey = v
	}
	if v := os.Getenv("AUTHZ_POLICY_PATH"); v != "" {
		if data, err := os.ReadFile(v); err == nil {
			c.AuthzPolicy = string(data)
		}
	}
	if v := os.Getenv("ALERT_SLACK_WEBHOOK_URL"); v != "" {
		c.Alert.SlackWebhookURL = v
	}
	if v := os.Getenv("ALERT_SLACK_CHANNEL"); v != "" {
		c.Alert.SlackChannel = v
	}
	if v := os.Getenv("ALERT_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Alert.Threshold = n
		}
	}
}

// Validate checks that the configuration is usable, returning an
// *errors.AppError of type ErrorTypeValidation describing the first
// problem found.
func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return apperrors.New(apperrors.ErrorTypeValidation, "database host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		return apperrors.New(apperrors.ErrorTypeValidation, "database port must be between 1 and 65535")
	}
	if c.Database.User == "" {
		return apperrors.New(apperrors.ErrorTypeValidation, "database user is required")
	}
	if c.Database.Database == "" {
		return apperrors.New(apperrors.ErrorTypeValidation, "database name is required")
	}
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return apperrors.New(apperrors.ErrorTypeValidation, "http port must be between 1 and 65535")
	}
	if c.CommitHash == "" {
		return apperrors.New(apperrors.ErrorTypeValidation, "commit hash is required for digest keys")
	}
	return nil
}

// DSN renders the Postgres connection string for d.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode)
}
