// Package config provides configuration management.
//
// Configuration is read from an optional JSON file and then overridden by
// QUOTE_* environment variables, e.g. QUOTE_GATEWAY_BACKEND=postgres or
// QUOTE_GATEWAY_POSTGRES_DSN=postgres://...
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v9"

	"quote-engine/core/engine"
	"quote-engine/core/volume"
	"quote-engine/internal/errors"
	"quote-engine/internal/logging"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "QUOTE_"

// Backend names a configuration gateway source
type Backend string

const (
	BackendRulebook Backend = "rulebook"
	BackendPostgres Backend = "postgres"
	BackendDynamoDB Backend = "dynamodb"
)

// Duration is a time.Duration written as "5m" in files and variables
type Duration time.Duration

// UnmarshalText parses a Go duration string
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText formats the duration
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the time.Duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the main application configuration
type Config struct {
	// Version is the configuration version
	Version string `json:"version"`

	// Server contains HTTP server configuration
	Server ServerConfig `json:"server" envPrefix:"SERVER_"`

	// Logging contains logging configuration
	Logging logging.Config `json:"logging" envPrefix:"LOGGING_"`

	// Gateway contains configuration gateway settings
	Gateway GatewayConfig `json:"gateway" envPrefix:"GATEWAY_"`

	// Estimator overrides the volume tables; nil uses the defaults
	Estimator *volume.Tables `json:"estimator,omitempty"`

	// Pricing contains orchestrator policies
	Pricing engine.Options `json:"pricing" envPrefix:"PRICING_"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Addr         string   `json:"addr" env:"ADDR"`
	ReadTimeout  Duration `json:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout Duration `json:"write_timeout" env:"WRITE_TIMEOUT"`
}

// GatewayConfig selects and tunes the rule source
type GatewayConfig struct {
	// Backend is rulebook, postgres or dynamodb
	Backend Backend `json:"backend" env:"BACKEND"`

	// RulebookPath is an HCL file or directory for the rulebook backend
	RulebookPath string `json:"rulebook_path" env:"RULEBOOK_PATH"`

	// CacheTTL is how long a loaded snapshot is served in-process
	CacheTTL Duration `json:"cache_ttl" env:"CACHE_TTL"`

	Redis    RedisConfig    `json:"redis" envPrefix:"REDIS_"`
	Postgres PostgresConfig `json:"postgres" envPrefix:"POSTGRES_"`
	DynamoDB DynamoDBConfig `json:"dynamodb" envPrefix:"DYNAMODB_"`
}

// RedisConfig contains the shared snapshot cache settings
type RedisConfig struct {
	Enabled  bool     `json:"enabled" env:"ENABLED"`
	Addr     string   `json:"addr" env:"ADDR"`
	Password string   `json:"-" env:"PASSWORD"`
	DB       int      `json:"db" env:"DB"`
	TTL      Duration `json:"ttl" env:"TTL"`
	Key      string   `json:"key,omitempty" env:"KEY"`
}

// PostgresConfig contains database settings
type PostgresConfig struct {
	DSN             string   `json:"-" env:"DSN"`
	MaxOpenConns    int      `json:"max_open_conns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns    int      `json:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	ConnMaxLifetime Duration `json:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
	ConnectTimeout  Duration `json:"connect_timeout" env:"CONNECT_TIMEOUT"`
}

// DynamoDBConfig contains table settings
type DynamoDBConfig struct {
	Region          string `json:"region" env:"REGION"`
	Endpoint        string `json:"endpoint,omitempty" env:"ENDPOINT"`
	RulesTable      string `json:"rules_table" env:"RULES_TABLE"`
	ConstantsTable  string `json:"constants_table" env:"CONSTANTS_TABLE"`
	AccessKeyID     string `json:"-" env:"ACCESS_KEY_ID"`
	SecretAccessKey string `json:"-" env:"SECRET_ACCESS_KEY"`
}

// Default returns a default configuration
func Default() *Config {
	return &Config{
		Version: "1.0",
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  Duration(10 * time.Second),
			WriteTimeout: Duration(10 * time.Second),
		},
		Logging: logging.DefaultConfig(),
		Gateway: GatewayConfig{
			Backend:      BackendRulebook,
			RulebookPath: "rules",
			CacheTTL:     Duration(5 * time.Minute),
			Redis: RedisConfig{
				Addr: "localhost:6379",
				TTL:  Duration(5 * time.Minute),
			},
			Postgres: PostgresConfig{
				MaxOpenConns:    10,
				MaxIdleConns:    5,
				ConnMaxLifetime: Duration(30 * time.Minute),
				ConnectTimeout:  Duration(time.Minute),
			},
			DynamoDB: DynamoDBConfig{
				Region:         "us-east-1",
				RulesTable:     "pricing_rules",
				ConstantsTable: "base_constants",
			},
		},
		Pricing: engine.DefaultOptions(),
	}
}

// Load reads a configuration file and applies environment overrides. A
// missing file yields the defaults; an empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := json.Unmarshal(data, cfg); err != nil {
				return nil, errors.Wrapf(errors.TypeConfig, err, "invalid configuration file %s", path)
			}
		case os.IsNotExist(err):
		default:
			return nil, errors.Wrapf(errors.TypeConfig, err, "failed to read configuration file %s", path)
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, errors.Wrap(errors.TypeConfig, "invalid environment configuration", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for consistency
func (c *Config) Validate() error {
	switch c.Gateway.Backend {
	case BackendRulebook:
		if c.Gateway.RulebookPath == "" {
			return errors.Config("gateway.rulebook_path is required for the rulebook backend")
		}
	case BackendPostgres:
		if c.Gateway.Postgres.DSN == "" {
			return errors.Config("gateway.postgres.dsn is required for the postgres backend (set QUOTE_GATEWAY_POSTGRES_DSN)")
		}
	case BackendDynamoDB:
		if c.Gateway.DynamoDB.RulesTable == "" || c.Gateway.DynamoDB.ConstantsTable == "" {
			return errors.Config("gateway.dynamodb.rules_table and constants_table are required for the dynamodb backend")
		}
	default:
		return errors.Config("gateway.backend must be rulebook, postgres or dynamodb, got " + string(c.Gateway.Backend))
	}

	if c.Gateway.CacheTTL <= 0 {
		return errors.Config("gateway.cache_ttl must be positive")
	}
	if c.Gateway.Redis.Enabled && c.Gateway.Redis.Addr == "" {
		return errors.Config("gateway.redis.addr is required when redis is enabled")
	}
	if c.Estimator != nil {
		if err := c.Estimator.Validate(); err != nil {
			return errors.Wrap(errors.TypeConfig, "invalid estimator tables", err)
		}
	}
	return nil
}

// Save saves configuration to a file
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Global configuration instance
var globalConfig = Default()

// Get returns the global configuration
func Get() *Config {
	return globalConfig
}

// Set sets the global configuration
func Set(config *Config) {
	globalConfig = config
}
