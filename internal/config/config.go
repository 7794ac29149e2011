// Package config loads application configuration from a YAML file with
// environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the root application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
	Pricing  PricingConfig  `yaml:"pricing"`
	Admin    AdminConfig    `yaml:"admin"`
	HTTP     HTTPConfig     `yaml:"http"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DatabaseConfig selects and configures the storage backend.
type DatabaseConfig struct {
	// Driver is one of memory, sqlite, postgres.
	Driver          string `yaml:"driver"`
	DSN             string `yaml:"dsn"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime_seconds"`
	SkipMigrations  bool   `yaml:"skip_migrations"`
}

// LoggingConfig configures log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// PricingConfig holds the pricing engine tunables.
type PricingConfig struct {
	// StepPerUnit is the price bump per unit bought.
	StepPerUnit float64 `yaml:"step_per_unit"`
	// MinStep is the lower bound for the bump regardless of StepPerUnit.
	MinStep float64 `yaml:"min_step"`
	// RoundTo is the currency tick prices are rounded to. Zero disables rounding.
	RoundTo float64 `yaml:"round_to"`
}

// AdminConfig holds the admin login credentials and token signing key.
type AdminConfig struct {
	Username string `yaml:"username"`
	// PasswordHash is a bcrypt hash of the admin password.
	PasswordHash string `yaml:"password_hash"`
	JWTSecret    string `yaml:"jwt_secret"`
}

// HTTPConfig holds transport-level settings.
type HTTPConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	RatePerSecond  int      `yaml:"rate_per_second"`
	RateBurst      int      `yaml:"rate_burst"`
}

// Load reads configuration from the path in BEEREX_CONFIG (default
// config.yaml), applies environment overrides and validates the result. A
// missing file is not an error; defaults are used.
func Load() (*Config, error) {
	path := os.Getenv("BEEREX_CONFIG")
	if path == "" {
		path = "config.yaml"
	}
	return LoadFromPath(path)
}

// LoadFromPath reads configuration from a specific file.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Host: "0.0.0.0", Port: 3000},
		Database: DatabaseConfig{
			Driver: "memory",
		},
		Logging: LoggingConfig{Level: "info", Format: "json"},
		Pricing: PricingConfig{
			StepPerUnit: 1.0,
			MinStep:     0.5,
			RoundTo:     0.5,
		},
		Admin: AdminConfig{Username: "admin"},
		HTTP: HTTPConfig{
			AllowedOrigins: []string{"*"},
			RatePerSecond:  50,
			RateBurst:      100,
		},
	}
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if os.Getenv("SKIP_MIGRATIONS") == "1" {
		cfg.Database.SkipMigrations = true
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("ADMIN_USERNAME"); v != "" {
		cfg.Admin.Username = v
	}
	if v := os.Getenv("ADMIN_PASSWORD_HASH"); v != "" {
		cfg.Admin.PasswordHash = v
	}
	if v := os.Getenv("ADMIN_JWT_SECRET"); v != "" {
		cfg.Admin.JWTSecret = v
	}
}

// Validate checks configuration consistency.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "memory":
	case "sqlite", "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("database dsn is required for driver %s", c.Database.Driver)
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	if c.Pricing.StepPerUnit <= 0 {
		return fmt.Errorf("pricing step_per_unit must be positive")
	}
	if c.Pricing.MinStep < 0 || c.Pricing.RoundTo < 0 {
		return fmt.Errorf("pricing min_step and round_to must not be negative")
	}
	return nil
}
