package database

import (
	"fmt"
	"strings"
	"time"
)

// Config holds database connection configuration.
type Config struct {
	// DSN is a sqlite file path (or "file::memory:?cache=shared") or a
	// postgres:// connection URL.
	DSN string `yaml:"dsn" mapstructure:"dsn"`
	// Driver is "sqlite" or "postgres". Empty infers it from DSN.
	Driver          string        `yaml:"driver" mapstructure:"driver"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	MaxRetries      int           `yaml:"max_retries" mapstructure:"max_retries"`
	SlowQuery       time.Duration `yaml:"slow_query" mapstructure:"slow_query"`
	// LogLevel is silent, error, warn or info.
	LogLevel string `yaml:"log_level" mapstructure:"log_level"`
}

// ApplyDefaults sets defaults for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Driver == "" {
		c.Driver = DriverFor(c.DSN)
	}
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = 10
		if c.Driver == DriverSQLite {
			c.MaxOpenConns = 1
		}
	}
	if c.MaxIdleConns <= 0 {
		c.MaxIdleConns = c.MaxOpenConns
	}
	if c.ConnMaxLifetime <= 0 {
		c.ConnMaxLifetime = time.Hour
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.SlowQuery <= 0 {
		c.SlowQuery = 200 * time.Millisecond
	}
	if c.LogLevel == "" {
		c.LogLevel = "warn"
	}
}

// Validate checks that required fields are present.
func (c *Config) Validate() error {
	if c.DSN == "" {
		return fmt.Errorf("database dsn is required")
	}
	if c.Driver != DriverSQLite && c.Driver != DriverPostgres {
		return fmt.Errorf("database driver must be sqlite or postgres (got: %s)", c.Driver)
	}
	if c.MaxIdleConns > c.MaxOpenConns {
		return fmt.Errorf("max_idle_conns (%d) must be <= max_open_conns (%d)", c.MaxIdleConns, c.MaxOpenConns)
	}
	return nil
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DriverFor infers the driver from a DSN.
func DriverFor(dsn string) string {
	lower := strings.ToLower(dsn)
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") || strings.Contains(lower, "host=") {
		return DriverPostgres
	}
	return DriverSQLite
}
