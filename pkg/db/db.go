// Package db provides the PostgreSQL connection utilities used to persist resolved partitions.
package db

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	corerrors "github.com/otherjamesbrown/penf-coref/pkg/errors"
)

// DefaultSchema is the schema that holds the partition tables.
const DefaultSchema = "coref"

// Config holds PostgreSQL connection configuration.
type Config struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password,omitempty"`
	SSLMode         string        `yaml:"sslmode"`
	Schema          string        `yaml:"schema"`
	MaxConns        int32         `yaml:"max_conns"`
	MinConns        int32         `yaml:"min_conns"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Host:            "localhost",
		Port:            5432,
		Database:        "coref",
		User:            "coref",
		Password:        "",
		SSLMode:         "disable",
		Schema:          DefaultSchema,
		MaxConns:        8,
		MinConns:        1,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
		ConnectTimeout:  10 * time.Second,
	}
}

// ConfigFromEnv creates a Config from environment variables.
// Environment variables:
//   - PENF_COREF_DB_HOST: Database host (default: localhost)
//   - PENF_COREF_DB_PORT: Database port (default: 5432)
//   - PENF_COREF_DB_NAME: Database name (default: coref)
//   - PENF_COREF_DB_USER: Database user (default: coref)
//   - PENF_COREF_DB_PASSWORD: Database password
//   - PENF_COREF_DB_SSLMODE: SSL mode (default: disable)
//   - PENF_COREF_DB_SCHEMA: Partition schema (default: coref)
//   - PENF_COREF_DB_MAX_CONNS: Maximum connections (default: 8)
//   - PENF_COREF_DB_MIN_CONNS: Minimum connections (default: 1)
func ConfigFromEnv() *Config {
	cfg := DefaultConfig()
	ApplyEnv(cfg)
	return cfg
}

// ApplyEnv overlays PENF_COREF_DB_* environment variables onto cfg.
// Unparseable numeric values leave the existing setting in place.
func ApplyEnv(cfg *Config) {
	if host := os.Getenv("PENF_COREF_DB_HOST"); host != "" {
		cfg.Host = host
	}
	if port := os.Getenv("PENF_COREF_DB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Port = p
		}
	}
	if database := os.Getenv("PENF_COREF_DB_NAME"); database != "" {
		cfg.Database = database
	}
	if user := os.Getenv("PENF_COREF_DB_USER"); user != "" {
		cfg.User = user
	}
	if password := os.Getenv("PENF_COREF_DB_PASSWORD"); password != "" {
		cfg.Password = password
	}
	if sslmode := os.Getenv("PENF_COREF_DB_SSLMODE"); sslmode != "" {
		cfg.SSLMode = sslmode
	}
	if schema := os.Getenv("PENF_COREF_DB_SCHEMA"); schema != "" {
		cfg.Schema = schema
	}
	if maxConns := os.Getenv("PENF_COREF_DB_MAX_CONNS"); maxConns != "" {
		if mc, err := strconv.ParseInt(maxConns, 10, 32); err == nil {
			cfg.MaxConns = int32(mc)
		}
	}
	if minConns := os.Getenv("PENF_COREF_DB_MIN_CONNS"); minConns != "" {
		if mc, err := strconv.ParseInt(minConns, 10, 32); err == nil {
			cfg.MinConns = int32(mc)
		}
	}
}

// ConnectionString builds a PostgreSQL connection string from the config.
func (c *Config) ConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s&connect_timeout=%d",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		c.Database,
		c.SSLMode,
		int(c.ConnectTimeout.Seconds()),
	)
}

// Redacted returns the connection string with the password masked.
func (c *Config) Redacted() string {
	clone := *c
	if clone.Password != "" {
		clone.Password = "xxxxx"
	}
	return clone.ConnectionString()
}

// Validate checks if the config has required fields set.
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: database host is required", corerrors.ErrValidation)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid database port: %d", corerrors.ErrValidation, c.Port)
	}
	if c.Database == "" {
		return fmt.Errorf("%w: database name is required", corerrors.ErrValidation)
	}
	if c.User == "" {
		return fmt.Errorf("%w: database user is required", corerrors.ErrValidation)
	}
	if c.Schema == "" {
		return fmt.Errorf("%w: partition schema is required", corerrors.ErrValidation)
	}
	if c.MaxConns < c.MinConns {
		return fmt.Errorf("%w: max connections (%d) must be >= min connections (%d)",
			corerrors.ErrValidation, c.MaxConns, c.MinConns)
	}
	return nil
}

// Connect creates a new connection pool with the given configuration.
// The caller is responsible for calling pool.Close() when done.
func Connect(ctx context.Context, cfg *Config) (*pgxpool.Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create connection pool: %w", corerrors.ErrIO, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: failed to ping database: %w", corerrors.ErrIO, err)
	}

	return pool, nil
}

// ConnectWithRetry creates a connection pool with retry logic.
// Validation failures are not retried.
func ConnectWithRetry(ctx context.Context, cfg *Config, maxAttempts int, retryDelay time.Duration) (*pgxpool.Pool, error) {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		pool, err := Connect(ctx, cfg)
		if err == nil {
			return pool, nil
		}
		if corerrors.IsValidation(err) {
			return nil, err
		}
		lastErr = err

		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(retryDelay):
			}
		}
	}

	return nil, fmt.Errorf("failed to connect after %d attempts: %w", maxAttempts, lastErr)
}

// Close gracefully closes a connection pool if it is not nil.
func Close(pool *pgxpool.Pool) {
	if pool != nil {
		pool.Close()
	}
}
