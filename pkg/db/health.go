package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNilPool is returned when a health or migration call receives no pool.
var ErrNilPool = errors.New("pool is nil")

// HealthStatus represents the health state of the partition database.
type HealthStatus struct {
	Healthy       bool          `json:"healthy" yaml:"healthy"`
	Latency       time.Duration `json:"latency" yaml:"latency"`
	TotalConns    int32         `json:"total_conns" yaml:"total_conns"`
	IdleConns     int32         `json:"idle_conns" yaml:"idle_conns"`
	AcquiredConns int32         `json:"acquired_conns" yaml:"acquired_conns"`
	SchemaReady   bool          `json:"schema_ready" yaml:"schema_ready"`
	Error         error         `json:"-" yaml:"-"`
}

// Ping checks if the database is reachable.
func Ping(ctx context.Context, pool *pgxpool.Pool) error {
	if pool == nil {
		return ErrNilPool
	}
	return pool.Ping(ctx)
}

// Check pings the database and reports pool statistics. When schema is
// non-empty it also reports whether the partition tables have been migrated.
func Check(ctx context.Context, pool *pgxpool.Pool, schema string) *HealthStatus {
	status := &HealthStatus{}

	if pool == nil {
		status.Error = ErrNilPool
		return status
	}

	start := time.Now()
	err := pool.Ping(ctx)
	status.Latency = time.Since(start)

	if err != nil {
		status.Error = fmt.Errorf("ping failed: %w", err)
		return status
	}

	stats := pool.Stat()
	status.Healthy = true
	status.TotalConns = stats.TotalConns()
	status.IdleConns = stats.IdleConns()
	status.AcquiredConns = stats.AcquiredConns()

	if schema != "" {
		ready, err := tableExists(ctx, pool, schema, "partitions")
		if err != nil {
			status.Error = fmt.Errorf("schema check failed: %w", err)
			return status
		}
		status.SchemaReady = ready
	}

	return status
}

// WaitForReady polls the database until it becomes available or context is cancelled.
func WaitForReady(ctx context.Context, pool *pgxpool.Pool, pollInterval time.Duration) error {
	if pool == nil {
		return ErrNilPool
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	if err := pool.Ping(ctx); err == nil {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := pool.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}

func tableExists(ctx context.Context, pool *pgxpool.Pool, schema, table string) (bool, error) {
	var exists bool
	err := pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = $1 AND table_name = $2
		)`, schema, table).Scan(&exists)
	return exists, err
}
