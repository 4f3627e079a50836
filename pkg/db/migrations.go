package db

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"
)

//go:embed migrations/*.sql
var embedded embed.FS

// schemaPlaceholder is replaced with the quoted schema name in every migration.
const schemaPlaceholder = "{{schema}}"

// Migration represents a single migration file.
type Migration struct {
	Version string
	Name    string
	SQL     string
}

// MigrationResult holds the result of a migration run.
type MigrationResult struct {
	Applied []string
	Skipped []string
}

// MigrationStatusEntry represents a single migration in a status report.
type MigrationStatusEntry struct {
	Version   string     `json:"version" yaml:"version"`
	Name      string     `json:"name" yaml:"name"`
	AppliedAt *time.Time `json:"applied_at,omitempty" yaml:"applied_at,omitempty"` // nil for pending
}

// MigrationStatus represents the complete status of migrations.
type MigrationStatus struct {
	Applied []MigrationStatusEntry `json:"applied" yaml:"applied"`
	Pending []MigrationStatusEntry `json:"pending" yaml:"pending"`
	Drift   []MigrationStatusEntry `json:"drift" yaml:"drift"` // applied but unknown to this binary
}

// Migrations returns the partition migrations compiled into the binary, in version order.
func Migrations() ([]Migration, error) {
	sub, err := fs.Sub(embedded, "migrations")
	if err != nil {
		return nil, err
	}
	return findMigrations(sub)
}

// Migrate creates schema if needed and applies every pending partition migration to it.
// Each migration runs in its own transaction and the first failure stops the run.
func Migrate(ctx context.Context, pool *pgxpool.Pool, schema string) (*MigrationResult, error) {
	if pool == nil {
		return nil, ErrNilPool
	}
	migrations, err := Migrations()
	if err != nil {
		return nil, fmt.Errorf("failed to load migrations: %w", err)
	}
	return runMigrations(ctx, pool, schema, migrations)
}

func runMigrations(ctx context.Context, pool *pgxpool.Pool, schema string, migrations []Migration) (*MigrationResult, error) {
	result := &MigrationResult{}

	if err := ensureMigrationsTable(ctx, pool, schema); err != nil {
		return nil, fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := getAppliedMigrations(ctx, pool, schema)
	if err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}

	for _, m := range migrations {
		if _, ok := applied[m.Version]; ok {
			result.Skipped = append(result.Skipped, m.Version)
			continue
		}
		if err := applyMigration(ctx, pool, schema, m); err != nil {
			return result, fmt.Errorf("migration %s failed: %w", m.Version, err)
		}
		result.Applied = append(result.Applied, m.Version)
	}

	return result, nil
}

// GetMigrationStatus reports which compiled-in migrations are applied, pending, or drifted.
func GetMigrationStatus(ctx context.Context, pool *pgxpool.Pool, schema string) (*MigrationStatus, error) {
	if pool == nil {
		return nil, ErrNilPool
	}
	migrations, err := Migrations()
	if err != nil {
		return nil, fmt.Errorf("failed to load migrations: %w", err)
	}
	if err := ensureMigrationsTable(ctx, pool, schema); err != nil {
		return nil, fmt.Errorf("failed to ensure migrations table: %w", err)
	}
	applied, err := getAppliedMigrations(ctx, pool, schema)
	if err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}
	return buildStatus(migrations, applied), nil
}

func buildStatus(migrations []Migration, applied map[string]time.Time) *MigrationStatus {
	status := &MigrationStatus{
		Applied: []MigrationStatusEntry{},
		Pending: []MigrationStatusEntry{},
		Drift:   []MigrationStatusEntry{},
	}

	known := make(map[string]bool, len(migrations))
	for _, m := range migrations {
		known[m.Version] = true
		if at, ok := applied[m.Version]; ok {
			at := at
			status.Applied = append(status.Applied, MigrationStatusEntry{Version: m.Version, Name: m.Name, AppliedAt: &at})
		} else {
			status.Pending = append(status.Pending, MigrationStatusEntry{Version: m.Version, Name: m.Name})
		}
	}

	for version, at := range applied {
		if known[version] {
			continue
		}
		at := at
		status.Drift = append(status.Drift, MigrationStatusEntry{Version: version, Name: version + ".sql", AppliedAt: &at})
	}
	sort.Slice(status.Drift, func(i, j int) bool { return status.Drift[i].Version < status.Drift[j].Version })

	return status
}

// findMigrations discovers all .sql files at the root of fsys.
func findMigrations(fsys fs.FS) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}

	var migrations []Migration
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(strings.ToLower(name), ".sql") {
			continue
		}
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", name, err)
		}
		migrations = append(migrations, Migration{
			Version: normalizeVersion(name),
			Name:    name,
			SQL:     string(content),
		})
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})
	return migrations, nil
}

// normalizeVersion removes the .sql suffix from a file name.
func normalizeVersion(v string) string {
	if len(v) > 4 && strings.EqualFold(path.Ext(v), ".sql") {
		return v[:len(v)-4]
	}
	return v
}

// render substitutes the quoted schema into a migration body.
func render(sql, schema string) string {
	return strings.ReplaceAll(sql, schemaPlaceholder, pq.QuoteIdentifier(schema))
}

func ensureMigrationsTable(ctx context.Context, pool *pgxpool.Pool, schema string) error {
	quoted := pq.QuoteIdentifier(schema)
	if _, err := pool.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+quoted); err != nil {
		return err
	}
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS `+quoted+`.schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMPTZ DEFAULT NOW()
		)`)
	return err
}

func getAppliedMigrations(ctx context.Context, pool *pgxpool.Pool, schema string) (map[string]time.Time, error) {
	applied := make(map[string]time.Time)

	rows, err := pool.Query(ctx, "SELECT version, applied_at FROM "+pq.QuoteIdentifier(schema)+".schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var version string
		var appliedAt time.Time
		if err := rows.Scan(&version, &appliedAt); err != nil {
			return nil, err
		}
		applied[normalizeVersion(version)] = appliedAt
	}
	return applied, rows.Err()
}

func applyMigration(ctx context.Context, pool *pgxpool.Pool, schema string, m Migration) error {
	if strings.TrimSpace(m.SQL) == "" {
		return fmt.Errorf("migration file is empty")
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // nolint: errcheck

	if _, err := tx.Exec(ctx, render(m.SQL, schema)); err != nil {
		return fmt.Errorf("failed to execute SQL: %w", err)
	}
	if _, err := tx.Exec(ctx, "INSERT INTO "+pq.QuoteIdentifier(schema)+".schema_migrations (version) VALUES ($1)", m.Name); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}
