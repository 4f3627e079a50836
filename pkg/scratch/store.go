// Package scratch records the intermediate artifacts of resolution runs in a
// local SQLite database: every scored candidate pair and every merge decision.
//
// Store is safe for concurrent use. Each Record call runs in its own
// transaction, so a run's artifacts are either written whole per call or not at
// all.
package scratch

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)
)

// Run statuses
const (
	RunStatusRunning     = "running"
	RunStatusOK          = "ok"
	RunStatusInterrupted = "interrupted"
	RunStatusFailed      = "failed"
)

// Run is one resolution of one document.
type Run struct {
	ID         string
	DocumentID string
	Thresholds string
	Status     string
	Clusters   int
	StartedAt  time.Time
	FinishedAt *time.Time
}

// PairRecord is one scored (or excluded) candidate pair.
type PairRecord struct {
	Antecedent int
	Anaphor    int
	Score      float64
	Excluded   bool
	Reason     string
}

// MergeRecord is one merge decision in emission order.
type MergeRecord struct {
	Seq        int
	Antecedent int
	Anaphor    int
	Score      float64
	Applied    bool
}

// Store persists run artifacts.
type Store struct {
	db *sql.DB
}

// NewStore opens (creating if needed) the scratch database at path. Use
// ":memory:" for a private in-memory database.
func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open scratch database: %w", err)
	}
	if path == ":memory:" {
		// Every pooled connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate scratch database: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		document_id TEXT NOT NULL,
		thresholds TEXT NOT NULL,
		status TEXT NOT NULL,
		clusters INTEGER DEFAULT 0,
		started_at DATETIME NOT NULL,
		finished_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_runs_document ON runs(document_id, started_at);

	CREATE TABLE IF NOT EXISTS scored_pairs (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		antecedent INTEGER NOT NULL,
		anaphor INTEGER NOT NULL,
		score REAL NOT NULL,
		excluded INTEGER DEFAULT 0,
		reason TEXT,
		PRIMARY KEY (run_id, antecedent, anaphor)
	);

	CREATE TABLE IF NOT EXISTS merges (
		run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		antecedent INTEGER NOT NULL,
		anaphor INTEGER NOT NULL,
		score REAL NOT NULL,
		applied INTEGER DEFAULT 0,
		PRIMARY KEY (run_id, seq)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// BeginRun records the start of a run.
func (s *Store) BeginRun(ctx context.Context, run Run) error {
	if run.Status == "" {
		run.Status = RunStatusRunning
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	// Stored in UTC so Prune's textual comparison orders correctly.
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, document_id, thresholds, status, started_at)
		VALUES (?, ?, ?, ?, ?)
	`, run.ID, run.DocumentID, run.Thresholds, run.Status, run.StartedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to begin run %s: %w", run.ID, err)
	}
	return nil
}

// FinishRun marks a run finished with the given status and cluster count.
func (s *Store) FinishRun(ctx context.Context, runID, status string, clusters int) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, clusters = ?, finished_at = ? WHERE id = ?
	`, status, clusters, time.Now().UTC(), runID)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("failed to finish run %s: no such run", runID)
	}
	return nil
}

// RecordPairs stores scored pairs for a run in one transaction.
func (s *Store) RecordPairs(ctx context.Context, runID string, pairs []PairRecord) error {
	if len(pairs) == 0 {
		return nil
	}
	return s.inTx(ctx, `
		INSERT INTO scored_pairs (run_id, antecedent, anaphor, score, excluded, reason)
		VALUES (?, ?, ?, ?, ?, ?)
	`, len(pairs), func(stmt *sql.Stmt, i int) error {
		p := pairs[i]
		_, err := stmt.ExecContext(ctx, runID, p.Antecedent, p.Anaphor, p.Score, p.Excluded, p.Reason)
		return err
	})
}

// RecordMerges stores merge decisions for a run in one transaction.
func (s *Store) RecordMerges(ctx context.Context, runID string, merges []MergeRecord) error {
	if len(merges) == 0 {
		return nil
	}
	return s.inTx(ctx, `
		INSERT INTO merges (run_id, seq, antecedent, anaphor, score, applied)
		VALUES (?, ?, ?, ?, ?, ?)
	`, len(merges), func(stmt *sql.Stmt, i int) error {
		m := merges[i]
		_, err := stmt.ExecContext(ctx, runID, m.Seq, m.Antecedent, m.Anaphor, m.Score, m.Applied)
		return err
	})
}

func (s *Store) inTx(ctx context.Context, query string, n int, exec func(*sql.Stmt, int) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	// Rollback is a no-op after commit
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if err := exec(stmt, i); err != nil {
			return fmt.Errorf("failed to insert row %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// GetRun returns a run by ID.
func (s *Store) GetRun(ctx context.Context, runID string) (*Run, error) {
	var r Run
	var finished sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT id, document_id, thresholds, status, clusters, started_at, finished_at
		FROM runs WHERE id = ?
	`, runID).Scan(&r.ID, &r.DocumentID, &r.Thresholds, &r.Status, &r.Clusters, &r.StartedAt, &finished)
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", runID, err)
	}
	if finished.Valid {
		r.FinishedAt = &finished.Time
	}
	return &r, nil
}

// Pairs returns a run's scored pairs ordered by (anaphor, antecedent).
func (s *Store) Pairs(ctx context.Context, runID string) ([]PairRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT antecedent, anaphor, score, excluded, COALESCE(reason, '')
		FROM scored_pairs WHERE run_id = ?
		ORDER BY anaphor, antecedent
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query pairs: %w", err)
	}
	defer rows.Close()

	var out []PairRecord
	for rows.Next() {
		var p PairRecord
		if err := rows.Scan(&p.Antecedent, &p.Anaphor, &p.Score, &p.Excluded, &p.Reason); err != nil {
			return nil, fmt.Errorf("failed to scan pair: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Merges returns a run's merge decisions in emission order.
func (s *Store) Merges(ctx context.Context, runID string) ([]MergeRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, antecedent, anaphor, score, applied
		FROM merges WHERE run_id = ?
		ORDER BY seq
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query merges: %w", err)
	}
	defer rows.Close()

	var out []MergeRecord
	for rows.Next() {
		var m MergeRecord
		if err := rows.Scan(&m.Seq, &m.Antecedent, &m.Anaphor, &m.Score, &m.Applied); err != nil {
			return nil, fmt.Errorf("failed to scan merge: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Prune deletes runs started before cutoff along with their artifacts.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM scored_pairs WHERE run_id IN (SELECT id FROM runs WHERE started_at < ?)`,
		`DELETE FROM merges WHERE run_id IN (SELECT id FROM runs WHERE started_at < ?)`,
	} {
		if _, err := tx.ExecContext(ctx, q, cutoff.UTC()); err != nil {
			return 0, fmt.Errorf("failed to prune artifacts: %w", err)
		}
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}
	return res.RowsAffected()
}
