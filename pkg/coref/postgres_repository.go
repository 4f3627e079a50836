package coref

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lib/pq"

	corerrors "github.com/otherjamesbrown/penf-coref/pkg/errors"
)

// PostgresRepository implements PartitionRepository using PostgreSQL. Tables
// live in a configurable schema created by the db package's migrations.
type PostgresRepository struct {
	db     *pgxpool.Pool
	schema string // raw name, for pgx.Identifier
	quoted string
}

// NewPostgresRepository creates a repository over tables in schema.
func NewPostgresRepository(db *pgxpool.Pool, schema string) *PostgresRepository {
	return &PostgresRepository{db: db, schema: schema, quoted: pq.QuoteIdentifier(schema)}
}

func (r *PostgresRepository) table(name string) string {
	return r.quoted + "." + name
}

// Save writes the partition header, one row per cluster and one row per
// mention in a single transaction.
func (r *PostgresRepository) Save(ctx context.Context, p *Partition) error {
	runID, err := uuid.Parse(p.RunID)
	if err != nil {
		return fmt.Errorf("saving partition: %w: run id %q: %w", corerrors.ErrValidation, p.RunID, err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: beginning transaction: %w", corerrors.ErrIO, err)
	}
	defer tx.Rollback(ctx) // nolint: errcheck

	if _, err := tx.Exec(ctx, `DELETE FROM `+r.table("partitions")+` WHERE run_id = $1`, runID); err != nil {
		return fmt.Errorf("%w: replacing partition %s: %w", corerrors.ErrIO, p.RunID, err)
	}

	var createdAt time.Time
	err = tx.QueryRow(ctx, `
		INSERT INTO `+r.table("partitions")+` (run_id, document_id, mentions, clusters)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, runID, p.DocumentID, p.Mentions, len(p.Clusters)).Scan(&createdAt)
	if err != nil {
		return fmt.Errorf("%w: inserting partition %s: %w", corerrors.ErrIO, p.RunID, err)
	}

	clusterRows, mentionRows, err := partitionRows(runID, p.Clusters)
	if err != nil {
		return err
	}

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{r.schema, "partition_clusters"},
		[]string{"run_id", "cluster_id", "representative", "first_mention", "mention_ids", "snapshot"},
		pgx.CopyFromRows(clusterRows),
	)
	if err != nil {
		return fmt.Errorf("%w: copying clusters: %w", corerrors.ErrIO, err)
	}

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{r.schema, "partition_mentions"},
		[]string{"run_id", "mention_id", "cluster_id"},
		pgx.CopyFromRows(mentionRows),
	)
	if err != nil {
		return fmt.Errorf("%w: copying mentions: %w", corerrors.ErrIO, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: committing partition %s: %w", corerrors.ErrIO, p.RunID, err)
	}
	p.CreatedAt = createdAt
	return nil
}

// partitionRows builds the COPY rows for a partition's clusters and mentions.
// IDs are written as int64 to match the BIGINT columns.
func partitionRows(runID uuid.UUID, clusters []ClusterSnapshot) (clusterRows, mentionRows [][]any, err error) {
	clusterRows = make([][]any, 0, len(clusters))
	for _, c := range clusters {
		snapshot, err := json.Marshal(c)
		if err != nil {
			return nil, nil, fmt.Errorf("encoding cluster %d: %w", c.ID, err)
		}
		ids := make([]int64, len(c.Mentions))
		for i, id := range c.Mentions {
			ids[i] = int64(id)
			mentionRows = append(mentionRows, []any{runID, int64(id), int64(c.ID)})
		}
		clusterRows = append(clusterRows, []any{
			runID, int64(c.ID), int64(c.Representative), int64(c.FirstMention), ids, snapshot,
		})
	}
	return clusterRows, mentionRows, nil
}

// Get retrieves a partition by run ID.
func (r *PostgresRepository) Get(ctx context.Context, runID string) (*Partition, error) {
	id, err := parseRunID(runID)
	if err != nil {
		return nil, err
	}
	row := r.db.QueryRow(ctx, `
		SELECT run_id, document_id, mentions, created_at
		FROM `+r.table("partitions")+`
		WHERE run_id = $1
	`, id)
	return r.load(ctx, row, "run "+runID)
}

// Latest retrieves the most recently saved partition for a document.
func (r *PostgresRepository) Latest(ctx context.Context, documentID string) (*Partition, error) {
	row := r.db.QueryRow(ctx, `
		SELECT run_id, document_id, mentions, created_at
		FROM `+r.table("partitions")+`
		WHERE document_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`, documentID)
	return r.load(ctx, row, "document "+documentID)
}

func (r *PostgresRepository) load(ctx context.Context, row pgx.Row, what string) (*Partition, error) {
	var p Partition
	var id uuid.UUID
	if err := row.Scan(&id, &p.DocumentID, &p.Mentions, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("partition for %s: %w", what, corerrors.ErrNotFound)
		}
		return nil, fmt.Errorf("%w: getting partition for %s: %w", corerrors.ErrIO, what, err)
	}
	p.RunID = id.String()

	rows, err := r.db.Query(ctx, `
		SELECT snapshot
		FROM `+r.table("partition_clusters")+`
		WHERE run_id = $1
		ORDER BY cluster_id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("%w: listing clusters: %w", corerrors.ErrIO, err)
	}
	defer rows.Close()

	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("%w: scanning cluster: %w", corerrors.ErrIO, err)
		}
		var c ClusterSnapshot
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, fmt.Errorf("decoding cluster snapshot: %w", err)
		}
		p.Clusters = append(p.Clusters, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating clusters: %w", corerrors.ErrIO, err)
	}
	return &p, nil
}

// List returns partition headers, newest first.
func (r *PostgresRepository) List(ctx context.Context, filter PartitionFilter) ([]Partition, error) {
	query := `
		SELECT run_id, document_id, mentions, created_at
		FROM ` + r.table("partitions")
	var args []any
	if filter.DocumentID != "" {
		query += " WHERE document_id = $1"
		args = append(args, filter.DocumentID)
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: listing partitions: %w", corerrors.ErrIO, err)
	}
	defer rows.Close()

	var out []Partition
	for rows.Next() {
		var p Partition
		var id uuid.UUID
		if err := rows.Scan(&id, &p.DocumentID, &p.Mentions, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scanning partition: %w", corerrors.ErrIO, err)
		}
		p.RunID = id.String()
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating partitions: %w", corerrors.ErrIO, err)
	}
	return out, nil
}

// Delete removes a partition. Cluster and mention rows cascade.
func (r *PostgresRepository) Delete(ctx context.Context, runID string) error {
	id, err := parseRunID(runID)
	if err != nil {
		return err
	}
	tag, err := r.db.Exec(ctx, `DELETE FROM `+r.table("partitions")+` WHERE run_id = $1`, id)
	if err != nil {
		return fmt.Errorf("%w: deleting partition %s: %w", corerrors.ErrIO, runID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("partition for run %s: %w", runID, corerrors.ErrNotFound)
	}
	return nil
}

// parseRunID maps a malformed ID to ErrNotFound: no partition can have it.
func parseRunID(runID string) (uuid.UUID, error) {
	id, err := uuid.Parse(runID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("partition for run %q: %w", runID, corerrors.ErrNotFound)
	}
	return id, nil
}
