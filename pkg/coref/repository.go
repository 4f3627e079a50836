package coref

import (
	"context"
	"time"
)

// Partition is the persisted outcome of a resolution run.
type Partition struct {
	RunID      string            `json:"run_id" yaml:"run_id"`
	DocumentID string            `json:"document_id" yaml:"document_id"`
	Mentions   int               `json:"mentions" yaml:"mentions"`
	Clusters   []ClusterSnapshot `json:"clusters" yaml:"clusters"`
	CreatedAt  time.Time         `json:"created_at" yaml:"created_at"`
}

// NewPartition captures store as the partition produced by result.
func NewPartition(result *Result, store *Store) *Partition {
	return &Partition{
		RunID:      result.RunID,
		DocumentID: result.DocumentID,
		Mentions:   store.MentionCount(),
		Clusters:   store.Snapshot(),
	}
}

// ClusterOf returns the snapshot of the cluster holding mentionID.
func (p *Partition) ClusterOf(mentionID int) (ClusterSnapshot, bool) {
	for _, c := range p.Clusters {
		for _, id := range c.Mentions {
			if id == mentionID {
				return c, true
			}
		}
	}
	return ClusterSnapshot{}, false
}

// PartitionFilter selects stored partitions.
type PartitionFilter struct {
	DocumentID string
	Limit      int
}

// PartitionRepository persists resolved partitions.
type PartitionRepository interface {
	// Save stores p. Saving a run ID twice replaces the earlier partition.
	Save(ctx context.Context, p *Partition) error

	// Get returns the partition for runID, or an error wrapping ErrNotFound.
	Get(ctx context.Context, runID string) (*Partition, error)

	// Latest returns the most recent partition for documentID.
	Latest(ctx context.Context, documentID string) (*Partition, error)

	// List returns partition headers, newest first. Clusters are not loaded.
	List(ctx context.Context, filter PartitionFilter) ([]Partition, error)

	// Delete removes the partition for runID.
	Delete(ctx context.Context, runID string) error
}
