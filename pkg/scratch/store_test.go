package scratch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "scratch.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewStore_CreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scratch.db")
	s, err := NewStore(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestNewStore_BadPath(t *testing.T) {
	_, err := NewStore(filepath.Join(t.TempDir(), "missing", "dir", "scratch.db"))
	assert.Error(t, err)
}

func TestRunLifecycle(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.BeginRun(ctx, Run{ID: "run-1", DocumentID: "doc-1", Thresholds: "[0.35 0.35 0.35 0.35]"}))

	run, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "doc-1", run.DocumentID)
	assert.Equal(t, RunStatusRunning, run.Status)
	assert.Nil(t, run.FinishedAt)

	require.NoError(t, s.FinishRun(ctx, "run-1", RunStatusOK, 3))

	run, err = s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, RunStatusOK, run.Status)
	assert.Equal(t, 3, run.Clusters)
	assert.NotNil(t, run.FinishedAt)
}

func TestFinishRun_Unknown(t *testing.T) {
	assert.Error(t, newTestStore(t).FinishRun(context.Background(), "nope", RunStatusOK, 0))
}

func TestBeginRun_Duplicate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.BeginRun(ctx, Run{ID: "run-1", DocumentID: "doc"}))
	assert.Error(t, s.BeginRun(ctx, Run{ID: "run-1", DocumentID: "doc"}))
}

func TestRecordPairsAndMerges(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.BeginRun(ctx, Run{ID: "r", DocumentID: "d"}))

	require.NoError(t, s.RecordPairs(ctx, "r", []PairRecord{
		{Antecedent: 1, Anaphor: 2, Score: 0.9},
		{Antecedent: 0, Anaphor: 2, Score: 0.4},
		{Antecedent: 0, Anaphor: 1, Excluded: true, Reason: "no score for pair"},
	}))
	require.NoError(t, s.RecordMerges(ctx, "r", []MergeRecord{
		{Seq: 0, Antecedent: 1, Anaphor: 2, Score: 0.9, Applied: true},
		{Seq: 1, Antecedent: 0, Anaphor: 2, Score: 0.4, Applied: false},
	}))

	pairs, err := s.Pairs(ctx, "r")
	require.NoError(t, err)
	require.Len(t, pairs, 3)
	assert.Equal(t, PairRecord{Antecedent: 0, Anaphor: 1, Excluded: true, Reason: "no score for pair"}, pairs[0])
	assert.Equal(t, 0, pairs[1].Antecedent)
	assert.Equal(t, 1, pairs[2].Antecedent)

	merges, err := s.Merges(ctx, "r")
	require.NoError(t, err)
	require.Len(t, merges, 2)
	assert.True(t, merges[0].Applied)
	assert.False(t, merges[1].Applied)
}

func TestRecordPairs_DuplicateRollsBack(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.BeginRun(ctx, Run{ID: "r", DocumentID: "d"}))

	err := s.RecordPairs(ctx, "r", []PairRecord{
		{Antecedent: 1, Anaphor: 2, Score: 0.9},
		{Antecedent: 1, Anaphor: 2, Score: 0.8},
	})
	require.Error(t, err)

	pairs, err := s.Pairs(ctx, "r")
	require.NoError(t, err)
	assert.Empty(t, pairs)
}

func TestRecord_Empty(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.RecordPairs(context.Background(), "r", nil))
	assert.NoError(t, s.RecordMerges(context.Background(), "r", nil))
}

func TestPrune(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	old := time.Now().Add(-48 * time.Hour).UTC()
	require.NoError(t, s.BeginRun(ctx, Run{ID: "old", DocumentID: "d", StartedAt: old}))
	require.NoError(t, s.RecordPairs(ctx, "old", []PairRecord{{Antecedent: 0, Anaphor: 1, Score: 0.5}}))
	require.NoError(t, s.BeginRun(ctx, Run{ID: "new", DocumentID: "d"}))

	n, err := s.Prune(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = s.GetRun(ctx, "old")
	assert.Error(t, err)
	pairs, err := s.Pairs(ctx, "old")
	require.NoError(t, err)
	assert.Empty(t, pairs)

	_, err = s.GetRun(ctx, "new")
	assert.NoError(t, err)
}

func TestInMemoryStore(t *testing.T) {
	s, err := NewStore(":memory:")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.BeginRun(context.Background(), Run{ID: "r", DocumentID: "d"}))
	_, err = s.GetRun(context.Background(), "r")
	assert.NoError(t, err)
}
