package coref

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	corerrors "github.com/otherjamesbrown/penf-coref/pkg/errors"
	"github.com/otherjamesbrown/penf-coref/pkg/mentions"
)

func TestThresholdsFromValues(t *testing.T) {
	tests := []struct {
		name    string
		vals    []float64
		want    Thresholds
		wantErr bool
	}{
		{name: "single", vals: []float64{0.35}, want: UniformThresholds(0.35)},
		{name: "four", vals: []float64{0.1, 0.2, 0.3, 0.4}, want: Thresholds{0.1, 0.2, 0.3, 0.4}},
		{name: "empty", vals: nil, wantErr: true},
		{name: "two", vals: []float64{0.1, 0.2}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ThresholdsFromValues(tt.vals)
			if tt.wantErr {
				assert.ErrorIs(t, err, corerrors.ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestThresholds_For(t *testing.T) {
	th := Thresholds{PronounPronoun: 0.1, PronounNonPronoun: 0.2, NonPronounPronoun: 0.3, NonPronounNonPronoun: 0.4}

	assert.Equal(t, 0.1, th.For(true, true))
	assert.Equal(t, 0.2, th.For(true, false))
	assert.Equal(t, 0.3, th.For(false, true))
	assert.Equal(t, 0.4, th.For(false, false))
	assert.Equal(t, []float64{0.1, 0.2, 0.3, 0.4}, th.Values())
}

func scored(a, b *mentions.Mention, score float64) ScoredPair {
	return ScoredPair{Antecedent: a, Anaphor: b, Score: score}
}

func TestLinker_ThreePairExample(t *testing.T) {
	m1 := nominal(1, 0, 0, "the", "man")
	m2 := nominal(2, 1, 0, "the", "driver")
	m3 := nominal(3, 2, 0, "the", "fellow")
	pairs := []ScoredPair{
		scored(m1, m2, 0.9),
		scored(m1, m3, 0.7),
		scored(m2, m3, 0.95),
	}

	ops, err := NewLinker(UniformThresholds(0.8), false).Link(context.Background(), pairs)
	require.NoError(t, err)
	assert.Equal(t, []MergeOp{
		{Antecedent: 2, Anaphor: 3, Score: 0.95},
		{Antecedent: 1, Anaphor: 2, Score: 0.9},
	}, ops)

	s, err := SeededStore([][]*mentions.Mention{{m1}, {m2}, {m3}})
	require.NoError(t, err)
	for _, op := range ops {
		_, err := s.MergeMentions(op.Antecedent, op.Anaphor)
		require.NoError(t, err)
	}
	assert.Equal(t, [][]int{{1, 2, 3}}, partition(s))

	assert.Equal(t, 0.9, pairs[0].Score, "input order untouched")
}

func TestLinker_SingleLinkPerAnaphor(t *testing.T) {
	m1 := proper(1, 0, 0, "Tom")
	m2 := proper(2, 0, 3, "Ann")
	m3 := pronoun(3, 1, 0, "she")

	ops, err := NewLinker(UniformThresholds(0.1), false).Link(context.Background(), []ScoredPair{
		scored(m1, m3, 0.6),
		scored(m2, m3, 0.8),
	})
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, MergeOp{Antecedent: 2, Anaphor: 3, Score: 0.8}, ops[0])
}

func TestLinker_ThresholdIsStrict(t *testing.T) {
	m1 := proper(1, 0, 0, "Tom")
	m2 := pronoun(2, 0, 2, "he")

	ops, err := NewLinker(UniformThresholds(0.5), false).Link(context.Background(), []ScoredPair{scored(m1, m2, 0.5)})
	require.NoError(t, err)
	assert.Empty(t, ops)
}

func TestLinker_ThresholdBuckets(t *testing.T) {
	he := pronoun(1, 0, 0, "He")
	tom := proper(2, 0, 3, "Tom")
	him := pronoun(3, 1, 0, "him")
	smith := proper(4, 1, 3, "Smith")

	th := Thresholds{PronounPronoun: 0.9, PronounNonPronoun: 0.9, NonPronounPronoun: 0.2, NonPronounNonPronoun: 0.9}
	ops, err := NewLinker(th, false).Link(context.Background(), []ScoredPair{
		scored(he, him, 0.5),   // pron-pron, fails
		scored(tom, him, 0.3),  // nonpron-pron, passes
		scored(he, smith, 0.5), // pron-nonpron, fails
	})
	require.NoError(t, err)
	assert.Equal(t, []MergeOp{{Antecedent: 2, Anaphor: 3, Score: 0.3}}, ops)
}

func TestLinker_TiesKeepInputOrder(t *testing.T) {
	m1 := proper(1, 0, 0, "Tom")
	m2 := proper(2, 0, 3, "Tom")
	m3 := proper(3, 1, 0, "Tom")

	ops, err := NewLinker(UniformThresholds(0.1), false).Link(context.Background(), []ScoredPair{
		scored(m2, m3, 0.5),
		scored(m1, m3, 0.5),
	})
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, 2, ops[0].Antecedent)
}

func TestLinker_StrictBestFirst(t *testing.T) {
	he := pronoun(1, 0, 0, "He")
	tom := proper(2, 0, 3, "Tom")
	him := pronoun(3, 1, 0, "him")
	th := Thresholds{PronounPronoun: 0.9, PronounNonPronoun: 0.5, NonPronounPronoun: 0.3, NonPronounNonPronoun: 0.5}
	pairs := []ScoredPair{
		scored(he, him, 0.8),
		scored(tom, him, 0.5),
	}

	lenient, err := NewLinker(th, false).Link(context.Background(), pairs)
	require.NoError(t, err)
	assert.Equal(t, []MergeOp{{Antecedent: 2, Anaphor: 3, Score: 0.5}}, lenient)

	strict, err := NewLinker(th, true).Link(context.Background(), pairs)
	require.NoError(t, err)
	assert.Empty(t, strict)
}

func TestLinker_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	m1 := proper(1, 0, 0, "Tom")
	m2 := pronoun(2, 0, 2, "he")
	ops, err := NewLinker(UniformThresholds(0.1), false).Link(ctx, []ScoredPair{scored(m1, m2, 0.9)})

	assert.Nil(t, ops)
	assert.ErrorIs(t, err, corerrors.ErrInterrupted)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLinker_Empty(t *testing.T) {
	ops, err := NewLinker(UniformThresholds(0.1), false).Link(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, ops)
}
