package coref

import (
	"context"
	"fmt"
	"sort"

	corerrors "github.com/otherjamesbrown/penf-coref/pkg/errors"
	"github.com/otherjamesbrown/penf-coref/pkg/mentions"
)

// Thresholds holds the minimum link score for each combination of antecedent
// and anaphor pronominality. A pair links only when its score is strictly
// greater than the matching threshold.
type Thresholds struct {
	PronounPronoun       float64 `json:"pronoun_pronoun" yaml:"pronoun_pronoun"`
	PronounNonPronoun    float64 `json:"pronoun_nonpronoun" yaml:"pronoun_nonpronoun"`
	NonPronounPronoun    float64 `json:"nonpronoun_pronoun" yaml:"nonpronoun_pronoun"`
	NonPronounNonPronoun float64 `json:"nonpronoun_nonpronoun" yaml:"nonpronoun_nonpronoun"`
}

// UniformThresholds uses v for all four buckets.
func UniformThresholds(v float64) Thresholds {
	return Thresholds{v, v, v, v}
}

// ThresholdsFromValues builds thresholds from one value or four. Four values
// are read as (antecedent, anaphor) = (pronoun, pronoun), (pronoun, other),
// (other, pronoun), (other, other).
func ThresholdsFromValues(vals []float64) (Thresholds, error) {
	switch len(vals) {
	case 1:
		return UniformThresholds(vals[0]), nil
	case 4:
		return Thresholds{vals[0], vals[1], vals[2], vals[3]}, nil
	default:
		return Thresholds{}, fmt.Errorf("thresholds: want 1 or 4 values, got %d: %w", len(vals), corerrors.ErrValidation)
	}
}

// For returns the threshold for a pair.
func (t Thresholds) For(antecedentPronominal, anaphorPronominal bool) float64 {
	switch {
	case antecedentPronominal && anaphorPronominal:
		return t.PronounPronoun
	case antecedentPronominal:
		return t.PronounNonPronoun
	case anaphorPronominal:
		return t.NonPronounPronoun
	default:
		return t.NonPronounNonPronoun
	}
}

// Values returns the thresholds in the order accepted by ThresholdsFromValues.
func (t Thresholds) Values() []float64 {
	return []float64{t.PronounPronoun, t.PronounNonPronoun, t.NonPronounPronoun, t.NonPronounNonPronoun}
}

// bucket names the threshold bucket of a pair for metrics and logs.
func bucket(antecedentPronominal, anaphorPronominal bool) string {
	switch {
	case antecedentPronominal && anaphorPronominal:
		return "pron_pron"
	case antecedentPronominal:
		return "pron_nonpron"
	case anaphorPronominal:
		return "nonpron_pron"
	default:
		return "nonpron_nonpron"
	}
}

// ScoredPair is a candidate pair with its compatibility score.
type ScoredPair struct {
	Antecedent *mentions.Mention
	Anaphor    *mentions.Mention
	Score      float64
}

// MergeOp asks the store to merge the anaphor's cluster into the antecedent's.
type MergeOp struct {
	Antecedent int     `json:"antecedent" yaml:"antecedent"`
	Anaphor    int     `json:"anaphor" yaml:"anaphor"`
	Score      float64 `json:"score" yaml:"score"`
}

// Linker turns scored pairs into merge operations, best first. Each anaphor is
// linked at most once: to the antecedent of its highest-scoring pair that clears
// the threshold.
type Linker struct {
	thresholds Thresholds

	// strict consumes an anaphor on its top-ranked pair whether or not that pair
	// clears the threshold, so lower-ranked pairs for it are never tried.
	strict bool
}

// NewLinker creates a linker.
func NewLinker(thresholds Thresholds, strictBestFirst bool) *Linker {
	return &Linker{thresholds: thresholds, strict: strictBestFirst}
}

// Link ranks pairs by descending score, keeping input order among equal
// scores, and emits one merge per resolved anaphor. ctx is checked before each
// ranked pair and before each emitted merge.
func (l *Linker) Link(ctx context.Context, pairs []ScoredPair) ([]MergeOp, error) {
	ranked := make([]ScoredPair, len(pairs))
	copy(ranked, pairs)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	resolved := make(map[int]struct{})
	var ops []MergeOp
	for _, p := range ranked {
		if err := interrupted(ctx); err != nil {
			return nil, err
		}
		if _, done := resolved[p.Anaphor.ID]; done {
			continue
		}
		if l.strict {
			resolved[p.Anaphor.ID] = struct{}{}
		}

		threshold := l.thresholds.For(p.Antecedent.IsPronominal(), p.Anaphor.IsPronominal())
		if p.Score <= threshold {
			continue
		}

		if err := interrupted(ctx); err != nil {
			return nil, err
		}
		resolved[p.Anaphor.ID] = struct{}{}
		ops = append(ops, MergeOp{
			Antecedent: p.Antecedent.ID,
			Anaphor:    p.Anaphor.ID,
			Score:      p.Score,
		})
	}
	return ops, nil
}

// interrupted returns ErrInterrupted, wrapping the context's cause, once ctx is
// done.
func interrupted(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", corerrors.ErrInterrupted, err)
	}
	return nil
}
