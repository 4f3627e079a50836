package coref

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/otherjamesbrown/penf-coref/pkg/mentions"
)

// ErrNoScore is returned by scorers that have nothing to say about a pair.
var ErrNoScore = errors.New("no score for pair")

// Scorer estimates how likely an antecedent and an anaphor co-refer. Higher is
// more compatible. Implementations must be deterministic for a given document
// and pair.
type Scorer interface {
	Score(ctx context.Context, doc *mentions.Document, antecedent, anaphor *mentions.Mention) (float64, error)
}

// CacheKeyer is implemented by scorers whose scores may be cached. CacheKey must
// change whenever the scorer's output for the same document could change, such
// as a different model or weights. Scores from scorers without a cache key are
// never cached.
type CacheKeyer interface {
	CacheKey() string
}

// ScorerFunc adapts a function to Scorer.
type ScorerFunc func(ctx context.Context, doc *mentions.Document, antecedent, anaphor *mentions.Mention) (float64, error)

// Score implements Scorer.
func (f ScorerFunc) Score(ctx context.Context, doc *mentions.Document, antecedent, anaphor *mentions.Mention) (float64, error) {
	return f(ctx, doc, antecedent, anaphor)
}

// TableScorer reads precomputed scores from the document's pair data.
type TableScorer struct{}

// Score implements Scorer.
func (TableScorer) Score(_ context.Context, doc *mentions.Document, antecedent, anaphor *mentions.Mention) (float64, error) {
	key := mentions.PairKey{Antecedent: antecedent.ID, Anaphor: anaphor.ID}
	p, ok := doc.Pair(key)
	if !ok || p.Score == nil {
		return 0, fmt.Errorf("pair %s: %w", key, ErrNoScore)
	}
	return *p.Score, nil
}

// CacheKey implements CacheKeyer. Table scores live in the document, so the
// document fingerprint already covers them.
func (TableScorer) CacheKey() string { return "table" }

// LinearScorer is a logistic model over the document's pair features:
// sigmoid(bias + sum(weight[f] * value[f])). Features without a weight are
// ignored.
type LinearScorer struct {
	Bias    float64            `json:"bias" yaml:"bias"`
	Weights map[string]float64 `json:"weights" yaml:"weights"`

	// names holds the weighted feature names sorted, so summation order and
	// therefore rounding are fixed.
	names []string
}

// NewLinearScorer creates a logistic scorer.
func NewLinearScorer(bias float64, weights map[string]float64) *LinearScorer {
	return &LinearScorer{Bias: bias, Weights: weights, names: sortedKeys(weights)}
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Score implements Scorer.
func (s *LinearScorer) Score(_ context.Context, doc *mentions.Document, antecedent, anaphor *mentions.Mention) (float64, error) {
	key := mentions.PairKey{Antecedent: antecedent.ID, Anaphor: anaphor.ID}
	p, ok := doc.Pair(key)
	if !ok || len(p.Features) == 0 {
		return 0, fmt.Errorf("pair %s: no features: %w", key, ErrNoScore)
	}

	names := s.names
	if len(names) != len(s.Weights) {
		names = sortedKeys(s.Weights)
	}

	z := s.Bias
	for _, name := range names {
		if v, ok := p.Features[name]; ok {
			z += s.Weights[name] * v
		}
	}
	return 1 / (1 + math.Exp(-z)), nil
}

// CacheKey implements CacheKeyer. It encodes the bias and every weight.
func (s *LinearScorer) CacheKey() string {
	var b strings.Builder
	b.WriteString("linear:")
	b.WriteString(strconv.FormatFloat(s.Bias, 'g', -1, 64))
	for _, name := range sortedKeys(s.Weights) {
		b.WriteString(";")
		b.WriteString(strconv.Quote(name))
		b.WriteString("=")
		b.WriteString(strconv.FormatFloat(s.Weights[name], 'g', -1, 64))
	}
	return b.String()
}
