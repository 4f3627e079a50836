package coref

import (
	"github.com/otherjamesbrown/penf-coref/pkg/mentions"
)

// Candidate is an (antecedent, anaphor) pair worth scoring. The antecedent
// always precedes the anaphor in document order.
type Candidate struct {
	Antecedent *mentions.Mention
	Anaphor    *mentions.Mention
}

// CandidateGenerator proposes antecedents for each mention: every one of the
// previous MaxDistance mentions, plus earlier mentions up to
// MaxStringMatchDistance back that share a content word with it.
type CandidateGenerator struct {
	MaxDistance            int
	MaxStringMatchDistance int

	// Pronouns excludes pronoun words from string matching.
	Pronouns mentions.PronounLookup
}

// NewCandidateGenerator creates a generator from a config.
func NewCandidateGenerator(cfg Config, pronouns mentions.PronounLookup) *CandidateGenerator {
	return &CandidateGenerator{
		MaxDistance:            cfg.MaxMentionDistance,
		MaxStringMatchDistance: cfg.MaxMentionDistanceWithStringMatch,
		Pronouns:               pronouns,
	}
}

// Generate returns candidate pairs grouped by anaphor in document order. Within
// an anaphor, window antecedents come first, nearest last, followed by string
// matches in the order they were first seen.
func (g *CandidateGenerator) Generate(sorted []*mentions.Mention) []Candidate {
	var out []Candidate

	// content word -> positions in sorted of mentions containing it
	byWord := make(map[string][]int)

	for i, m := range sorted {
		taken := make(map[int]struct{})
		for j := max(0, i-g.MaxDistance); j < i; j++ {
			taken[j] = struct{}{}
			out = append(out, Candidate{Antecedent: sorted[j], Anaphor: m})
		}

		words := g.contentWords(m)
		for _, w := range words {
			for _, j := range byWord[w] {
				if i-j > g.MaxStringMatchDistance {
					continue
				}
				if _, ok := taken[j]; ok {
					continue
				}
				taken[j] = struct{}{}
				out = append(out, Candidate{Antecedent: sorted[j], Anaphor: m})
			}
		}

		for _, w := range words {
			byWord[w] = append(byWord[w], i)
		}
	}
	return out
}

// contentWords returns the distinct case-folded tokens of a non-pronominal
// mention, excluding pronouns.
func (g *CandidateGenerator) contentWords(m *mentions.Mention) []string {
	if m.IsPronominal() {
		return nil
	}
	seen := make(map[string]struct{}, len(m.Tokens))
	var words []string
	for _, tok := range m.Tokens {
		w := mentions.Fold(tok)
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		if g.Pronouns != nil && g.Pronouns.IsPronoun(w) {
			continue
		}
		words = append(words, w)
	}
	return words
}
