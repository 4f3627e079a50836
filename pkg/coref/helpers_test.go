package coref

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/penf-coref/pkg/mentions"
)

// mention builds a normalized mention whose head is its last token.
func mention(id int, typ mentions.MentionType, sent, start int, tokens ...string) *mentions.Mention {
	m := &mentions.Mention{
		ID:         id,
		Type:       typ,
		Head:       tokens[len(tokens)-1],
		Tokens:     tokens,
		SentNum:    sent,
		StartIndex: start,
		EndIndex:   start + len(tokens),
		HeadIndex:  start + len(tokens) - 1,
		MentionNum: id,
	}
	m.Normalize()
	return m
}

func proper(id, sent, start int, tokens ...string) *mentions.Mention {
	return mention(id, mentions.MentionTypeProper, sent, start, tokens...)
}

func nominal(id, sent, start int, tokens ...string) *mentions.Mention {
	return mention(id, mentions.MentionTypeNominal, sent, start, tokens...)
}

func pronoun(id, sent, start int, token string) *mentions.Mention {
	return mention(id, mentions.MentionTypePronominal, sent, start, token)
}

func withGender(m *mentions.Mention, g mentions.Gender) *mentions.Mention {
	m.Gender = g
	return m
}

func withNumber(m *mentions.Mention, n mentions.Number) *mentions.Mention {
	m.Number = n
	return m
}

func withNER(m *mentions.Mention, ner string) *mentions.Mention {
	m.NER = ner
	return m
}

// document builds a prepared document. scores maps "antecedent->anaphor" keys
// to precomputed scores.
func document(t *testing.T, id string, ms []*mentions.Mention, scores map[mentions.PairKey]float64) *mentions.Document {
	t.Helper()
	doc := &mentions.Document{ID: id, Mentions: ms}
	for k, v := range scores {
		v := v
		doc.Pairs = append(doc.Pairs, mentions.PairData{Antecedent: k.Antecedent, Anaphor: k.Anaphor, Score: &v})
	}
	require.NoError(t, doc.Prepare())
	return doc
}

func pair(a, b int) mentions.PairKey {
	return mentions.PairKey{Antecedent: a, Anaphor: b}
}

// partition returns the store's clusters as sorted mention-ID groups.
func partition(s *Store) [][]int {
	var out [][]int
	for _, snap := range s.Snapshot() {
		out = append(out, snap.Mentions)
	}
	return out
}
