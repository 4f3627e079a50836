// Package mentions defines the mention model consumed by the coreference engine:
// mention attributes produced upstream, document-order and representativeness
// relations, and the read-only pronoun dictionary.
package mentions

import (
	"fmt"
	"strings"

	corerrors "github.com/otherjamesbrown/penf-coref/pkg/errors"
)

// MentionType is the syntactic class of a mention.
type MentionType string

const (
	MentionTypePronominal MentionType = "PRONOMINAL"
	MentionTypeNominal    MentionType = "NOMINAL"
	MentionTypeProper     MentionType = "PROPER"
	MentionTypeList       MentionType = "LIST"
)

// Number is grammatical number.
type Number string

const (
	NumberSingular Number = "SINGULAR"
	NumberPlural   Number = "PLURAL"
	NumberUnknown  Number = "UNKNOWN"
)

// Gender is grammatical or natural gender.
type Gender string

const (
	GenderMale    Gender = "MALE"
	GenderFemale  Gender = "FEMALE"
	GenderNeutral Gender = "NEUTRAL"
	GenderUnknown Gender = "UNKNOWN"
)

// Animacy marks whether a mention refers to an animate entity.
type Animacy string

const (
	AnimacyAnimate   Animacy = "ANIMATE"
	AnimacyInanimate Animacy = "INANIMATE"
	AnimacyUnknown   Animacy = "UNKNOWN"
)

// NER labels treated as uninformative when a cluster carries other labels.
const (
	NEROutside = "O"
	NERMisc    = "MISC"
)

// characterMaxTokens bounds the length of proper mentions that vote for a
// cluster's character name.
const characterMaxTokens = 4

// Mention is a referring expression detected upstream. All attributes are
// precomputed; the engine only reads them. Cluster membership is tracked by the
// cluster store, never on the mention itself.
type Mention struct {
	ID      int         `json:"id" yaml:"id"`
	Type    MentionType `json:"type" yaml:"type"`
	Number  Number      `json:"number" yaml:"number"`
	Gender  Gender      `json:"gender" yaml:"gender"`
	Animacy Animacy     `json:"animacy" yaml:"animacy"`
	NER     string      `json:"ner" yaml:"ner"`
	Head    string      `json:"head" yaml:"head"`

	// Tokens is the original surface span.
	Tokens []string `json:"tokens" yaml:"tokens"`

	SentNum    int `json:"sent_num" yaml:"sent_num"`
	StartIndex int `json:"start_index" yaml:"start_index"`
	EndIndex   int `json:"end_index" yaml:"end_index"`
	HeadIndex  int `json:"head_index" yaml:"head_index"`

	// MentionNum is the mention's ordinal within the document.
	MentionNum int `json:"mention_num" yaml:"mention_num"`
}

// IsPronominal reports whether the mention is a pronoun.
func (m *Mention) IsPronominal() bool {
	return m.Type == MentionTypePronominal
}

// String returns the surface text, tokens joined by single spaces.
func (m *Mention) String() string {
	return strings.Join(m.Tokens, " ")
}

// CharacterName returns the string this mention contributes to a cluster's
// character-name vote. Only proper mentions of at most four tokens vote; the
// possessive clitic is stripped.
func (m *Mention) CharacterName() (string, bool) {
	if m.Type != MentionTypeProper || len(m.Tokens) > characterMaxTokens {
		return "", false
	}
	return strings.ReplaceAll(m.String(), " 's", ""), true
}

// Validate checks that the mention's attributes are internally consistent.
func (m *Mention) Validate() error {
	switch m.Type {
	case MentionTypePronominal, MentionTypeNominal, MentionTypeProper, MentionTypeList:
	default:
		return invalid("mention %d: unknown type %q", m.ID, m.Type)
	}
	if m.ID < 0 {
		return invalid("mention %d: negative id", m.ID)
	}
	if m.EndIndex <= m.StartIndex {
		return invalid("mention %d: empty span [%d,%d)", m.ID, m.StartIndex, m.EndIndex)
	}
	if m.HeadIndex < m.StartIndex || m.HeadIndex >= m.EndIndex {
		return invalid("mention %d: head index %d outside span [%d,%d)", m.ID, m.HeadIndex, m.StartIndex, m.EndIndex)
	}
	if len(m.Tokens) == 0 {
		return invalid("mention %d: no tokens", m.ID)
	}
	return nil
}

// Normalize fills empty attributes with their UNKNOWN values.
func (m *Mention) Normalize() {
	if m.Number == "" {
		m.Number = NumberUnknown
	}
	if m.Gender == "" {
		m.Gender = GenderUnknown
	}
	if m.Animacy == "" {
		m.Animacy = AnimacyUnknown
	}
	if m.NER == "" {
		m.NER = NEROutside
	}
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), corerrors.ErrValidation)
}
