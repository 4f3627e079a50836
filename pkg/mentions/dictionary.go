package mentions

import (
	"fmt"
	"os"
	"sort"

	"golang.org/x/text/cases"
	"gopkg.in/yaml.v3"
)

// PronounLookup answers whether a surface string is a pronoun.
type PronounLookup interface {
	IsPronoun(text string) bool
}

// Fold case-folds s for dictionary and word-set comparisons.
func Fold(s string) string {
	// Casers carry state; one per call keeps Fold safe for concurrent use.
	return cases.Fold().String(s)
}

// Dictionary is a read-only pronoun set. Lookups are case-insensitive.
type Dictionary struct {
	pronouns map[string]struct{}
}

// dictionaryFile is the on-disk YAML layout.
type dictionaryFile struct {
	Pronouns []string `yaml:"pronouns"`
}

// NewDictionary builds a dictionary from a pronoun list.
func NewDictionary(pronouns []string) *Dictionary {
	d := &Dictionary{pronouns: make(map[string]struct{}, len(pronouns))}
	for _, p := range pronouns {
		d.pronouns[Fold(p)] = struct{}{}
	}
	return d
}

// LoadDictionary reads a YAML pronoun list from path.
func LoadDictionary(path string) (*Dictionary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading dictionary: %w", err)
	}
	var f dictionaryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing dictionary %s: %w", path, err)
	}
	if len(f.Pronouns) == 0 {
		return nil, invalid("dictionary %s: no pronouns", path)
	}
	return NewDictionary(f.Pronouns), nil
}

// IsPronoun implements PronounLookup.
func (d *Dictionary) IsPronoun(text string) bool {
	_, ok := d.pronouns[Fold(text)]
	return ok
}

// Len returns the number of entries.
func (d *Dictionary) Len() int {
	return len(d.pronouns)
}

// Pronouns returns the folded entries in sorted order.
func (d *Dictionary) Pronouns() []string {
	out := make([]string, 0, len(d.pronouns))
	for p := range d.pronouns {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// DefaultDictionary returns the built-in English pronoun set.
func DefaultDictionary() *Dictionary {
	return NewDictionary(englishPronouns)
}

var englishPronouns = []string{
	"i", "me", "my", "mine", "myself",
	"we", "us", "our", "ours", "ourselves",
	"you", "your", "yours", "yourself", "yourselves", "yall", "y'all",
	"he", "him", "his", "himself",
	"she", "her", "hers", "herself",
	"it", "its", "itself",
	"they", "them", "their", "theirs", "themselves", "themself",
	"one", "oneself", "one's",
	"this", "that", "these", "those",
	"who", "whom", "whose", "which", "what",
	"here", "there",
	"something", "someone", "somebody", "anything", "anyone", "anybody",
	"everything", "everyone", "everybody", "nothing", "nobody", "none",
	"each", "other", "another", "both", "all", "any",
}
