package mentions

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// PairKey identifies an ordered (antecedent, anaphor) mention pair.
type PairKey struct {
	Antecedent int
	Anaphor    int
}

func (k PairKey) String() string {
	return fmt.Sprintf("%d->%d", k.Antecedent, k.Anaphor)
}

// PairData is upstream output for one mention pair: a feature vector for
// model-based scorers and, optionally, a precomputed score.
type PairData struct {
	Antecedent int                `json:"antecedent" yaml:"antecedent"`
	Anaphor    int                `json:"anaphor" yaml:"anaphor"`
	Score      *float64           `json:"score,omitempty" yaml:"score,omitempty"`
	Features   map[string]float64 `json:"features,omitempty" yaml:"features,omitempty"`
}

// Key returns the pair's key.
func (p PairData) Key() PairKey {
	return PairKey{Antecedent: p.Antecedent, Anaphor: p.Anaphor}
}

// Document is the unit of resolution: every mention detected in one text plus
// per-pair upstream data.
type Document struct {
	ID       string     `json:"id" yaml:"id"`
	Mentions []*Mention `json:"mentions" yaml:"mentions"`
	Pairs    []PairData `json:"pairs,omitempty" yaml:"pairs,omitempty"`

	byID   map[int]*Mention
	byPair map[PairKey]*PairData
}

// Prepare normalizes mention attributes, validates the document and builds its
// lookup indexes. It must be called before the document is resolved.
func (d *Document) Prepare() error {
	if d.ID == "" {
		return invalid("document has no id")
	}

	d.byID = make(map[int]*Mention, len(d.Mentions))
	for _, m := range d.Mentions {
		if m == nil {
			return invalid("document %s: nil mention", d.ID)
		}
		m.Normalize()
		if err := m.Validate(); err != nil {
			return fmt.Errorf("document %s: %w", d.ID, err)
		}
		if _, dup := d.byID[m.ID]; dup {
			return invalid("document %s: duplicate mention id %d", d.ID, m.ID)
		}
		d.byID[m.ID] = m
	}

	d.byPair = make(map[PairKey]*PairData, len(d.Pairs))
	for i := range d.Pairs {
		p := &d.Pairs[i]
		if _, ok := d.byID[p.Antecedent]; !ok {
			return invalid("document %s: pair %s references unknown antecedent", d.ID, p.Key())
		}
		if _, ok := d.byID[p.Anaphor]; !ok {
			return invalid("document %s: pair %s references unknown anaphor", d.ID, p.Key())
		}
		d.byPair[p.Key()] = p
	}
	return nil
}

// Mention returns the mention with the given ID.
func (d *Document) Mention(id int) (*Mention, bool) {
	m, ok := d.byID[id]
	return m, ok
}

// Pair returns upstream data for a pair, if any was supplied.
func (d *Document) Pair(key PairKey) (*PairData, bool) {
	p, ok := d.byPair[key]
	return p, ok
}

// Sorted returns the document's mentions in document order.
func (d *Document) Sorted() []*Mention {
	return SortedMentions(d.Mentions)
}

// Fingerprint hashes the document's content: its ID, every mention and every
// pair. Documents that share an ID but differ in any mention attribute, score or
// feature get different fingerprints. It fails only when the content cannot be
// encoded, such as a NaN feature value.
func (d *Document) Fingerprint() (string, error) {
	data, err := json.Marshal(struct {
		ID       string     `json:"id"`
		Mentions []*Mention `json:"mentions"`
		Pairs    []PairData `json:"pairs"`
	}{d.ID, d.Mentions, d.Pairs})
	if err != nil {
		return "", fmt.Errorf("fingerprinting document %s: %w", d.ID, err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// LoadDocument reads a document from a JSON or YAML file and prepares it.
func LoadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading document: %w", err)
	}

	var doc Document
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &doc)
	default:
		err = json.Unmarshal(data, &doc)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing document %s: %w", path, err)
	}

	if doc.ID == "" {
		doc.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if err := doc.Prepare(); err != nil {
		return nil, err
	}
	return &doc, nil
}
