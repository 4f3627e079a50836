package coref

import (
	"fmt"
	"sort"

	corerrors "github.com/otherjamesbrown/penf-coref/pkg/errors"
	"github.com/otherjamesbrown/penf-coref/pkg/logging"
	"github.com/otherjamesbrown/penf-coref/pkg/mentions"
)

// Store holds a partition of mentions into clusters. Clusters live in an arena
// keyed by ID and a mention index maps each mention to its cluster, so clusters
// and mentions never point at each other.
//
// A Store is not safe for concurrent use; each document owns its own.
type Store struct {
	clusters map[int]*Cluster
	index    map[int]int // mention ID -> cluster ID
	nextID   int
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		clusters: make(map[int]*Cluster),
		index:    make(map[int]int),
	}
}

// SingletonStore returns a store with one cluster per mention of doc, created in
// document order.
func SingletonStore(doc *mentions.Document) (*Store, error) {
	s := NewStore()
	for _, m := range doc.Sorted() {
		if _, err := s.NewCluster(m); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// SeededStore builds a store from a given partition, as used for gold or oracle
// initialisation. Each group becomes one cluster.
func SeededStore(groups [][]*mentions.Mention) (*Store, error) {
	s := NewStore()
	for _, g := range groups {
		if _, err := s.NewCluster(g...); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// NewCluster creates a cluster from ms and indexes its mentions. A mention that
// already belongs to a cluster is an invariant violation.
func (s *Store) NewCluster(ms ...*mentions.Mention) (*Cluster, error) {
	seen := make(map[int]struct{}, len(ms))
	for _, m := range ms {
		if _, ok := s.index[m.ID]; ok {
			return nil, fmt.Errorf("mention %d already clustered: %w", m.ID, corerrors.ErrInvariantViolation)
		}
		if _, ok := seen[m.ID]; ok {
			return nil, fmt.Errorf("mention %d listed twice: %w", m.ID, corerrors.ErrInvariantViolation)
		}
		seen[m.ID] = struct{}{}
	}

	c := newCluster(s.nextID, ms)
	s.nextID++
	s.clusters[c.id] = c
	for _, m := range ms {
		s.index[m.ID] = c.id
	}
	return c, nil
}

// Cluster returns the live cluster with the given ID.
func (s *Store) Cluster(id int) (*Cluster, bool) {
	c, ok := s.clusters[id]
	return c, ok
}

// ClusterOf returns the cluster containing the mention.
func (s *Store) ClusterOf(mentionID int) (*Cluster, bool) {
	id, ok := s.index[mentionID]
	if !ok {
		return nil, false
	}
	return s.Cluster(id)
}

// Len returns the number of live clusters.
func (s *Store) Len() int { return len(s.clusters) }

// MentionCount returns the number of indexed mentions.
func (s *Store) MentionCount() int { return len(s.index) }

// Clusters returns the live clusters ordered by ID.
func (s *Store) Clusters() []*Cluster {
	out := make([]*Cluster, 0, len(s.clusters))
	for _, c := range s.clusters {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Merge folds cluster from into cluster to and drops from. Merging a cluster
// into itself does nothing. Either ID not naming a live cluster is an invariant
// violation.
func (s *Store) Merge(to, from int) error {
	if to == from {
		return nil
	}
	dst, ok := s.clusters[to]
	if !ok {
		return fmt.Errorf("merge into cluster %d: not live: %w", to, corerrors.ErrInvariantViolation)
	}
	src, ok := s.clusters[from]
	if !ok {
		return fmt.Errorf("merge from cluster %d: not live: %w", from, corerrors.ErrInvariantViolation)
	}

	for _, m := range src.members {
		s.index[m.ID] = to
	}
	dst.absorb(src)
	delete(s.clusters, from)
	return nil
}

// MergeMentions merges the anaphor's cluster into the antecedent's. It reports
// false without changing anything when both already share a cluster.
func (s *Store) MergeMentions(antecedent, anaphor int) (bool, error) {
	to, ok := s.index[antecedent]
	if !ok {
		return false, fmt.Errorf("antecedent mention %d: %w", antecedent, corerrors.ErrInvariantViolation)
	}
	from, ok := s.index[anaphor]
	if !ok {
		return false, fmt.Errorf("anaphor mention %d: %w", anaphor, corerrors.ErrInvariantViolation)
	}
	if to == from {
		return false, nil
	}
	return true, s.Merge(to, from)
}

// Clone returns a deep copy whose clusters can be merged without affecting s.
// Mentions are shared; they are never mutated.
func (s *Store) Clone() *Store {
	out := &Store{
		clusters: make(map[int]*Cluster, len(s.clusters)),
		index:    make(map[int]int, len(s.index)),
		nextID:   s.nextID,
	}
	for id, c := range s.clusters {
		out.clusters[id] = c.clone()
	}
	for m, c := range s.index {
		out.index[m] = c
	}
	return out
}

// Commit replaces s's state with working's. working must not be used afterwards.
func (s *Store) Commit(working *Store) {
	s.clusters = working.clusters
	s.index = working.index
	s.nextID = working.nextID
	working.clusters, working.index = nil, nil
}

// CheckPartition verifies that every mention belongs to exactly one live
// cluster and that the index agrees with cluster membership.
func (s *Store) CheckPartition() error {
	members := 0
	for id, c := range s.clusters {
		if c.id != id {
			return fmt.Errorf("cluster stored under %d has id %d: %w", id, c.id, corerrors.ErrInvariantViolation)
		}
		for _, m := range c.members {
			if got, ok := s.index[m.ID]; !ok || got != id {
				return fmt.Errorf("mention %d in cluster %d indexed to %d: %w", m.ID, id, got, corerrors.ErrInvariantViolation)
			}
		}
		members += len(c.members)
	}
	if members != len(s.index) {
		return fmt.Errorf("%d cluster members but %d indexed mentions: %w", members, len(s.index), corerrors.ErrInvariantViolation)
	}
	return nil
}

// ClusterSnapshot is a serializable view of one cluster.
type ClusterSnapshot struct {
	ID                 int         `json:"id" yaml:"id"`
	Mentions           []int       `json:"mentions" yaml:"mentions"`
	Numbers            []string    `json:"numbers" yaml:"numbers"`
	Genders            []string    `json:"genders" yaml:"genders"`
	Animacies          []string    `json:"animacies" yaml:"animacies"`
	NERStrings         []string    `json:"ner_strings" yaml:"ner_strings"`
	Heads              []string    `json:"heads" yaml:"heads"`
	Words              []string    `json:"words" yaml:"words"`
	FirstMention       int         `json:"first_mention" yaml:"first_mention"`
	Representative     int         `json:"representative" yaml:"representative"`
	RepresentativeText string      `json:"representative_text" yaml:"representative_text"`
	Character          string      `json:"character,omitempty" yaml:"character,omitempty"`
	CharacterCounts    []NameCount `json:"character_counts,omitempty" yaml:"character_counts,omitempty"`
	Gender             string      `json:"gender" yaml:"gender"`
}

// Snapshot returns a serializable view of the cluster with mentions in
// document order.
func (c *Cluster) Snapshot() ClusterSnapshot {
	snap := ClusterSnapshot{
		ID:              c.id,
		Numbers:         stringsOf(c.numbers.Items()),
		Genders:         stringsOf(c.genders.Items()),
		Animacies:       stringsOf(c.animacies.Items()),
		NERStrings:      c.ners.Items(),
		Heads:           c.heads.Items(),
		Words:           c.words.Items(),
		FirstMention:    -1,
		Representative:  -1,
		Character:       c.character,
		Gender:          string(c.gender),
	}
	if counts := c.CharacterCounts(); len(counts) > 0 {
		snap.CharacterCounts = counts
	}
	for _, m := range mentions.SortedMentions(c.members) {
		snap.Mentions = append(snap.Mentions, m.ID)
	}
	if c.first != nil {
		snap.FirstMention = c.first.ID
	}
	if c.representative != nil {
		snap.Representative = c.representative.ID
		snap.RepresentativeText = c.representative.String()
	}
	return snap
}

// Snapshot returns every live cluster, ordered by ID.
func (s *Store) Snapshot() []ClusterSnapshot {
	clusters := s.Clusters()
	out := make([]ClusterSnapshot, len(clusters))
	for i, c := range clusters {
		out[i] = c.Snapshot()
	}
	return out
}

// Describe logs every cluster at debug level.
func (s *Store) Describe(log logging.Logger) {
	for _, c := range s.Clusters() {
		snap := c.Snapshot()
		log.Debug("cluster",
			logging.F("cluster_id", snap.ID),
			logging.F("mentions", snap.Mentions),
			logging.F("numbers", snap.Numbers),
			logging.F("genders", snap.Genders),
			logging.F("animacies", snap.Animacies),
			logging.F("ner", snap.NERStrings),
			logging.F("heads", snap.Heads),
			logging.F("words", snap.Words),
			logging.F("first_mention", snap.FirstMention),
			logging.F("representative", snap.RepresentativeText),
			logging.F("character", snap.Character),
			logging.F("gender", snap.Gender),
		)
	}
}

func stringsOf[T ~string](vs []T) []string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = string(v)
	}
	return out
}
