package coref

import (
	"strings"

	"github.com/otherjamesbrown/penf-coref/pkg/mentions"
)

// Cluster is one entity: a set of co-referring mentions plus attributes
// aggregated over them. Clusters are owned and mutated by a Store.
type Cluster struct {
	id      int
	members []*mentions.Mention

	numbers   *attrSet[mentions.Number]
	genders   *attrSet[mentions.Gender]
	animacies *attrSet[mentions.Animacy]
	ners      *attrSet[string]
	heads     *attrSet[string]
	words     *attrSet[string]

	first          *mentions.Mention
	representative *mentions.Mention

	characterCounts *orderedCounts[string]
	character       string

	genderCounts *orderedCounts[mentions.Gender]
	gender       mentions.Gender
}

func emptyCluster(id int) *Cluster {
	return &Cluster{
		id:              id,
		numbers:         newAttrSet[mentions.Number](),
		genders:         newAttrSet[mentions.Gender](),
		animacies:       newAttrSet[mentions.Animacy](),
		ners:            newAttrSet[string](),
		heads:           newAttrSet[string](),
		words:           newAttrSet[string](),
		characterCounts: newOrderedCounts[string](),
		genderCounts:    newOrderedCounts[mentions.Gender](),
	}
}

// singleton builds the one-mention cluster for m.
func singleton(id int, m *mentions.Mention) *Cluster {
	c := emptyCluster(id)
	c.members = []*mentions.Mention{m}
	c.numbers.Add(m.Number)
	c.genders.Add(m.Gender)
	c.animacies.Add(m.Animacy)
	c.ners.Add(m.NER)
	c.heads.Add(m.Head)
	if !m.IsPronominal() {
		for _, tok := range m.Tokens {
			c.words.Add(mentions.Fold(tok))
		}
	}
	c.first = m
	c.representative = m
	if name, ok := m.CharacterName(); ok {
		c.characterCounts.Set(name, 1)
		c.character = name
	}
	c.genderCounts.Set(m.Gender, 1)
	c.gender = m.Gender
	return c
}

// newCluster builds a cluster from a mention set. Mentions are taken in
// document order; the earliest seeds the first and representative mentions and
// every other mention is folded in with the same rules as a merge.
func newCluster(id int, ms []*mentions.Mention) *Cluster {
	if len(ms) == 0 {
		return emptyCluster(id)
	}
	sorted := mentions.SortedMentions(ms)
	c := singleton(id, sorted[0])
	for _, m := range sorted[1:] {
		c.absorb(singleton(id, m))
	}
	return c
}

// absorb folds from into c. Membership bookkeeping outside the cluster is the
// store's job.
func (c *Cluster) absorb(from *Cluster) {
	c.members = append(c.members, from.members...)

	c.numbers.Union(from.numbers)
	c.numbers.dropIfAmbiguous(mentions.NumberUnknown)
	c.genders.Union(from.genders)
	c.genders.dropIfAmbiguous(mentions.GenderUnknown)
	c.animacies.Union(from.animacies)
	c.animacies.dropIfAmbiguous(mentions.AnimacyUnknown)

	c.ners.Union(from.ners)
	c.ners.dropIfAmbiguous(mentions.NEROutside)
	c.ners.dropIfAmbiguous(mentions.NERMisc)

	c.heads.Union(from.heads)
	c.words.Union(from.words)

	if from.first != nil {
		if c.first == nil || (from.first.AppearsEarlierThan(c.first) && !from.first.IsPronominal()) {
			c.first = from.first
		}
	}
	if from.representative != nil && from.representative.MoreRepresentativeThan(c.representative) {
		c.representative = from.representative
	}

	c.mergeCharacterCounts(from.characterCounts)
	if name, ok := c.characterCounts.Argmax(); ok {
		c.character = name
	}

	for _, g := range from.genderCounts.Keys() {
		n, _ := from.genderCounts.Get(g)
		c.genderCounts.Add(g, n)
	}
	c.resolveGender()
}

// mergeCharacterCounts folds name votes from another cluster. An exact key adds
// counts. Otherwise the first existing key, in insertion order, that contains or
// is contained by the incoming name absorbs it: a longer incoming name is
// inserted carrying both counts, a shorter one adds to the existing entry. Only
// names with no containment match are inserted alone. The result depends on
// insertion order and is not a canonical grouping.
func (c *Cluster) mergeCharacterCounts(from *orderedCounts[string]) {
	for _, name := range from.Keys() {
		n, _ := from.Get(name)
		if cur, ok := c.characterCounts.Get(name); ok {
			c.characterCounts.Set(name, cur+n)
			continue
		}

		merged := false
		for _, existing := range c.characterCounts.Keys() {
			cur, _ := c.characterCounts.Get(existing)
			if strings.Contains(name, existing) {
				c.characterCounts.Set(name, n+cur)
				merged = true
				break
			}
			if strings.Contains(existing, name) {
				c.characterCounts.Set(existing, cur+n)
				merged = true
				break
			}
		}
		if !merged {
			c.characterCounts.Set(name, n)
		}
	}
}

func (c *Cluster) resolveGender() {
	_, male := c.genderCounts.Get(mentions.GenderMale)
	_, female := c.genderCounts.Get(mentions.GenderFemale)
	if male || female {
		c.genderCounts.Delete(mentions.GenderUnknown)
	}
	if g, ok := c.genderCounts.Argmax(); ok {
		c.gender = g
	}
}

func (c *Cluster) clone() *Cluster {
	out := *c
	out.members = make([]*mentions.Mention, len(c.members))
	copy(out.members, c.members)
	out.numbers = c.numbers.Clone()
	out.genders = c.genders.Clone()
	out.animacies = c.animacies.Clone()
	out.ners = c.ners.Clone()
	out.heads = c.heads.Clone()
	out.words = c.words.Clone()
	out.characterCounts = c.characterCounts.Clone()
	out.genderCounts = c.genderCounts.Clone()
	return &out
}

// ID returns the cluster's identifier. IDs are never reused within a store.
func (c *Cluster) ID() int { return c.id }

// Size returns the number of member mentions.
func (c *Cluster) Size() int { return len(c.members) }

// Mentions returns the members in the order they joined.
func (c *Cluster) Mentions() []*mentions.Mention {
	out := make([]*mentions.Mention, len(c.members))
	copy(out, c.members)
	return out
}

func (c *Cluster) Numbers() []mentions.Number      { return c.numbers.Items() }
func (c *Cluster) Genders() []mentions.Gender      { return c.genders.Items() }
func (c *Cluster) Animacies() []mentions.Animacy   { return c.animacies.Items() }
func (c *Cluster) NERStrings() []string            { return c.ners.Items() }
func (c *Cluster) Heads() []string                 { return c.heads.Items() }
func (c *Cluster) Words() []string                 { return c.words.Items() }
func (c *Cluster) FirstMention() *mentions.Mention { return c.first }

// Representative returns the mention best suited to name the entity.
func (c *Cluster) Representative() *mentions.Mention { return c.representative }

// Character returns the voted character name, or "" if no proper mention voted.
func (c *Cluster) Character() string { return c.character }

// Gender returns the majority gender. UNKNOWN never wins once MALE or FEMALE
// has been seen.
func (c *Cluster) Gender() mentions.Gender { return c.gender }

// NameCount is one character-name vote tally.
type NameCount struct {
	Name  string `json:"name" yaml:"name"`
	Count int    `json:"count" yaml:"count"`
}

// CharacterCounts returns name tallies in insertion order.
func (c *Cluster) CharacterCounts() []NameCount {
	out := make([]NameCount, 0, c.characterCounts.Len())
	for _, k := range c.characterCounts.Keys() {
		n, _ := c.characterCounts.Get(k)
		out = append(out, NameCount{Name: k, Count: n})
	}
	return out
}

// IsSinglePronounCluster reports whether the cluster is a lone pronoun: one
// mention that is either typed pronominal or whose surface text is listed in
// the pronoun dictionary.
func (c *Cluster) IsSinglePronounCluster(lookup mentions.PronounLookup) bool {
	if len(c.members) != 1 {
		return false
	}
	m := c.members[0]
	if m.IsPronominal() {
		return true
	}
	return lookup != nil && lookup.IsPronoun(m.String())
}
