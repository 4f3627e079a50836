package coref

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/penf-coref/pkg/mentions"
)

func TestSingleton(t *testing.T) {
	tom := withNER(withGender(proper(1, 0, 0, "Tom", "'s"), mentions.GenderMale), "PERSON")
	c := singleton(7, tom)

	assert.Equal(t, 7, c.ID())
	assert.Equal(t, 1, c.Size())
	assert.Equal(t, []mentions.Gender{mentions.GenderMale}, c.Genders())
	assert.Equal(t, []mentions.Number{mentions.NumberUnknown}, c.Numbers())
	assert.Equal(t, []string{"PERSON"}, c.NERStrings())
	assert.Equal(t, []string{"'s"}, c.Heads())
	assert.Equal(t, []string{"tom", "'s"}, c.Words())
	assert.Same(t, tom, c.FirstMention())
	assert.Same(t, tom, c.Representative())
	assert.Equal(t, "Tom", c.Character())
	assert.Equal(t, mentions.GenderMale, c.Gender())
}

func TestSingleton_PronounHasNoWordsOrCharacter(t *testing.T) {
	c := singleton(0, pronoun(1, 0, 0, "He"))

	assert.Empty(t, c.Words())
	assert.Equal(t, []string{"He"}, c.Heads())
	assert.Equal(t, "", c.Character())
	assert.Empty(t, c.CharacterCounts())
}

func TestAbsorb_TomAndHe(t *testing.T) {
	tom := withGender(proper(1, 0, 0, "Tom"), mentions.GenderMale)
	he := pronoun(2, 0, 4, "he")

	a := singleton(0, tom)
	a.absorb(singleton(1, he))

	assert.Equal(t, 2, a.Size())
	assert.Equal(t, []mentions.Gender{mentions.GenderMale}, a.Genders())
	assert.Same(t, tom, a.Representative())
	assert.Same(t, tom, a.FirstMention())
	assert.Equal(t, "Tom", a.Character())
	assert.Equal(t, mentions.GenderMale, a.Gender())
	assert.Equal(t, []string{"Tom", "he"}, a.Heads())
	assert.Equal(t, []string{"tom"}, a.Words())
}

func TestAbsorb_TomAndHe_AnaphorSide(t *testing.T) {
	tom := withGender(proper(1, 0, 0, "Tom"), mentions.GenderMale)
	he := pronoun(2, 0, 4, "he")

	b := singleton(1, he)
	b.absorb(singleton(0, tom))

	assert.Equal(t, []mentions.Gender{mentions.GenderMale}, b.Genders())
	assert.Same(t, tom, b.Representative())
	assert.Same(t, tom, b.FirstMention())
	assert.Equal(t, "Tom", b.Character())
}

func TestAbsorb_AmbiguityRemoval(t *testing.T) {
	tests := []struct {
		name      string
		a, b      *mentions.Mention
		numbers   []mentions.Number
		genders   []mentions.Gender
		animacies []mentions.Animacy
	}{
		{
			name:      "unknown dropped beside known",
			a:         withNumber(nominal(1, 0, 0, "the", "man"), mentions.NumberSingular),
			b:         pronoun(2, 0, 3, "it"),
			numbers:   []mentions.Number{mentions.NumberSingular},
			genders:   []mentions.Gender{mentions.GenderUnknown},
			animacies: []mentions.Animacy{mentions.AnimacyUnknown},
		},
		{
			name:      "conflicting known values both kept",
			a:         withGender(nominal(1, 0, 0, "the", "man"), mentions.GenderMale),
			b:         withGender(pronoun(2, 0, 3, "she"), mentions.GenderFemale),
			numbers:   []mentions.Number{mentions.NumberUnknown},
			genders:   []mentions.Gender{mentions.GenderMale, mentions.GenderFemale},
			animacies: []mentions.Animacy{mentions.AnimacyUnknown},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := singleton(0, tt.a)
			c.absorb(singleton(1, tt.b))
			assert.Equal(t, tt.numbers, c.Numbers())
			assert.Equal(t, tt.genders, c.Genders())
			assert.Equal(t, tt.animacies, c.Animacies())
		})
	}
}

func TestAbsorb_NERRemovesOutsideAndMiscIndependently(t *testing.T) {
	tests := []struct {
		name string
		ners []string
		want []string
	}{
		{"O and MISC alone collapse to MISC", []string{"O", "MISC"}, []string{"MISC"}},
		{"O dropped beside PERSON", []string{"O", "PERSON"}, []string{"PERSON"}},
		{"MISC dropped beside PERSON", []string{"MISC", "PERSON"}, []string{"PERSON"}},
		{"both dropped beside PERSON", []string{"O", "MISC", "PERSON"}, []string{"PERSON"}},
		{"O alone kept", []string{"O", "O"}, []string{"O"}},
		{"two real types kept", []string{"PERSON", "ORG"}, []string{"PERSON", "ORG"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := singleton(0, withNER(nominal(0, 0, 0, "x"), tt.ners[0]))
			for i, ner := range tt.ners[1:] {
				c.absorb(singleton(i+1, withNER(nominal(i+1, 0, (i+1)*2, "x"), ner)))
			}
			assert.Equal(t, tt.want, c.NERStrings())
		})
	}
}

func TestAbsorb_FirstMention(t *testing.T) {
	t.Run("earlier non-pronominal replaces", func(t *testing.T) {
		later := pronoun(2, 0, 5, "he")
		earlier := proper(1, 0, 0, "Tom")

		c := singleton(0, later)
		c.absorb(singleton(1, earlier))
		assert.Same(t, earlier, c.FirstMention())
	})

	t.Run("earlier pronoun does not replace", func(t *testing.T) {
		later := proper(2, 1, 0, "Tom")
		earlier := pronoun(1, 0, 0, "He")

		c := singleton(0, later)
		c.absorb(singleton(1, earlier))
		assert.Same(t, later, c.FirstMention())
	})

	t.Run("later mention does not replace", func(t *testing.T) {
		first := nominal(1, 0, 0, "the", "man")
		c := singleton(0, first)
		c.absorb(singleton(1, proper(2, 2, 0, "Tom")))
		assert.Same(t, first, c.FirstMention())
	})
}

func TestAbsorb_Representative(t *testing.T) {
	he := pronoun(1, 0, 0, "He")
	man := nominal(2, 0, 3, "the", "man")
	tom := proper(3, 1, 0, "Tom")

	c := singleton(0, he)
	c.absorb(singleton(1, man))
	assert.Same(t, man, c.Representative())

	c.absorb(singleton(2, tom))
	assert.Same(t, tom, c.Representative())

	c.absorb(singleton(3, pronoun(4, 2, 0, "him")))
	assert.Same(t, tom, c.Representative())
}

func TestAbsorb_CharacterCountsContainment(t *testing.T) {
	c := singleton(0, proper(1, 0, 0, "Tom"))

	c.absorb(singleton(1, proper(2, 1, 0, "Tom", "Smith")))
	assert.Equal(t, []NameCount{{"Tom", 1}, {"Tom Smith", 2}}, c.CharacterCounts())
	assert.Equal(t, "Tom Smith", c.Character())

	c.absorb(singleton(2, proper(3, 2, 0, "Smith")))
	assert.Equal(t, []NameCount{{"Tom", 1}, {"Tom Smith", 3}}, c.CharacterCounts())

	c.absorb(singleton(3, proper(4, 3, 0, "Tom")))
	assert.Equal(t, []NameCount{{"Tom", 2}, {"Tom Smith", 3}}, c.CharacterCounts())

	c.absorb(singleton(4, proper(5, 4, 0, "Ann")))
	assert.Equal(t, []NameCount{{"Tom", 2}, {"Tom Smith", 3}, {"Ann", 1}}, c.CharacterCounts())
	assert.Equal(t, "Tom Smith", c.Character())
}

func TestAbsorb_CharacterTieKeepsFirstSeen(t *testing.T) {
	c := singleton(0, proper(1, 0, 0, "Ann"))
	c.absorb(singleton(1, proper(2, 1, 0, "Bob")))

	assert.Equal(t, "Ann", c.Character())
}

func TestAbsorb_GenderCounts(t *testing.T) {
	tests := []struct {
		name    string
		genders []mentions.Gender
		want    mentions.Gender
	}{
		{"unknown loses to male", []mentions.Gender{mentions.GenderUnknown, mentions.GenderUnknown, mentions.GenderMale}, mentions.GenderMale},
		{"unknown kept without male or female", []mentions.Gender{mentions.GenderUnknown, mentions.GenderUnknown, mentions.GenderNeutral}, mentions.GenderUnknown},
		{"tie goes to first seen", []mentions.Gender{mentions.GenderFemale, mentions.GenderMale}, mentions.GenderFemale},
		{"majority wins", []mentions.Gender{mentions.GenderFemale, mentions.GenderMale, mentions.GenderMale}, mentions.GenderMale},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := singleton(0, withGender(nominal(0, 0, 0, "x"), tt.genders[0]))
			for i, g := range tt.genders[1:] {
				c.absorb(singleton(i+1, withGender(nominal(i+1, 0, (i+1)*2, "x"), g)))
			}
			assert.Equal(t, tt.want, c.Gender())
		})
	}
}

func TestNewCluster_FromMentionSet(t *testing.T) {
	he := pronoun(2, 0, 4, "he")
	tom := withGender(proper(1, 0, 0, "Tom"), mentions.GenderMale)
	him := pronoun(3, 1, 2, "him")

	c := newCluster(5, []*mentions.Mention{he, him, tom})

	require.Equal(t, 3, c.Size())
	assert.Equal(t, 5, c.ID())
	assert.Same(t, tom, c.FirstMention())
	assert.Same(t, tom, c.Representative())
	assert.Equal(t, []mentions.Gender{mentions.GenderMale}, c.Genders())
	assert.Equal(t, "Tom", c.Character())
	assert.Equal(t, []*mentions.Mention{tom, he, him}, c.Mentions())
}

func TestNewCluster_Empty(t *testing.T) {
	c := newCluster(0, nil)
	assert.Equal(t, 0, c.Size())
	assert.Nil(t, c.FirstMention())
	assert.Nil(t, c.Representative())
}

func TestIsSinglePronounCluster(t *testing.T) {
	dict := mentions.NewDictionary([]string{"it", "he"})
	two := singleton(0, proper(1, 0, 0, "Tom"))
	two.absorb(singleton(1, pronoun(2, 0, 3, "he")))

	tests := []struct {
		name   string
		c      *Cluster
		lookup mentions.PronounLookup
		want   bool
	}{
		{"pronoun type", singleton(0, pronoun(1, 0, 0, "he")), nil, true},
		{"pronoun text", singleton(0, nominal(1, 0, 0, "It")), dict, true},
		{"pronoun text without dictionary", singleton(0, nominal(1, 0, 0, "It")), nil, false},
		{"proper", singleton(0, proper(1, 0, 0, "Tom")), dict, false},
		{"two mentions", two, dict, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.c.IsSinglePronounCluster(tt.lookup))
		})
	}
}

func TestClone_IsIndependent(t *testing.T) {
	c := singleton(0, proper(1, 0, 0, "Tom"))
	cl := c.clone()
	cl.absorb(singleton(1, withGender(pronoun(2, 0, 2, "she"), mentions.GenderFemale)))

	assert.Equal(t, 1, c.Size())
	assert.Equal(t, []mentions.Gender{mentions.GenderUnknown}, c.Genders())
	assert.Equal(t, 2, cl.Size())
}
