package coref

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderedCounts_ArgmaxFirstSeenWinsTies(t *testing.T) {
	c := newOrderedCounts[string]()
	c.Set("Tom", 2)
	c.Set("Ann", 2)
	c.Add("Bob", 1)

	best, ok := c.Argmax()
	assert.True(t, ok)
	assert.Equal(t, "Tom", best)

	c.Add("Ann", 1)
	best, _ = c.Argmax()
	assert.Equal(t, "Ann", best)
}

func TestOrderedCounts_Empty(t *testing.T) {
	c := newOrderedCounts[string]()
	_, ok := c.Argmax()
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestOrderedCounts_DeleteKeepsOrder(t *testing.T) {
	c := newOrderedCounts[string]()
	for _, k := range []string{"a", "b", "c"} {
		c.Add(k, 1)
	}
	c.Delete("b")
	c.Delete("missing")

	assert.Equal(t, []string{"a", "c"}, c.Keys())
	_, ok := c.Get("b")
	assert.False(t, ok)

	c.Add("b", 1)
	assert.Equal(t, []string{"a", "c", "b"}, c.Keys())
}

func TestOrderedCounts_CloneIsIndependent(t *testing.T) {
	c := newOrderedCounts[string]()
	c.Set("a", 1)
	cl := c.Clone()
	cl.Add("a", 5)
	cl.Set("b", 1)

	n, _ := c.Get("a")
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"a"}, c.Keys())
}

func TestAttrSet(t *testing.T) {
	s := newAttrSet("x", "y", "x")
	assert.Equal(t, []string{"x", "y"}, s.Items())
	assert.True(t, s.Contains("y"))

	s.Union(newAttrSet("z", "x"))
	assert.Equal(t, []string{"x", "y", "z"}, s.Items())

	s.Remove("y")
	assert.Equal(t, []string{"x", "z"}, s.Items())
	assert.False(t, s.Contains("y"))
}

func TestAttrSet_DropIfAmbiguous(t *testing.T) {
	tests := []struct {
		name  string
		items []string
		want  []string
	}{
		{"alone is kept", []string{"UNKNOWN"}, []string{"UNKNOWN"}},
		{"dropped beside another value", []string{"UNKNOWN", "MALE"}, []string{"MALE"}},
		{"absent is a no-op", []string{"MALE", "FEMALE"}, []string{"MALE", "FEMALE"}},
		{"empty", nil, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newAttrSet(tt.items...)
			s.dropIfAmbiguous("UNKNOWN")
			assert.Equal(t, tt.want, s.Items())
		})
	}
}
