package coref

// orderedCounts is a count map that remembers key insertion order. Iteration,
// containment search and argmax all walk keys in that order, so ties resolve to
// the first-seen key regardless of map internals.
type orderedCounts[K comparable] struct {
	keys   []K
	counts map[K]int
}

func newOrderedCounts[K comparable]() *orderedCounts[K] {
	return &orderedCounts[K]{counts: make(map[K]int)}
}

func (c *orderedCounts[K]) Len() int { return len(c.keys) }

func (c *orderedCounts[K]) Get(k K) (int, bool) {
	n, ok := c.counts[k]
	return n, ok
}

// Set stores n under k, appending k to the order if it is new.
func (c *orderedCounts[K]) Set(k K, n int) {
	if _, ok := c.counts[k]; !ok {
		c.keys = append(c.keys, k)
	}
	c.counts[k] = n
}

func (c *orderedCounts[K]) Add(k K, n int) {
	c.Set(k, c.counts[k]+n)
}

func (c *orderedCounts[K]) Delete(k K) {
	if _, ok := c.counts[k]; !ok {
		return
	}
	delete(c.counts, k)
	for i, key := range c.keys {
		if key == k {
			c.keys = append(c.keys[:i], c.keys[i+1:]...)
			return
		}
	}
}

// Keys returns the keys in insertion order.
func (c *orderedCounts[K]) Keys() []K {
	out := make([]K, len(c.keys))
	copy(out, c.keys)
	return out
}

// Argmax returns the key with the highest count; the earliest key wins ties.
func (c *orderedCounts[K]) Argmax() (K, bool) {
	var best K
	bestN, found := 0, false
	for _, k := range c.keys {
		if n := c.counts[k]; !found || n > bestN {
			best, bestN, found = k, n, true
		}
	}
	return best, found
}

func (c *orderedCounts[K]) Clone() *orderedCounts[K] {
	out := &orderedCounts[K]{
		keys:   make([]K, len(c.keys)),
		counts: make(map[K]int, len(c.counts)),
	}
	copy(out.keys, c.keys)
	for k, n := range c.counts {
		out.counts[k] = n
	}
	return out
}

// attrSet is an insertion-ordered set.
type attrSet[T comparable] struct {
	items []T
	index map[T]struct{}
}

func newAttrSet[T comparable](items ...T) *attrSet[T] {
	s := &attrSet[T]{index: make(map[T]struct{}, len(items))}
	for _, it := range items {
		s.Add(it)
	}
	return s
}

func (s *attrSet[T]) Len() int { return len(s.items) }

func (s *attrSet[T]) Contains(v T) bool {
	_, ok := s.index[v]
	return ok
}

func (s *attrSet[T]) Add(v T) {
	if _, ok := s.index[v]; ok {
		return
	}
	s.index[v] = struct{}{}
	s.items = append(s.items, v)
}

func (s *attrSet[T]) Remove(v T) {
	if _, ok := s.index[v]; !ok {
		return
	}
	delete(s.index, v)
	for i, it := range s.items {
		if it == v {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return
		}
	}
}

// Union adds every item of o, in o's order.
func (s *attrSet[T]) Union(o *attrSet[T]) {
	for _, it := range o.items {
		s.Add(it)
	}
}

// dropIfAmbiguous removes v when the set holds v and at least one other value.
func (s *attrSet[T]) dropIfAmbiguous(v T) {
	if s.Len() > 1 && s.Contains(v) {
		s.Remove(v)
	}
}

// Items returns the members in insertion order.
func (s *attrSet[T]) Items() []T {
	out := make([]T, len(s.items))
	copy(out, s.items)
	return out
}

func (s *attrSet[T]) Clone() *attrSet[T] {
	return newAttrSet(s.items...)
}
