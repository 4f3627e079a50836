// Package scorecache memoises pair scores so repeated runs over the same
// document with the same scorer skip scoring.
package scorecache

import (
	"context"
	"fmt"
	"sync"
)

// Cache stores pair scores keyed by a scope and (antecedent, anaphor) mention
// IDs. Callers choose a scope that identifies both the document content and the
// scorer configuration.
type Cache interface {
	Get(ctx context.Context, scope string, antecedent, anaphor int) (float64, bool, error)
	Put(ctx context.Context, scope string, antecedent, anaphor int, score float64) error
}

func pairField(antecedent, anaphor int) string {
	return fmt.Sprintf("%d:%d", antecedent, anaphor)
}

// MemoryCache is an in-process Cache.
type MemoryCache struct {
	mu     sync.RWMutex
	scores map[string]map[string]float64
}

// NewMemoryCache creates an empty in-process cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{scores: make(map[string]map[string]float64)}
}

// Get implements Cache.
func (c *MemoryCache) Get(_ context.Context, scope string, antecedent, anaphor int) (float64, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.scores[scope][pairField(antecedent, anaphor)]
	return v, ok, nil
}

// Put implements Cache.
func (c *MemoryCache) Put(_ context.Context, scope string, antecedent, anaphor int, score float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	doc, ok := c.scores[scope]
	if !ok {
		doc = make(map[string]float64)
		c.scores[scope] = doc
	}
	doc[pairField(antecedent, anaphor)] = score
	return nil
}

// Invalidate drops every score in a scope.
func (c *MemoryCache) Invalidate(_ context.Context, scope string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.scores, scope)
	return nil
}

// Len returns the number of cached pairs across scopes.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, doc := range c.scores {
		n += len(doc)
	}
	return n
}
