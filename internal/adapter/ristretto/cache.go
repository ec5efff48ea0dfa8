// Package ristretto implements an in-process L1 cache used to avoid
// re-loading project knowledge on every worker dispatch.
package ristretto

import (
	"github.com/dgraph-io/ristretto/v2"
)

// Cache wraps a ristretto cache holding arbitrary decoded values
// (cache-aside in front of the store, keyed by the caller).
type Cache struct {
	c *ristretto.Cache[string, any]
}

// New creates a ristretto-backed cache. maxCost bounds the total
// weighted size of cached entries; callers pass a cost of 1 per entry
// unless they need finer-grained accounting.
func New(maxCost int64) (*Cache, error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, any]{
		NumCounters: maxCost * 10,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{c: c}, nil
}

// Get retrieves a value from the cache.
func (c *Cache) Get(key string) (any, bool) {
	return c.c.Get(key)
}

// Set stores a value in the cache under key with the given cost.
func (c *Cache) Set(key string, value any, cost int64) {
	c.c.Set(key, value, cost)
}

// Delete removes a value from the cache.
func (c *Cache) Delete(key string) {
	c.c.Del(key)
}

// Close shuts down the cache and releases resources.
func (c *Cache) Close() {
	c.c.Close()
}
