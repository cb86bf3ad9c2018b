package repository

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

const (
	referenceCacheTTL     = 10 * time.Minute
	referenceCacheCleanup = 15 * time.Minute
)

// referenceCache is a read cache keyed by entity name. A read that started before a
// committed write cannot fill the cache: every write bumps the key's generation and
// fill only stores values read under the current one.
type referenceCache struct {
	mu          sync.Mutex
	entries     *cache.Cache
	generations map[string]uint64
}

func newReferenceCache() *referenceCache {
	return &referenceCache{
		entries:     cache.New(referenceCacheTTL, referenceCacheCleanup),
		generations: map[string]uint64{},
	}
}

func (c *referenceCache) get(key string) (any, bool) {
	return c.entries.Get(key)
}

// begin returns the generation a subsequent database read runs under.
func (c *referenceCache) begin(key string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[key]
}

func (c *referenceCache) fill(key string, generation uint64, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.generations[key] != generation {
		return
	}
	c.entries.Set(key, value, cache.DefaultExpiration)
}

// invalidate must run after the write has committed.
func (c *referenceCache) invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generations[key]++
	c.entries.Delete(key)
}
