package http

import (
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"fareboard/internal/cache"
	"fareboard/internal/core"
)

// reportCache memoizes report results per owner and query. Appends bump
// the owner's generation so a computation that raced a write is never
// stored.
type reportCache struct {
	lru   *cache.LRUCache[any]
	group singleflight.Group

	mu          sync.Mutex
	generations map[core.OwnerID]uint64

	onLookup func(hit bool)
}

func newReportCache(size int, ttl time.Duration, onLookup func(bool)) *reportCache {
	return &reportCache{
		lru:         cache.NewLRUCache[any](size, ttl),
		generations: make(map[core.OwnerID]uint64),
		onLookup:    onLookup,
	}
}

func (c *reportCache) generation(owner core.OwnerID) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generations[owner]
}

// Invalidate drops every cached report for owner.
func (c *reportCache) Invalidate(owner core.OwnerID) {
	c.mu.Lock()
	c.generations[owner]++
	c.mu.Unlock()
	c.lru.DeletePrefix(string(owner) + "|")
}

// Get returns the cached value for key, computing it at most once across
// concurrent callers.
func (c *reportCache) Get(owner core.OwnerID, key string, compute func() (any, error)) (any, error) {
	full := string(owner) + "|" + key
	if v, ok := c.lru.Get(full); ok {
		c.lookup(true)
		return v, nil
	}
	c.lookup(false)

	gen := c.generation(owner)
	v, err, _ := c.group.Do(full+"#"+strconv.FormatUint(gen, 10), func() (any, error) {
		v, err := compute()
		if err != nil {
			return nil, err
		}
		if c.generation(owner) == gen {
			c.lru.Set(full, v)
		}
		return v, nil
	})
	return v, err
}

func (c *reportCache) lookup(hit bool) {
	if c.onLookup != nil {
		c.onLookup(hit)
	}
}
