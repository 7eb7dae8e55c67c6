package reconcile

import (
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// Cache remembers working id -> resolved internal id for a bounded time.
type Cache interface {
	Get(id string) (string, bool)
	Set(id, resolved string)
}

type noopCache struct{}

func (noopCache) Get(string) (string, bool) { return "", false }
func (noopCache) Set(string, string)        {}

// TTLCache is an in-process Cache with expiry and a size bound.
type TTLCache struct {
	cache *ttlcache.Cache[string, string]
}

// NewTTLCache starts a cache whose entries live for ttl.
func NewTTLCache(ttl time.Duration, capacity uint64) *TTLCache {
	cache := ttlcache.New(
		ttlcache.WithTTL[string, string](ttl),
		ttlcache.WithCapacity[string, string](capacity),
		ttlcache.WithDisableTouchOnHit[string, string](),
	)
	go cache.Start()
	return &TTLCache{cache: cache}
}

// Get implements Cache.
func (c *TTLCache) Get(id string) (string, bool) {
	item := c.cache.Get(id)
	if item == nil {
		return "", false
	}
	return item.Value(), true
}

// Set implements Cache.
func (c *TTLCache) Set(id, resolved string) {
	c.cache.Set(id, resolved, ttlcache.DefaultTTL)
}

// Stop halts the expiry loop.
func (c *TTLCache) Stop() {
	c.cache.Stop()
}
