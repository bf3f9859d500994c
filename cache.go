package tallybase

import (
	"sync"
	"time"
)

// Clock supplies the current time.  Caches take one explicitly so
// tests can control expiry instead of sleeping.
type Clock func() time.Time

// Cache is a TTL cache.  It is an owned, injectable object -- callers
// that want shared caching share a Cache value, nothing is
// process-global.  Safe for concurrent use.
type Cache struct {
	ttl time.Duration
	now Clock

	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	val     interface{}
	expires time.Time
}

func NewCache(ttl time.Duration, now Clock) *Cache {
	if now == nil {
		now = time.Now
	}
	return &Cache{
		ttl:     ttl,
		now:     now,
		entries: make(map[string]cacheEntry),
	}
}

// Get returns the cached value for key, or ok=false if the key is
// absent or expired.  Expired entries are dropped on access.
func (c *Cache) Get(key string) (val interface{}, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().After(entry.expires) {
		delete(c.entries, key)
		return nil, false
	}
	return entry.val, true
}

// Put stores val under key for the cache's TTL.
func (c *Cache) Put(key string, val interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{val: val, expires: c.now().Add(c.ttl)}
}

// Purge drops every entry.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

// Len returns the number of entries, expired ones included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
