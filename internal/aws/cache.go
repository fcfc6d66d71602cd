package aws

import (
	"sync"
	"time"
)

type cached[V any] struct {
	value   V
	expires time.Time
	stored  time.Time
}

// ttlCache holds provider lookups that do not change during a run, such as
// the zones of a region. When full, the oldest entry makes room.
type ttlCache[V any] struct {
	mu      sync.RWMutex
	ttl     time.Duration
	limit   int
	entries map[string]cached[V]
}

func newTTLCache[V any](ttl time.Duration, limit int) *ttlCache[V] {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if limit <= 0 {
		limit = 1000
	}
	return &ttlCache[V]{ttl: ttl, limit: limit, entries: make(map[string]cached[V])}
}

func (c *ttlCache[V]) get(key string) (V, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()

	var zero V
	if !ok {
		return zero, false
	}
	if time.Now().After(e.expires) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return zero, false
	}
	return e.value, true
}

func (c *ttlCache[V]) set(key string, value V) {
	now := time.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.limit {
		c.evictOldest()
	}
	c.entries[key] = cached[V]{value: value, expires: now.Add(c.ttl), stored: now}
}

// evictOldest must be called with mu held.
func (c *ttlCache[V]) evictOldest() {
	var (
		oldest string
		at     time.Time
	)
	for k, e := range c.entries {
		if oldest == "" || e.stored.Before(at) {
			oldest, at = k, e.stored
		}
	}
	delete(c.entries, oldest)
}
