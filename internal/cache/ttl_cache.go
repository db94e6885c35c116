// Package cache provides thread-safe caching utilities with time-based expiration.
package cache

import (
	"sync"
	"time"
)

type entry[V any] struct {
	value   V
	expires time.Time
}

// TTLCache is a thread-safe cache with per-entry expiration.
// Each Set stamps its own entry; expired entries are dropped lazily on Get
// and eagerly on Purge. A maxEntries of zero means unbounded; otherwise Set
// evicts the entry closest to expiry when the cache is full.
type TTLCache[K comparable, V any] struct {
	mu         sync.RWMutex
	data       map[K]entry[V]
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

// New creates a new TTLCache with the given TTL duration and size bound.
func New[K comparable, V any](ttl time.Duration, maxEntries int) *TTLCache[K, V] {
	return &TTLCache[K, V]{
		data:       make(map[K]entry[V]),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

// Get retrieves a value from the cache.
// Returns zero value and ok=false if the key doesn't exist or has expired.
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	e, ok := c.data[key]
	c.mu.RUnlock()

	var zero V
	if !ok {
		return zero, false
	}
	if !c.now().Before(e.expires) {
		c.mu.Lock()
		// Re-check: another writer may have refreshed the entry.
		if cur, ok := c.data[key]; ok && !c.now().Before(cur.expires) {
			delete(c.data, key)
		}
		c.mu.Unlock()
		return zero, false
	}
	return e.value, true
}

// Set stores a value with a fresh TTL.
func (c *TTLCache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.data[key]; !exists && c.maxEntries > 0 && len(c.data) >= c.maxEntries {
		c.purgeLocked()
		if len(c.data) >= c.maxEntries {
			c.evictOldestLocked()
		}
	}
	c.data[key] = entry[V]{value: value, expires: c.now().Add(c.ttl)}
}

// Delete removes one key.
func (c *TTLCache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
}

// DeleteFunc removes every key for which match returns true and reports how
// many were removed.
func (c *TTLCache[K, V]) DeleteFunc(match func(K) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for k := range c.data {
		if match(k) {
			delete(c.data, k)
			n++
		}
	}
	return n
}

// Purge drops expired entries and returns how many were removed.
func (c *TTLCache[K, V]) Purge() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.purgeLocked()
}

// Invalidate clears all cached data.
func (c *TTLCache[K, V]) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = make(map[K]entry[V])
}

// Len returns the number of items currently in the cache.
// This does not check expiration - it returns the count even if expired.
func (c *TTLCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.data)
}

// purgeLocked MUST be called with the write lock held.
func (c *TTLCache[K, V]) purgeLocked() int {
	now := c.now()
	n := 0
	for k, e := range c.data {
		if !now.Before(e.expires) {
			delete(c.data, k)
			n++
		}
	}
	return n
}

// evictOldestLocked MUST be called with the write lock held.
func (c *TTLCache[K, V]) evictOldestLocked() {
	var (
		oldest K
		when   time.Time
		found  bool
	)
	for k, e := range c.data {
		if !found || e.expires.Before(when) {
			oldest, when, found = k, e.expires, true
		}
	}
	if found {
		delete(c.data, oldest)
	}
}
