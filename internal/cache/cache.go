package cache

import (
	"sync"
	"time"
)

// TTL constants for different data types
const (
	// Static data - never changes unless the drive is swapped (identity)
	TTLStatic = 24 * time.Hour

	// Slow-moving - SMART thresholds, firmware revisions
	TTLSlow = 1 * time.Hour

	// Fast - per tick values
	TTLFast = 5 * time.Second
)

// Entry holds a cached value with expiration
type Entry[V any] struct {
	Value     V
	ExpiresAt time.Time
	FetchedAt time.Time
}

// expired reports whether the entry has expired at now
func (e *Entry[V]) expired(now time.Time) bool {
	return now.After(e.ExpiresAt)
}

// Cache provides thread-safe TTL-based caching
type Cache[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]*Entry[V]
	now     func() time.Time
}

// New creates a new cache instance
func New[K comparable, V any]() *Cache[K, V] {
	return &Cache[K, V]{
		entries: make(map[K]*Entry[V]),
		now:     time.Now,
	}
}

// Get retrieves a value, reporting false if expired or not found
func (c *Cache[K, V]) Get(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok || entry.expired(c.now()) {
		var zero V
		return zero, false
	}
	return entry.Value, true
}

// GetEntry retrieves the full cache entry (for checking age, etc.)
func (c *Cache[K, V]) GetEntry(key K) (Entry[V], bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok {
		return Entry[V]{}, false
	}
	return *entry, true
}

// Set stores a value with the given TTL
func (c *Cache[K, V]) Set(key K, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.entries[key] = &Entry[V]{
		Value:     value,
		ExpiresAt: now.Add(ttl),
		FetchedAt: now,
	}
}

// GetOrFetch returns the cached value, calling fetch and caching its
// result on a miss. Failed fetches are not cached.
func (c *Cache[K, V]) GetOrFetch(key K, ttl time.Duration, fetch func() (V, error)) (V, error) {
	if v, ok := c.Get(key); ok {
		return v, nil
	}
	v, err := fetch()
	if err != nil {
		return v, err
	}
	c.Set(key, v, ttl)
	return v, nil
}

// Delete removes an entry from cache
func (c *Cache[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Clear removes all entries from cache
func (c *Cache[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[K]*Entry[V])
}

// Len returns the number of entries, expired ones included
func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Cleanup removes expired entries
func (c *Cache[K, V]) Cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, v := range c.entries {
		if v.expired(now) {
			delete(c.entries, k)
		}
	}
}
