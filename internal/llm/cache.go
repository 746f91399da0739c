package llm

import (
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// cacheEntry represents a cached collaborator response.
type cacheEntry[V any] struct {
	expiry time.Time
	value  V
}

// responseCache is a thread-safe TTL cache keyed by the hash of the input text.
// A nil cache is valid and never hits.
type responseCache[V any] struct {
	entries map[string]cacheEntry[V]
	stopCh  chan struct{}
	ttl     time.Duration
	mu      sync.RWMutex
}

// newResponseCache creates a cache with the given TTL. A non-positive TTL
// disables caching and returns nil.
func newResponseCache[V any](ttl time.Duration) *responseCache[V] {
	if ttl <= 0 {
		return nil
	}

	cache := &responseCache[V]{
		entries: make(map[string]cacheEntry[V]),
		ttl:     ttl,
		stopCh:  make(chan struct{}),
	}

	// Start cleanup goroutine
	go cache.cleanup()

	return cache
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// get retrieves a value if it exists and hasn't expired.
func (c *responseCache[V]) get(text string) (V, bool) {
	var zero V
	if c == nil {
		return zero, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, exists := c.entries[cacheKey(text)]
	if !exists || time.Now().After(entry.expiry) {
		return zero, false
	}
	return entry.value, true
}

// set stores a value.
func (c *responseCache[V]) set(text string, value V) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[cacheKey(text)] = cacheEntry[V]{
		value:  value,
		expiry: time.Now().Add(c.ttl),
	}
}

// cleanup periodically removes expired entries.
func (c *responseCache[V]) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.mu.Lock()
			now := time.Now()
			for key, entry := range c.entries {
				if now.After(entry.expiry) {
					delete(c.entries, key)
				}
			}
			c.mu.Unlock()
		}
	}
}

// size returns the number of entries in the cache.
func (c *responseCache[V]) size() int {
	if c == nil {
		return 0
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Close stops the cleanup goroutine.
func (c *responseCache[V]) Close() {
	if c == nil {
		return
	}
	close(c.stopCh)
}
