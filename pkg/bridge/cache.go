package bridge

import (
	"sync"
	"time"
)

// resolutionCache is the bridge's only shared mutable state: concurrent
// reads via RWMutex, serialized writes, wholesale clear only.
type resolutionCache struct {
	mu      sync.RWMutex
	enabled bool
	entries map[cacheKey]cacheEntry
	hits    uint64
	misses  uint64
}

func newResolutionCache(enabled bool) *resolutionCache {
	return &resolutionCache{
		enabled: enabled,
		entries: make(map[cacheKey]cacheEntry),
	}
}

// get returns the cached payload. Every lookup counts as a hit or a miss;
// a disabled cache always misses.
func (c *resolutionCache) get(key cacheKey) (Payload, bool) {
	c.mu.RLock()
	enabled := c.enabled
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !enabled || !ok {
		c.mu.Lock()
		c.misses++
		c.mu.Unlock()
		return nil, false
	}

	c.mu.Lock()
	c.hits++
	c.mu.Unlock()
	return entry.payload, true
}

// put stores a resolution. No-op while disabled.
func (c *resolutionCache) put(key cacheKey, payload Payload) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled {
		return
	}
	c.entries[key] = cacheEntry{payload: payload.Clone(), createdAt: time.Now()}
}

func (c *resolutionCache) setEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = enabled
}

func (c *resolutionCache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[cacheKey]cacheEntry)
}

func (c *resolutionCache) len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *resolutionCache) createdAt(key cacheKey) (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[key]
	return entry.createdAt, ok
}

func (c *resolutionCache) statistics() CacheStatistics {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return CacheStatistics{
		Enabled: c.enabled,
		Entries: len(c.entries),
		Hits:    c.hits,
		Misses:  c.misses,
	}
}
