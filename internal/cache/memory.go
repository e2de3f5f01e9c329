package cache

import (
	"sync"
	"time"
)

type byteEntry struct {
	data        []byte
	contentType string
	expiresAt   time.Time
}

// ByteCache is a process-local TTL cache for raw response bodies. Reads are
// concurrent; writes serialize per the map lock. Expired entries are dropped
// lazily on Get and in bulk by Sweep.
type ByteCache struct {
	mu      sync.RWMutex
	entries map[string]byteEntry
	ttl     time.Duration
}

// NewByteCache creates a ByteCache whose entries live for ttl.
func NewByteCache(ttl time.Duration) *ByteCache {
	return &ByteCache{entries: make(map[string]byteEntry), ttl: ttl}
}

// Get returns the cached bytes and content type for key, if present and
// not expired.
func (c *ByteCache) Get(key string) ([]byte, string, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, "", false
	}
	if time.Now().After(e.expiresAt) {
		c.mu.Lock()
		// Re-check: a concurrent Set may have refreshed the entry.
		if cur, ok := c.entries[key]; ok && time.Now().After(cur.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, "", false
	}
	return e.data, e.contentType, true
}

// Set stores data under key for the cache's TTL.
func (c *ByteCache) Set(key string, data []byte, contentType string) {
	c.mu.Lock()
	c.entries[key] = byteEntry{data: data, contentType: contentType, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()
}

// Len returns the number of entries, expired or not.
func (c *ByteCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Sweep removes all expired entries and returns how many were evicted.
// Expired keys are collected under the read lock so in-flight reads are
// not blocked while the map is scanned.
func (c *ByteCache) Sweep() int {
	now := time.Now()
	var expired []string
	c.mu.RLock()
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			expired = append(expired, k)
		}
	}
	c.mu.RUnlock()
	if len(expired) == 0 {
		return 0
	}
	evicted := 0
	c.mu.Lock()
	for _, k := range expired {
		if e, ok := c.entries[k]; ok && now.After(e.expiresAt) {
			delete(c.entries, k)
			evicted++
		}
	}
	c.mu.Unlock()
	return evicted
}

// SweepLoop runs Sweep every interval until stop is closed.
func (c *ByteCache) SweepLoop(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.Sweep()
		case <-stop:
			return
		}
	}
}
