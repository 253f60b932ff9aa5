// Package memory implements an in-process TTL cache for presigned download
// URLs, satisfying simpleupload.URLCache.
package memory

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	url       string
	expiresAt time.Time
}

// Cache is an in-memory TTL cache.
type Cache struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

// New creates a new in-memory cache.
func New() *Cache {
	return &Cache{
		entries: make(map[string]entry),
		now:     time.Now,
	}
}

func (c *Cache) Get(ctx context.Context, key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return "", false
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.entries, key)
		return "", false
	}

	return e.url, true
}

func (c *Cache) Set(ctx context.Context, key, url string, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = entry{url: url, expiresAt: c.now().Add(ttl)}
}

func (c *Cache) Delete(ctx context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, key)
}
