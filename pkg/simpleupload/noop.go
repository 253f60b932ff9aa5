package simpleupload

import (
	"context"
	"time"
)

// noopURLCache never hits and drops writes. Used when no cache is wired.
type noopURLCache struct{}

// NoopURLCache returns a URLCache that always misses.
func NoopURLCache() URLCache { return noopURLCache{} }

func (noopURLCache) Get(ctx context.Context, key string) (string, bool) { return "", false }

func (noopURLCache) Set(ctx context.Context, key, url string, _ time.Duration) {}

func (noopURLCache) Delete(ctx context.Context, key string) {}

// noopCleanupQueue discards tasks. Used when no worker pool is wired, e.g.
// in tests that only exercise the request path.
type noopCleanupQueue struct{}

// NoopCleanupQueue returns a CleanupQueue that discards tasks.
func NoopCleanupQueue() CleanupQueue { return noopCleanupQueue{} }

func (noopCleanupQueue) Enqueue(CleanupTask) {}
