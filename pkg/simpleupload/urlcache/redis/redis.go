// Package redis implements simpleupload.URLCache on a Redis backend, so
// presigned download URLs survive process restarts and are shared between
// replicas. Redis failures degrade to cache misses, never to request
// failures.
package redis

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is a Redis-backed URL cache.
type Cache struct {
	client *redis.Client
}

// Config options for the Redis cache.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// New creates a Redis cache from connection options.
func New(config Config) *Cache {
	return &Cache{
		client: redis.NewClient(&redis.Options{
			Addr:     config.Addr,
			Password: config.Password,
			DB:       config.DB,
		}),
	}
}

// NewFromClient wraps an existing Redis client.
func NewFromClient(client *redis.Client) *Cache {
	return &Cache{client: client}
}

func (c *Cache) Get(ctx context.Context, key string) (string, bool) {
	url, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("url cache get failed", "key", key, "error", err)
		}
		return "", false
	}
	return url, true
}

func (c *Cache) Set(ctx context.Context, key, url string, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	if err := c.client.Set(ctx, key, url, ttl).Err(); err != nil {
		slog.Warn("url cache set failed", "key", key, "error", err)
	}
}

func (c *Cache) Delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		slog.Warn("url cache delete failed", "key", key, "error", err)
	}
}

// Close releases the underlying Redis connection.
func (c *Cache) Close() error {
	return c.client.Close()
}
