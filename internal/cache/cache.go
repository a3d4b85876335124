// Package cache stores rendered artifacts in Redis. A disabled or unreachable
// Redis turns every lookup into a miss.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"

	"incident-review/internal/config"
)

// Cache is a prefixed byte cache.
type Cache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	online atomic.Bool
	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a cache from cfg and probes the server once.
func New(ctx context.Context, cfg config.RedisConfig) *Cache {
	c := &Cache{prefix: cfg.Prefix, ttl: cfg.TTL}
	if !cfg.Enabled {
		slog.Info("redis cache disabled by configuration")
		return c
	}

	c.client = redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.client.Ping(pingCtx).Err(); err != nil {
		slog.Warn("redis unavailable, running without cache", "addr", cfg.Addr, "error", err)
		return c
	}

	c.online.Store(true)
	slog.Info("redis cache connected", "addr", cfg.Addr)
	return c
}

// Enabled reports whether lookups reach Redis.
func (c *Cache) Enabled() bool {
	return c.client != nil && c.online.Load()
}

func (c *Cache) key(k string) string {
	if c.prefix == "" {
		return k
	}
	return c.prefix + ":" + k
}

// Get returns the cached value for k.
func (c *Cache) Get(ctx context.Context, k string) ([]byte, bool) {
	if !c.Enabled() {
		c.misses.Add(1)
		return nil, false
	}
	data, err := c.client.Get(ctx, c.key(k)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("redis get failed", "key", k, "error", err)
		}
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return data, true
}

// Set stores data under k with the configured TTL.
func (c *Cache) Set(ctx context.Context, k string, data []byte) error {
	if !c.Enabled() {
		return nil
	}
	if err := c.client.Set(ctx, c.key(k), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", k, err)
	}
	return nil
}

// Stats returns hit and miss counters.
func (c *Cache) Stats() map[string]interface{} {
	return map[string]interface{}{
		"enabled": c.Enabled(),
		"hits":    c.hits.Load(),
		"misses":  c.misses.Load(),
	}
}

// Close releases the Redis connection.
func (c *Cache) Close() error {
	if c.client == nil {
		return nil
	}
	if err := c.client.Close(); err != nil {
		return fmt.Errorf("close redis: %w", err)
	}
	return nil
}
