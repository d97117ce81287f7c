package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

// Cache is a thin JSON cache over redis for leaderboard pages. All failures
// are soft: callers fall back to the store when the cache is unavailable.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// DefaultTTL bounds how stale a cached page may get. Pages are tiny and the
// board shifts with every memorization, so the window is short.
const DefaultTTL = 30 * time.Second

// NewCache wraps a redis client. A zero ttl falls back to DefaultTTL.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{client: client, ttl: ttl}
}

// Get unmarshals the cached value for key into v. The boolean reports a hit.
func (c *Cache) Get(ctx context.Context, key string, v interface{}) (bool, error) {
	if c == nil || c.client == nil {
		return false, nil
	}
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, err
	}
	return true, nil
}

// Set stores v under key for the configured TTL.
func (c *Cache) Set(ctx context.Context, key string, v interface{}) error {
	if c == nil || c.client == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, raw, c.ttl).Err()
}
