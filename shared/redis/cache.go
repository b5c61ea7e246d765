package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/eaglebank/registry/shared/logger"
	goredis "github.com/redis/go-redis/v9"
)

// ViewCache is a generic JSON-backed Redis cache for read model projections.
// Bind it to a specific view type T. A ViewCache with a nil client is
// disabled: every Get misses and writes are dropped.
type ViewCache[T any] struct {
	client *goredis.Client
	ttl    time.Duration
	log    *logger.Logger
}

// NewViewCache creates a ViewCache backed by client. Pass ttl 0 for keys
// that should not expire.
func NewViewCache[T any](client *goredis.Client, ttl time.Duration, log *logger.Logger) *ViewCache[T] {
	if log == nil {
		log = logger.Nop()
	}
	return &ViewCache[T]{client: client, ttl: ttl, log: log}
}

func (c *ViewCache[T]) Enabled() bool {
	return c != nil && c.client != nil
}

// Get retrieves and unmarshals a value from Redis.
// Returns (nil, false) on any miss or deserialisation error.
func (c *ViewCache[T]) Get(ctx context.Context, key string) (*T, bool) {
	if !c.Enabled() {
		return nil, false
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			c.log.Warn("view cache read failed", "key", key, "error", err)
		}
		return nil, false
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		c.log.Warn("view cache entry corrupt", "key", key, "error", err)
		return nil, false
	}
	return &v, true
}

// Set marshals value and stores it under key. A failed cache write is
// logged, never returned.
func (c *ViewCache[T]) Set(ctx context.Context, key string, value *T) {
	if !c.Enabled() {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		c.log.Error("view cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.log.Warn("view cache write failed", "key", key, "error", err)
	}
}

// Delete removes keys from Redis.
func (c *ViewCache[T]) Delete(ctx context.Context, keys ...string) {
	if !c.Enabled() || len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.log.Warn("view cache delete failed", "keys", keys, "error", err)
	}
}
