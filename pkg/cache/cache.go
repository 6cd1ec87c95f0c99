package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrCacheUnavailable wraps a Redis error encountered during a Get/Set/
// Delete call, for callers that want to distinguish a miss from a backend
// failure (§7 CacheError: "Log + degrade ... recompute for cache").
var ErrCacheUnavailable = errors.New("cache backend unavailable")

// ErrMiss indicates the key was not present (a true cache miss, not a
// backend failure).
var ErrMiss = errors.New("cache miss")

// Cache is a namespaced, JSON-serializing TTL cache over Redis.
type Cache struct {
	rdb *redis.Client
	log *slog.Logger
}

// New wraps an existing Redis client.
func New(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb, log: slog.With("component", "cache")}
}

// Set serializes value as JSON and stores it under ns:id with the given TTL.
func (c *Cache) Set(ctx context.Context, ns Namespace, id string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("serializing cache value for %s:%s: %w", ns, id, err)
	}
	if err := c.rdb.Set(ctx, key(ns, id), data, ttl).Err(); err != nil {
		c.log.Warn("cache set failed", "namespace", ns, "id", id, "error", err)
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}

// Get loads the value stored under ns:id and unmarshals it into dest.
// Returns ErrMiss if absent, or a wrapped ErrCacheUnavailable on backend
// failure — callers should recompute rather than treat it as authoritative
// absence.
func (c *Cache) Get(ctx context.Context, ns Namespace, id string, dest any) error {
	data, err := c.rdb.Get(ctx, key(ns, id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		c.log.Warn("cache get failed", "namespace", ns, "id", id, "error", err)
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("deserializing cache value for %s:%s: %w", ns, id, err)
	}
	return nil
}

// Delete removes a single key. Best-effort: a backend error is logged and
// swallowed, matching §4.9's "best-effort invalidation".
func (c *Cache) Delete(ctx context.Context, ns Namespace, id string) {
	if err := c.rdb.Del(ctx, key(ns, id)).Err(); err != nil {
		c.log.Warn("cache delete failed", "namespace", ns, "id", id, "error", err)
	}
}

// DeletePattern removes all keys matching ns:pattern via SCAN, avoiding the
// O(N) blocking behavior of KEYS on a production Redis instance.
func (c *Cache) DeletePattern(ctx context.Context, ns Namespace, pattern string) {
	iter := c.rdb.Scan(ctx, 0, key(ns, pattern), 100).Iterator()
	for iter.Next(ctx) {
		if err := c.rdb.Del(ctx, iter.Val()).Err(); err != nil {
			c.log.Warn("cache pattern delete failed", "key", iter.Val(), "error", err)
		}
	}
	if err := iter.Err(); err != nil {
		c.log.Warn("cache pattern scan failed", "namespace", ns, "pattern", pattern, "error", err)
	}
}

// WarmBulk writes every entry in values under ns in a single pipelined
// round trip (§4.9 "Warming accepts a bulk map and writes entries in one
// pipelined operation").
func (c *Cache) WarmBulk(ctx context.Context, ns Namespace, values map[string]any, ttl time.Duration) error {
	pipe := c.rdb.Pipeline()
	for id, value := range values {
		data, err := json.Marshal(value)
		if err != nil {
			return fmt.Errorf("serializing cache value for %s:%s: %w", ns, id, err)
		}
		pipe.Set(ctx, key(ns, id), data, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.log.Warn("cache warm failed", "namespace", ns, "count", len(values), "error", err)
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}

// Ping checks backend reachability for readiness probes.
func (c *Cache) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrCacheUnavailable, err)
	}
	return nil
}
