// Package rediscache is the shared catalog cache used when several agents
// point at the same catalog. Values are stored as JSON under
// "<prefix>:<kind>:<field>:<value>".
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"mediaagent/internal/catalog"
)

// Cache implements catalog.Cache on top of Redis.
type Cache[T any] struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// New builds a cache for one entity kind. A zero ttl keeps values until they
// are overwritten or deleted.
func New[T any](client redis.Cmdable, prefix, kind string, ttl time.Duration) *Cache[T] {
	full := kind
	if prefix != "" {
		full = prefix + ":" + kind
	}
	return &Cache[T]{client: client, prefix: full, ttl: ttl}
}

func (c *Cache[T]) key(key string) string {
	return c.prefix + ":" + key
}

// Get decodes the JSON value under key. redis.Nil is a miss.
func (c *Cache[T]) Get(ctx context.Context, key string) (*T, bool, error) {
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", c.key(key), err)
	}
	var value T
	if err := json.Unmarshal(data, &value); err != nil {
		return nil, false, fmt.Errorf("decode %s: %w", c.key(key), err)
	}
	return &value, true, nil
}

// Set stores value as JSON under key.
func (c *Cache[T]) Set(ctx context.Context, key string, value *T) error {
	if value == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s: %w", c.key(key), err)
	}
	if err := c.client.Set(ctx, c.key(key), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", c.key(key), err)
	}
	return nil
}

// Delete removes key.
func (c *Cache[T]) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", c.key(key), err)
	}
	return nil
}

// Caches builds a full catalog cache set on one client.
func Caches(client redis.Cmdable, prefix string, ttl time.Duration) catalog.Caches {
	return catalog.Caches{
		Videos:      New[catalog.Video](client, prefix, "video", ttl),
		Images:      New[catalog.Image](client, prefix, "image", ttl),
		Shows:       New[catalog.Show](client, prefix, "show", ttl),
		Seasons:     New[catalog.Season](client, prefix, "season", ttl),
		Episodes:    New[catalog.Episode](client, prefix, "episode", ttl),
		Conversions: New[catalog.Conversion](client, prefix, "conversion", ttl),
	}
}

// Options configures the Redis connection.
type Options struct {
	Addr     string
	Password string
	DB       int
}

// Dial connects to Redis and verifies the server answers PING.
func Dial(ctx context.Context, opts Options) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", opts.Addr, err)
	}
	return client, nil
}
