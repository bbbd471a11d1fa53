// Package cache is the single shared key/value store accessible from every
// core component: the forecast model/result cache and the metric query
// cache are both built on this.
package cache

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// Stats are monotonic per-process hit/miss/set/delete counters, tracked with
// real atomic counters rather than stubbed at zero.
type Stats struct {
	Hits    int64
	Misses  int64
	Sets    int64
	Deletes int64
}

// HitRate returns Hits / (Hits + Misses), or 0 when there have been no
// lookups yet.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Cache is the distributed cache contract shared by every core component.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeletePattern(ctx context.Context, prefixGlob string) (int, error)
	GetMany(ctx context.Context, keys []string) (map[string][]byte, error)
	SetMany(ctx context.Context, values map[string][]byte, ttl time.Duration) error
	Stats() Stats
	// Aside is the explicit cache-aside helper: look up key, and on miss call
	// compute, store the result with ttl, and return it. The call-site stays
	// visible in the code path instead of being hidden behind a decorator.
	Aside(ctx context.Context, key string, ttl time.Duration, compute func() ([]byte, error)) ([]byte, error)
}

// RedisCache implements Cache over a Redis client, namespacing every key by
// a process-wide prefix.
type RedisCache struct {
	client *redis.Client
	prefix string

	hits    int64
	misses  int64
	sets    int64
	deletes int64
}

// Config configures the Redis connection backing a RedisCache.
type Config struct {
	Addr        string
	Password    string
	DB          int
	KeyPrefix   string
	PoolSize    int
	DialTimeout time.Duration
}

// New constructs a RedisCache from cfg.
func New(cfg Config) *RedisCache {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		PoolSize:    cfg.PoolSize,
		DialTimeout: cfg.DialTimeout,
	})
	return &RedisCache{client: client, prefix: cfg.KeyPrefix}
}

func (c *RedisCache) fullKey(key string) string {
	if c.prefix == "" {
		return key
	}
	return c.prefix + ":" + key
}

// Get returns the value for key, and false if it was a miss.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, c.fullKey(key)).Bytes()
	if err == redis.Nil {
		atomic.AddInt64(&c.misses, 1)
		return nil, false, nil
	}
	if err != nil {
		atomic.AddInt64(&c.misses, 1)
		return nil, false, fmt.Errorf("cache get failed: %w", err)
	}
	atomic.AddInt64(&c.hits, 1)
	return val, true, nil
}

// Set stores value under key for ttl (0 means no expiration).
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.fullKey(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("cache set failed: %w", err)
	}
	atomic.AddInt64(&c.sets, 1)
	return nil
}

// Delete removes key.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.fullKey(key)).Err(); err != nil {
		return fmt.Errorf("cache delete failed: %w", err)
	}
	atomic.AddInt64(&c.deletes, 1)
	return nil
}

// DeletePattern deletes every key matching prefixGlob (namespaced), scanning
// rather than using the blocking KEYS command, and returns the count
// removed.
func (c *RedisCache) DeletePattern(ctx context.Context, prefixGlob string) (int, error) {
	pattern := c.fullKey(prefixGlob)
	var cursor uint64
	var deleted int

	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return deleted, fmt.Errorf("cache scan failed: %w", err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return deleted, fmt.Errorf("cache pattern delete failed: %w", err)
			}
			deleted += len(keys)
			atomic.AddInt64(&c.deletes, int64(len(keys)))
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return deleted, nil
}

// GetMany returns the values present among keys; missing keys are absent
// from the result map.
func (c *RedisCache) GetMany(ctx context.Context, keys []string) (map[string][]byte, error) {
	if len(keys) == 0 {
		return map[string][]byte{}, nil
	}

	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.fullKey(k)
	}

	vals, err := c.client.MGet(ctx, full...).Result()
	if err != nil {
		return nil, fmt.Errorf("cache mget failed: %w", err)
	}

	out := make(map[string][]byte, len(keys))
	for i, v := range vals {
		if v == nil {
			atomic.AddInt64(&c.misses, 1)
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		atomic.AddInt64(&c.hits, 1)
		out[keys[i]] = []byte(s)
	}
	return out, nil
}

// SetMany stores every value in values with a shared ttl.
func (c *RedisCache) SetMany(ctx context.Context, values map[string][]byte, ttl time.Duration) error {
	pipe := c.client.Pipeline()
	for k, v := range values {
		pipe.Set(ctx, c.fullKey(k), v, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("cache mset failed: %w", err)
	}
	atomic.AddInt64(&c.sets, int64(len(values)))
	return nil
}

// Stats returns the current counters and derived hit rate.
func (c *RedisCache) Stats() Stats {
	return Stats{
		Hits:    atomic.LoadInt64(&c.hits),
		Misses:  atomic.LoadInt64(&c.misses),
		Sets:    atomic.LoadInt64(&c.sets),
		Deletes: atomic.LoadInt64(&c.deletes),
	}
}

// Aside is the explicit cache-aside helper. The forecast engine does not
// route its model and result lookups through it; it calls Get and Set
// directly.
func (c *RedisCache) Aside(ctx context.Context, key string, ttl time.Duration, compute func() ([]byte, error)) ([]byte, error) {
	if val, ok, err := c.Get(ctx, key); err != nil {
		return nil, err
	} else if ok {
		return val, nil
	}

	val, err := compute()
	if err != nil {
		return nil, err
	}
	if err := c.Set(ctx, key, val, ttl); err != nil {
		return val, err
	}
	return val, nil
}

// Health pings the Redis connection.
func (c *RedisCache) Health(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the underlying Redis client.
func (c *RedisCache) Close() error { return c.client.Close() }

// ScopeProductKeys returns the model and forecast-result glob keys
// invalidated for a product, per the forecast cache's invalidation protocol.
func ScopeProductKeys(productID string) (modelKey, forecastGlob string) {
	scope := "product:" + productID
	return "model:" + scope, "forecast:" + scope + ":*"
}
