// Package cache provides the Redis read-through cache for stored metric
// records.
package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/helixir/scientometrics-service/internal/config"
	"github.com/helixir/scientometrics-service/internal/domain"
)

// KeyPrefix namespaces every key written by the cache.
const KeyPrefix = "scim:metrics:"

// Store is the subset of redis.Cmdable the cache uses.
type Store interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// MetricsCache caches the metric records of a user for a fixed TTL.
type MetricsCache struct {
	store Store
	ttl   time.Duration
}

// NewMetricsCache creates a cache on top of store.
func NewMetricsCache(store Store, ttl time.Duration) *MetricsCache {
	return &MetricsCache{store: store, ttl: ttl}
}

// Connect opens a Redis client from cfg and checks it with PING.
func Connect(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.MinIdleConns > 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	opts.ConnMaxIdleTime = 5 * time.Minute
	opts.ConnMaxLifetime = 30 * time.Minute

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return client, nil
}

func key(userID string) string {
	return KeyPrefix + userID
}

// Get returns the cached records of userID. ok is false on a miss.
func (c *MetricsCache) Get(ctx context.Context, userID string) (records []*domain.MetricRecord, ok bool, err error) {
	data, err := c.store.Get(ctx, key(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("reading cached metrics: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&records); err != nil {
		return nil, false, fmt.Errorf("decoding cached metrics: %w", err)
	}
	return records, true, nil
}

// Set stores the records of userID.
func (c *MetricsCache) Set(ctx context.Context, userID string, records []*domain.MetricRecord) error {
	if records == nil {
		records = []*domain.MetricRecord{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encoding metrics for cache: %w", err)
	}
	if err := c.store.Set(ctx, key(userID), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("caching metrics: %w", err)
	}
	return nil
}

// Invalidate drops the cached records of userID.
func (c *MetricsCache) Invalidate(ctx context.Context, userID string) error {
	if err := c.store.Del(ctx, key(userID)).Err(); err != nil {
		return fmt.Errorf("invalidating cached metrics: %w", err)
	}
	return nil
}
