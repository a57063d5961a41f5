// Package dedup tracks already-processed webhook message IDs so that
// provider retries do not re-run the pipeline.
//
// Deduplication is best-effort, not exactly-once: the memory driver clears
// itself wholesale once it grows past a threshold, and absence of an ID does
// not guarantee the message is new.
package dedup

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultMaxEntries is the memory driver's size threshold. Exceeding it
// clears the whole cache.
const DefaultMaxEntries = 1000

// Cache records processed message IDs.
type Cache interface {
	// Register marks id as processed and reports whether it was new.
	// A false return means the message was already handled and must not be
	// reprocessed.
	Register(ctx context.Context, id string) (bool, error)
}

// DriverType selects a cache backend.
type DriverType string

const (
	DriverMemory DriverType = "memory"
	DriverRedis  DriverType = "redis"
)

// ErrInvalidConfig is returned when a driver is missing required options.
var ErrInvalidConfig = errors.New("dedup: invalid configuration")

// ErrInvalidDriver is returned for an unknown driver type.
var ErrInvalidDriver = errors.New("dedup: unknown driver type")

type cacheConfig struct {
	maxEntries  int
	redisClient *redis.Client
	redisTTL    time.Duration
}

// Option configures a cache created by New.
type Option func(*cacheConfig)

// WithMaxEntries sets the memory driver's clear threshold.
func WithMaxEntries(n int) Option {
	return func(c *cacheConfig) {
		c.maxEntries = n
	}
}

// WithRedisClient supplies the client for the redis driver.
func WithRedisClient(client *redis.Client) Option {
	return func(c *cacheConfig) {
		c.redisClient = client
	}
}

// WithRedisTTL sets the per-entry TTL for the redis driver.
func WithRedisTTL(ttl time.Duration) Option {
	return func(c *cacheConfig) {
		c.redisTTL = ttl
	}
}

// New creates a Cache for the given driver type.
func New(driver DriverType, opts ...Option) (Cache, error) {
	cfg := &cacheConfig{maxEntries: DefaultMaxEntries}
	for _, opt := range opts {
		opt(cfg)
	}

	switch driver {
	case DriverMemory:
		return &memoryCache{
			seen:       make(map[string]struct{}),
			maxEntries: cfg.maxEntries,
		}, nil

	case DriverRedis:
		if cfg.redisClient == nil {
			return nil, ErrInvalidConfig
		}
		ttl := cfg.redisTTL
		if ttl <= 0 {
			ttl = 24 * time.Hour
		}
		return &redisCache{client: cfg.redisClient, ttl: ttl}, nil

	default:
		return nil, ErrInvalidDriver
	}
}

// memoryCache is a mutex-guarded set cleared wholesale at the threshold.
type memoryCache struct {
	mu         sync.Mutex
	seen       map[string]struct{}
	maxEntries int
}

func (c *memoryCache) Register(_ context.Context, id string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.seen[id]; ok {
		return false, nil
	}

	if len(c.seen) >= c.maxEntries {
		c.seen = make(map[string]struct{})
	}

	c.seen[id] = struct{}{}
	return true, nil
}

// redisCache uses SETNX with a TTL so entries expire on their own and the
// cache is shared across instances.
type redisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func (c *redisCache) Register(ctx context.Context, id string) (bool, error) {
	ok, err := c.client.SetNX(ctx, "dedup:"+id, 1, c.ttl).Result()
	if err != nil {
		return false, err
	}
	return ok, nil
}
