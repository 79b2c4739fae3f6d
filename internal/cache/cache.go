// Package cache stores encoded recommendation lists.
//
// Backends report errors. BestEffort wraps any backend so that an outage
// reads as a miss and writes are dropped.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	goredis "github.com/redis/go-redis/v9"
)

// Cache is a byte-oriented key value store with per-entry TTL.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RedisConfig holds the Redis connection.
type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	DialTimeout time.Duration
}

// Redis is a Cache backed by a Redis server.
type Redis struct {
	rdb *goredis.Client
}

// NewRedis creates a Redis cache. It does not connect until first use.
func NewRedis(cfg RedisConfig) *Redis {
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 2 * time.Second
	}
	return &Redis{rdb: goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})}
}

// Ping checks the connection.
func (r *Redis) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

// Close closes the client.
func (r *Redis) Close() error {
	return r.rdb.Close()
}

// Get implements Cache.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := r.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

// Set implements Cache.
func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.rdb.Set(ctx, key, value, ttl).Err()
}

type memoryEntry struct {
	value   []byte
	expires time.Time // zero means no expiry
}

// Memory is an in-process LRU cache.
type Memory struct {
	entries *lru.Cache[string, memoryEntry]
	now     func() time.Time
}

// NewMemory creates a Memory cache holding up to size entries.
func NewMemory(size int) (*Memory, error) {
	if size <= 0 {
		size = 1000
	}
	entries, err := lru.New[string, memoryEntry](size)
	if err != nil {
		return nil, err
	}
	return &Memory{entries: entries, now: time.Now}, nil
}

// Get implements Cache.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	e, ok := m.entries.Get(key)
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		m.entries.Remove(key)
		return nil, false, nil
	}
	return append([]byte(nil), e.value...), true, nil
}

// Set implements Cache.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	m.entries.Add(key, e)
	return nil
}

// Len returns the number of stored entries, including expired ones not yet evicted.
func (m *Memory) Len() int {
	return m.entries.Len()
}

// Noop never stores anything.
type Noop struct{}

// Get implements Cache.
func (Noop) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

// Set implements Cache.
func (Noop) Set(context.Context, string, []byte, time.Duration) error { return nil }

// BestEffort hides backend failures from callers.
type BestEffort struct {
	backend Cache
	logger  *slog.Logger
}

// NewBestEffort wraps backend. A nil backend behaves like Noop.
func NewBestEffort(backend Cache, logger *slog.Logger) *BestEffort {
	if backend == nil {
		backend = Noop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &BestEffort{backend: backend, logger: logger.With("component", "cache")}
}

// Get returns the cached value, treating errors as a miss.
func (b *BestEffort) Get(ctx context.Context, key string) ([]byte, bool) {
	v, ok, err := b.backend.Get(ctx, key)
	if err != nil {
		b.logger.Warn("cache get failed, treating as miss", "key", key, "error", err)
		return nil, false
	}
	return v, ok
}

// Set stores a value, logging failures.
func (b *BestEffort) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := b.backend.Set(ctx, key, value, ttl); err != nil {
		b.logger.Warn("cache set failed", "key", key, "error", err)
	}
}
