package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig controls redis client behavior. Zero values pick conservative
// defaults.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	PoolSize        int
	MinIdleConns    int
	PoolTimeout     time.Duration
	ConnMaxIdleTime time.Duration

	PingTimeout time.Duration
}

func (c RedisConfig) withDefaults() RedisConfig {
	out := c
	if out.DialTimeout <= 0 {
		out.DialTimeout = 3 * time.Second
	}
	if out.ReadTimeout <= 0 {
		out.ReadTimeout = 2 * time.Second
	}
	if out.WriteTimeout <= 0 {
		out.WriteTimeout = 2 * time.Second
	}
	if out.PoolSize <= 0 {
		out.PoolSize = 10
	}
	if out.MinIdleConns < 0 {
		out.MinIdleConns = 0
	}
	if out.PoolTimeout <= 0 {
		out.PoolTimeout = 4 * time.Second
	}
	if out.ConnMaxIdleTime <= 0 {
		out.ConnMaxIdleTime = 5 * time.Minute
	}
	if out.PingTimeout <= 0 {
		out.PingTimeout = 2 * time.Second
	}
	return out
}

// OpenRedis builds a client and checks connectivity with PING.
func OpenRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	cfg = cfg.withDefaults()
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:            cfg.Addr,
		Password:        cfg.Password,
		DB:              cfg.DB,
		DialTimeout:     cfg.DialTimeout,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		PoolSize:        cfg.PoolSize,
		MinIdleConns:    cfg.MinIdleConns,
		PoolTimeout:     cfg.PoolTimeout,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

// MarkOnce sets key if it does not exist yet and reports whether this caller
// set it. The key expires after ttl so markers do not accumulate.
func MarkOnce(ctx context.Context, rdb *redis.Client, key string, ttl time.Duration) (bool, error) {
	if rdb == nil {
		return false, errors.New("redis client is nil")
	}
	if key == "" {
		return false, errors.New("key is required")
	}
	if ttl <= 0 {
		return false, errors.New("ttl must be > 0")
	}
	return rdb.SetNX(ctx, key, 1, ttl).Result()
}

// OnceMarker adapts MarkOnce to id-based de-duplication under a key prefix.
type OnceMarker struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

func NewOnceMarker(rdb *redis.Client, prefix string, ttl time.Duration) *OnceMarker {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &OnceMarker{rdb: rdb, prefix: prefix, ttl: ttl}
}

// FirstSeen reports whether id is being marked for the first time.
func (m *OnceMarker) FirstSeen(ctx context.Context, id string) (bool, error) {
	return MarkOnce(ctx, m.rdb, m.key(id), m.ttl)
}

// Forget removes the marker for id so the next FirstSeen reports true again.
func (m *OnceMarker) Forget(ctx context.Context, id string) error {
	if m.rdb == nil {
		return errors.New("redis client is nil")
	}
	return m.rdb.Del(ctx, m.key(id)).Err()
}

func (m *OnceMarker) key(id string) string { return m.prefix + id }
