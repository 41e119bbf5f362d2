package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"minimarket-copilot/internal/config"

	"github.com/redis/go-redis/v9"
)

const (
	keyNamespace    = "copilot"
	rateLimitPrefix = "rate_limit"
)

// Counter is the minimal store the limiter needs.
type Counter interface {
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

type cmdable interface {
	Ping(context.Context) *redis.StatusCmd
	Incr(context.Context, string) *redis.IntCmd
	Expire(context.Context, string, time.Duration) *redis.BoolCmd
}

// RedisCounter implements Counter on a Redis connection.
type RedisCounter struct {
	store cmdable
	raw   *redis.Client
}

// NewRedisCounter dials Redis and verifies connectivity.
func NewRedisCounter(ctx context.Context, cfg config.RedisConfig) (*RedisCounter, error) {
	if !cfg.Enabled() {
		return nil, errors.New("redis url is required")
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	if opts.PoolSize == 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}

	raw := redis.NewClient(opts)
	if err := raw.Ping(ctx).Err(); err != nil {
		_ = raw.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &RedisCounter{store: raw, raw: raw}, nil
}

// IncrWithTTL increments and sets the TTL on the first increment of a window.
func (c *RedisCounter) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if c == nil || c.store == nil {
		return 0, errors.New("redis client not initialized")
	}
	count, err := c.store.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if ttl > 0 && count == 1 {
		if _, err := c.store.Expire(ctx, key, ttl).Result(); err != nil {
			return count, err
		}
	}
	return count, nil
}

func (c *RedisCounter) Ping(ctx context.Context) error {
	if c == nil || c.store == nil {
		return errors.New("redis client not initialized")
	}
	return c.store.Ping(ctx).Err()
}

func (c *RedisCounter) Close() error {
	if c == nil || c.raw == nil {
		return nil
	}
	return c.raw.Close()
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Count      int64
	Limit      int64
	RetryAfter time.Duration
}

// Limiter applies a fixed-window limit per scope. A nil *Limiter allows everything.
type Limiter struct {
	store  Counter
	limit  int64
	window time.Duration
}

func NewLimiter(store Counter, cfg config.RateLimitConfig) *Limiter {
	if store == nil || cfg.Turns <= 0 || cfg.Window <= 0 {
		return nil
	}
	return &Limiter{store: store, limit: int64(cfg.Turns), window: cfg.Window}
}

func (l *Limiter) Allow(ctx context.Context, parts ...string) (Decision, error) {
	if l == nil {
		return Decision{Allowed: true}, nil
	}
	count, err := l.store.IncrWithTTL(ctx, Key(parts...), l.window)
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit counter: %w", err)
	}
	d := Decision{Allowed: count <= l.limit, Count: count, Limit: l.limit}
	if !d.Allowed {
		d.RetryAfter = l.window
	}
	return d, nil
}

// Key builds a namespaced rate limit key, skipping empty parts.
func Key(parts ...string) string {
	clean := []string{keyNamespace, rateLimitPrefix}
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		clean = append(clean, part)
	}
	return strings.Join(clean, ":")
}
