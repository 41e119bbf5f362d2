package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"minimarket-copilot/internal/config"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCounter struct {
	mu     sync.Mutex
	counts map[string]int64
	ttls   map[string]time.Duration
	err    error
}

func newFakeCounter() *fakeCounter {
	return &fakeCounter{counts: map[string]int64{}, ttls: map[string]time.Duration{}}
}

func (f *fakeCounter) IncrWithTTL(_ context.Context, key string, ttl time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.counts[key]++
	if f.counts[key] == 1 {
		f.ttls[key] = ttl
	}
	return f.counts[key], nil
}

func TestLimiterFixedWindow(t *testing.T) {
	store := newFakeCounter()
	l := NewLimiter(store, config.RateLimitConfig{Turns: 2, Window: time.Minute})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		d, err := l.Allow(ctx, "voice", "store-1", "user-1")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}
	d, err := l.Allow(ctx, "voice", "store-1", "user-1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, int64(3), d.Count)
	assert.Equal(t, time.Minute, d.RetryAfter)

	// Other users keep their own window.
	d, err = l.Allow(ctx, "voice", "store-1", "user-2")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	assert.Equal(t, time.Minute, store.ttls["copilot:rate_limit:voice:store-1:user-1"])
}

func TestLimiterDisabled(t *testing.T) {
	assert.Nil(t, NewLimiter(nil, config.RateLimitConfig{Turns: 2, Window: time.Minute}))
	assert.Nil(t, NewLimiter(newFakeCounter(), config.RateLimitConfig{Turns: 0, Window: time.Minute}))

	var l *Limiter
	d, err := l.Allow(context.Background(), "x")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestLimiterStoreError(t *testing.T) {
	store := newFakeCounter()
	store.err = errors.New("connection refused")
	l := NewLimiter(store, config.RateLimitConfig{Turns: 1, Window: time.Second})

	_, err := l.Allow(context.Background(), "voice")
	assert.ErrorContains(t, err, "connection refused")
}

func TestKey(t *testing.T) {
	assert.Equal(t, "copilot:rate_limit:voice:s", Key("voice", " ", "s"))
	assert.Equal(t, "copilot:rate_limit", Key())
}

type fakeCmdable struct {
	count   int64
	expires int
}

func (f *fakeCmdable) Ping(ctx context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (f *fakeCmdable) Incr(ctx context.Context, key string) *redis.IntCmd {
	f.count++
	return redis.NewIntResult(f.count, nil)
}

func (f *fakeCmdable) Expire(ctx context.Context, key string, ttl time.Duration) *redis.BoolCmd {
	f.expires++
	return redis.NewBoolResult(true, nil)
}

func TestRedisCounterSetsTTLOnce(t *testing.T) {
	store := &fakeCmdable{}
	c := &RedisCounter{store: store}
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := c.IncrWithTTL(ctx, "k", time.Minute)
		require.NoError(t, err)
	}
	assert.Equal(t, int64(3), store.count)
	assert.Equal(t, 1, store.expires)
	assert.NoError(t, c.Ping(ctx))
	assert.NoError(t, c.Close())
}

func TestNewRedisCounterRequiresURL(t *testing.T) {
	_, err := NewRedisCounter(context.Background(), config.RedisConfig{})
	assert.Error(t, err)
}
