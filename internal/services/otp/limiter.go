package otp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const limiterNamespace = "otp:rate:"

// RedisLimiter enforces a cooldown between issues and blocks a mobile that
// requests too many codes inside window.
type RedisLimiter struct {
	client      redis.UniversalClient
	cooldown    time.Duration
	window      time.Duration
	maxInWindow int
}

func NewRedisLimiter(client redis.UniversalClient, cooldown, window time.Duration, maxInWindow int) *RedisLimiter {
	return &RedisLimiter{client: client, cooldown: cooldown, window: window, maxInWindow: maxInWindow}
}

func (l *RedisLimiter) Allow(ctx context.Context, mobile string) error {
	blockKey := limiterNamespace + "block:" + mobile
	lastKey := limiterNamespace + "last:" + mobile
	countKey := limiterNamespace + "count:" + mobile

	if ttl, _ := l.client.TTL(ctx, blockKey).Result(); ttl > 0 {
		return fmt.Errorf("%w: retry in %d seconds", ErrBlocked, int(ttl.Seconds()))
	}

	// SetNX makes the cooldown check and claim a single step.
	ok, err := l.client.SetNX(ctx, lastKey, "1", l.cooldown).Result()
	if err != nil {
		return err
	}
	if !ok {
		ttl, _ := l.client.TTL(ctx, lastKey).Result()
		return fmt.Errorf("%w: retry in %d seconds", ErrTooSoon, int(ttl.Seconds()))
	}

	// The counter and its window TTL are written together; ExpireNX keeps the
	// window anchored at the first request.
	var incr *redis.IntCmd
	if _, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, countKey)
		pipe.ExpireNX(ctx, countKey, l.window)
		return nil
	}); err != nil {
		return err
	}
	cnt := incr.Val()

	if int(cnt) > l.maxInWindow {
		_ = l.client.Set(ctx, blockKey, "1", l.window*3).Err()
		return fmt.Errorf("%w: retry in %d seconds", ErrBlocked, int((l.window * 3).Seconds()))
	}
	return nil
}

// MemoryLimiter applies only the cooldown rule, per process.
type MemoryLimiter struct {
	mu       sync.Mutex
	cooldown time.Duration
	last     map[string]time.Time
	now      func() time.Time
}

func NewMemoryLimiter(cooldown time.Duration) *MemoryLimiter {
	return &MemoryLimiter{cooldown: cooldown, last: make(map[string]time.Time), now: time.Now}
}

func (l *MemoryLimiter) Allow(_ context.Context, mobile string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if last, ok := l.last[mobile]; ok {
		if wait := l.cooldown - now.Sub(last); wait > 0 {
			return fmt.Errorf("%w: retry in %d seconds", ErrTooSoon, int(wait.Seconds()))
		}
	}
	l.last[mobile] = now
	return nil
}
