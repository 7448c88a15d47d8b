package ratelimit

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newMiniRedis(t *testing.T) *redis.Client {
	t.Helper()
	s, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(s.Close)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return rdb
}

func fakeClock(start int64) (func() int64, func(delta int64)) {
	now := start
	return func() int64 { return now }, func(delta int64) { now += delta }
}

func TestRateLimiter_BurstThenDeny(t *testing.T) {
	rdb := newMiniRedis(t)
	now, _ := fakeClock(1_000_000)

	limiter := NewRedisRateLimiter(rdb, "test:ratelimit:", 1, 3, now)

	for i := 0; i < 3; i++ {
		allowed, err := limiter.Allow(context.Background(), "jean@hopital.fr")
		if err != nil {
			t.Fatalf("allow %d: %v", i, err)
		}
		if !allowed {
			t.Fatalf("expected burst request %d to pass", i)
		}
	}

	allowed, err := limiter.Allow(context.Background(), "jean@hopital.fr")
	if err != nil {
		t.Fatalf("allow: %v", err)
	}
	if allowed {
		t.Fatalf("expected request beyond burst to be denied")
	}
}

func TestRateLimiter_RefillsOverTime(t *testing.T) {
	rdb := newMiniRedis(t)
	now, advance := fakeClock(1_000_000)

	limiter := NewRedisRateLimiter(rdb, "test:ratelimit:", 1, 1, now)

	if allowed, _ := limiter.Allow(context.Background(), "k"); !allowed {
		t.Fatalf("expected first request to pass")
	}
	if allowed, _ := limiter.Allow(context.Background(), "k"); allowed {
		t.Fatalf("expected empty bucket to deny")
	}

	advance(1500) // 1.5s à 1 token/s

	if allowed, err := limiter.Allow(context.Background(), "k"); err != nil || !allowed {
		t.Fatalf("expected refill to allow, allowed=%v err=%v", allowed, err)
	}
}

func TestRateLimiter_KeysAreIndependent(t *testing.T) {
	rdb := newMiniRedis(t)
	now, _ := fakeClock(1_000_000)

	limiter := NewRedisRateLimiter(rdb, "test:ratelimit:", 1, 1, now)

	if allowed, _ := limiter.Allow(context.Background(), "a@b.fr"); !allowed {
		t.Fatalf("expected first key to pass")
	}
	if allowed, _ := limiter.Allow(context.Background(), "+33612345678"); !allowed {
		t.Fatalf("buckets must be per contact")
	}
}

func TestRateLimiter_DisabledAlwaysAllows(t *testing.T) {
	rdb := newMiniRedis(t)
	limiter := NewRedisRateLimiter(rdb, "test:ratelimit:", 0, 0, nil)

	for i := 0; i < 10; i++ {
		if allowed, err := limiter.Allow(context.Background(), "k"); err != nil || !allowed {
			t.Fatalf("disabled limiter must always allow, allowed=%v err=%v", allowed, err)
		}
	}
}
