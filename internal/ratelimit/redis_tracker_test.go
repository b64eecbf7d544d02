package ratelimit

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisTrackerForTest(t *testing.T, policy Policy) (*miniredis.Miniredis, *RedisTracker) {
	t.Helper()
	m := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: m.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		m.Close()
	})
	return m, NewRedisTracker(client, "rl_test", policy)
}

func TestRedisTrackerMatchesLocalSemantics(t *testing.T) {
	_, tracker := newRedisTrackerForTest(t, DefaultPolicy())
	l := NewLimiter(tracker, DefaultPolicy(), FailClosed, "redis")
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	l.now = clock.Now
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		block, err := l.OnRequest(ctx, "sid:9")
		if err != nil {
			t.Fatalf("request %d: %v", i+1, err)
		}
		if block {
			t.Fatalf("request %d unexpectedly blocked", i+1)
		}
		clock.Advance(200 * time.Millisecond)
	}
	block, err := l.OnRequest(ctx, "sid:9")
	if err != nil {
		t.Fatalf("request 21: %v", err)
	}
	if !block {
		t.Fatal("expected 21st request to be blocked")
	}
}

func TestRedisTrackerCapsWindowAndSetsTTL(t *testing.T) {
	m, tracker := newRedisTrackerForTest(t, Policy{WindowSize: 3, Threshold: 2, Interval: time.Minute})
	now := time.Unix(1700000000, 0)
	for i := 0; i < 6; i++ {
		if _, err := tracker.Track(context.Background(), "k", now); err != nil {
			t.Fatalf("track: %v", err)
		}
	}
	items, err := m.List("rl_test:k")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected capped list of 3, got %d", len(items))
	}
	if ttl := m.TTL("rl_test:k"); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("expected ttl within interval, got %v", ttl)
	}
}

func TestRedisTrackerBackendAndNilClientErrors(t *testing.T) {
	if _, err := NewRedisTracker(nil, "", DefaultPolicy()).Track(context.Background(), "k", time.Now()); err == nil {
		t.Fatal("expected nil client error")
	}

	m, tracker := newRedisTrackerForTest(t, DefaultPolicy())
	m.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if _, err := tracker.Track(ctx, "k", time.Now()); err == nil {
		t.Fatal("expected backend error after redis shutdown")
	}
}

func TestParseRedisInt64Branches(t *testing.T) {
	if v, err := parseRedisInt64(int64(4)); err != nil || v != 4 {
		t.Fatalf("int64 parse mismatch v=%d err=%v", v, err)
	}
	if _, err := parseRedisInt64(uint64(math.MaxUint64)); err == nil {
		t.Fatal("expected overflow error for uint64")
	}
	if _, err := parseRedisInt64("1"); err == nil {
		t.Fatal("expected string type error")
	}
	if _, err := parseRedisInt64(errors.New("x")); err == nil {
		t.Fatal("expected unsupported type error")
	}
}
