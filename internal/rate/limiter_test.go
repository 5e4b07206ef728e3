package rate

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, cfg Config) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})
	return New(rdb, cfg), mr
}

func TestLimiterBudget(t *testing.T) {
	l, _ := newTestLimiter(t, Config{MaxAttempts: 3, Cooldown: time.Minute})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := l.RecordFailure(ctx, "user", "a@b.com"); err != nil {
			t.Fatalf("attempt %d: unexpected %v", i, err)
		}
	}
	if err := l.Check(ctx, "user", "A@B.com "); err != nil {
		t.Fatalf("expected budget left, got %v", err)
	}
	if err := l.RecordFailure(ctx, "user", "a@b.com"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited on third failure, got %v", err)
	}
	if err := l.Check(ctx, "user", "a@b.com"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected Check to report limit, got %v", err)
	}
	if err := l.Check(ctx, "admin", "a@b.com"); err != nil {
		t.Fatalf("sources must be counted separately, got %v", err)
	}

	if err := l.Reset(ctx, "user", "a@b.com"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if n, _ := l.Attempts(ctx, "user", "a@b.com"); n != 0 {
		t.Fatalf("expected 0 attempts after reset, got %d", n)
	}
}

func TestLimiterWindowExpires(t *testing.T) {
	l, mr := newTestLimiter(t, Config{Prefix: "t", MaxAttempts: 1, Cooldown: time.Minute})
	ctx := context.Background()

	if err := l.RecordFailure(ctx, "user", "x"); !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected limit, got %v", err)
	}
	if ttl := mr.TTL("t:user:x"); ttl != time.Minute {
		t.Fatalf("expected window ttl 1m, got %v", ttl)
	}
	_ = l.RecordFailure(ctx, "user", "x")
	if ttl := mr.TTL("t:user:x"); ttl != time.Minute {
		t.Fatalf("second hit must not extend the window, got %v", ttl)
	}

	mr.FastForward(time.Minute + time.Second)
	if err := l.Check(ctx, "user", "x"); err != nil {
		t.Fatalf("expected window reset, got %v", err)
	}
}

func TestLimiterRedisDown(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	defer rdb.Close()
	mr.Close()

	l := New(rdb, Config{MaxAttempts: 1})
	if err := l.Check(context.Background(), "user", "x"); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("expected ErrRedisUnavailable, got %v", err)
	}
}
