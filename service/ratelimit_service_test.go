package service

import (
	"context"
	"testing"
	"time"
)

func TestRateLimit_AllowThenDeny(t *testing.T) {
	_, rdb := newTestRedis(t)
	s := NewRateLimitService(rdb)
	ctx := context.Background()

	cfg := RateLimitConfig{MaxRequests: 3, Window: 10 * time.Second, KeyPrefix: "test"}

	for i := 0; i < 3; i++ {
		res := s.Check(ctx, "user:1", cfg)
		if !res.Allowed {
			t.Fatalf("request %d should be allowed", i+1)
		}
		want := cfg.MaxRequests - i - 1
		if res.Remaining != want {
			t.Fatalf("request %d: remaining = %d, want %d", i+1, res.Remaining, want)
		}
	}

	res := s.Check(ctx, "user:1", cfg)
	if res.Allowed {
		t.Fatal("4th request should be denied")
	}
	if res.Remaining != 0 {
		t.Fatalf("denied remaining = %d, want 0", res.Remaining)
	}
	if res.RetryAfter <= 0 || res.RetryAfter > cfg.Window {
		t.Fatalf("retryAfter out of range: %v", res.RetryAfter)
	}
}

func TestRateLimit_DenialDoesNotConsume(t *testing.T) {
	_, rdb := newTestRedis(t)
	s := NewRateLimitService(rdb)
	ctx := context.Background()

	cfg := RateLimitConfig{MaxRequests: 2, Window: 10 * time.Second, KeyPrefix: "test"}

	s.Check(ctx, "user:1", cfg)
	s.Check(ctx, "user:1", cfg)

	// 拒绝的请求会回滚自己的 marker，多次拒绝不会把窗口越撑越大
	for i := 0; i < 5; i++ {
		if res := s.Check(ctx, "user:1", cfg); res.Allowed {
			t.Fatalf("over-limit request %d should be denied", i+1)
		}
	}

	n, err := rdb.ZCard(ctx, "im:rl:test:user:1").Result()
	if err != nil {
		t.Fatalf("zcard: %v", err)
	}
	if n != 2 {
		t.Fatalf("window cardinality = %d, want 2", n)
	}
}

func TestRateLimit_WindowSlides(t *testing.T) {
	_, rdb := newTestRedis(t)
	s := NewRateLimitService(rdb)
	ctx := context.Background()

	cfg := RateLimitConfig{MaxRequests: 1, Window: 50 * time.Millisecond, KeyPrefix: "test"}

	if res := s.Check(ctx, "user:1", cfg); !res.Allowed {
		t.Fatal("first request should be allowed")
	}
	if res := s.Check(ctx, "user:1", cfg); res.Allowed {
		t.Fatal("second request inside window should be denied")
	}

	time.Sleep(60 * time.Millisecond)

	if res := s.Check(ctx, "user:1", cfg); !res.Allowed {
		t.Fatal("request after window should be allowed again")
	}
}

func TestRateLimit_IdentifiersIndependent(t *testing.T) {
	_, rdb := newTestRedis(t)
	s := NewRateLimitService(rdb)
	ctx := context.Background()

	cfg := RateLimitConfig{MaxRequests: 1, Window: 10 * time.Second, KeyPrefix: "test"}

	if res := s.Check(ctx, "user:1", cfg); !res.Allowed {
		t.Fatal("user:1 should be allowed")
	}
	if res := s.Check(ctx, "user:2", cfg); !res.Allowed {
		t.Fatal("user:2 must not share user:1's window")
	}
	if res := s.Check(ctx, "user:1", cfg); res.Allowed {
		t.Fatal("user:1 second request should be denied")
	}
}

func TestRateLimit_ActionsIndependent(t *testing.T) {
	_, rdb := newTestRedis(t)
	s := NewRateLimitService(rdb)
	ctx := context.Background()

	send := RateLimitConfig{MaxRequests: 1, Window: 10 * time.Second, KeyPrefix: "send"}
	typing := RateLimitConfig{MaxRequests: 1, Window: 10 * time.Second, KeyPrefix: "typing"}

	s.Check(ctx, "user:1", send)
	if res := s.Check(ctx, "user:1", typing); !res.Allowed {
		t.Fatal("different actions must use separate windows")
	}
}

func TestRateLimit_FailOpenWithoutRedis(t *testing.T) {
	s := NewRateLimitService(nil)
	res := s.Check(context.Background(), "user:1", RateLimitSendMessage)
	if !res.Allowed {
		t.Fatal("missing backend must fail open")
	}
}

func TestRateLimit_FailOpenOnBackendDown(t *testing.T) {
	mr, rdb := newTestRedis(t)
	s := NewRateLimitService(rdb)
	mr.Close()

	res := s.Check(context.Background(), "user:1", RateLimitSendMessage)
	if !res.Allowed {
		t.Fatal("backend failure must fail open")
	}
}
