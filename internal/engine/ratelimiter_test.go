package engine

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupTestRL(t *testing.T) (*RateLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewRateLimiter(client, logger), mr
}

func TestRateLimiter_AllowsWithinLimit(t *testing.T) {
	rl, _ := setupTestRL(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if !rl.Allow(ctx, "conn-1", 5) {
			t.Errorf("message %d should be allowed (limit=5)", i+1)
		}
	}
}

func TestRateLimiter_BlocksOverLimit(t *testing.T) {
	rl, _ := setupTestRL(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		rl.Allow(ctx, "conn-1", 3)
	}

	if rl.Allow(ctx, "conn-1", 3) {
		t.Error("message should be blocked when over limit")
	}
}

func TestRateLimiter_ZeroLimit_AllowsAll(t *testing.T) {
	rl, _ := setupTestRL(t)
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		if !rl.Allow(ctx, "conn-1", 0) {
			t.Errorf("message %d should be allowed with limit=0 (unlimited)", i+1)
		}
	}
}

func TestRateLimiter_IsolationBetweenConnections(t *testing.T) {
	rl, _ := setupTestRL(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		rl.Allow(ctx, "conn-1", 2)
	}

	if rl.Allow(ctx, "conn-1", 2) {
		t.Error("conn-1 should be blocked")
	}
	if !rl.Allow(ctx, "conn-2", 2) {
		t.Error("conn-2 should be allowed: windows are per-connection")
	}
}

func TestRateLimiter_ForgetClearsWindow(t *testing.T) {
	rl, mr := setupTestRL(t)
	ctx := context.Background()

	rl.Allow(ctx, "conn-1", 1)
	if !mr.Exists(rlKey("conn-1")) {
		t.Fatal("expected window key to exist")
	}

	rl.Forget(ctx, "conn-1")

	if mr.Exists(rlKey("conn-1")) {
		t.Error("window key should be removed")
	}
	if !rl.Allow(ctx, "conn-1", 1) {
		t.Error("connection should start with a fresh window")
	}
}

func TestRateLimiter_FailsOpenWhenRedisDown(t *testing.T) {
	rl, mr := setupTestRL(t)
	mr.Close()

	if !rl.Allow(context.Background(), "conn-1", 1) {
		t.Error("limiter should fail open when redis is unavailable")
	}
}
