package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter throttles inbound websocket messages per connection with a
// Redis sliding window. Each member of the sorted set is one accepted
// message scored by its arrival time; a Lua script trims, counts and adds
// atomically so replicas sharing the Redis instance agree on the count.
type RateLimiter struct {
	redisClient *redis.Client
	logger      *slog.Logger
	script      *redis.Script
	window      time.Duration
}

// KEYS[1] window key; ARGV: now (ms), window (ms), limit, member.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)

local count = redis.call('ZCARD', key)

if count < limit then
    redis.call('ZADD', key, now, member)
    redis.call('EXPIRE', key, math.ceil(window / 1000) + 1)
    return 1
else
    return 0
end
`)

func NewRateLimiter(redisClient *redis.Client, logger *slog.Logger) *RateLimiter {
	return &RateLimiter{
		redisClient: redisClient,
		logger:      logger,
		script:      slidingWindowScript,
		window:      time.Second,
	}
}

func rlKey(connID string) string {
	return fmt.Sprintf("rl:ws:%s", connID)
}

// Allow reports whether connID may send another message within the current
// one-second window. A limit <= 0 disables throttling.
func (rl *RateLimiter) Allow(ctx context.Context, connID string, limit int) bool {
	if limit <= 0 {
		return true
	}

	now := time.Now()
	member := fmt.Sprintf("%d:%d", now.UnixMilli(), now.UnixNano())

	result, err := rl.script.Run(ctx, rl.redisClient, []string{rlKey(connID)},
		now.UnixMilli(), rl.window.Milliseconds(), limit, member,
	).Int64()
	if err != nil {
		// Fail open: an unavailable Redis must not silence every connection.
		rl.logger.Error("rate limiter script failed", "error", err, "conn_id", connID)
		return true
	}

	if result == 0 {
		rl.logger.Debug("message rate limited", "conn_id", connID, "limit", limit)
		return false
	}
	return true
}

// Forget drops the window for a connection that has gone away.
func (rl *RateLimiter) Forget(ctx context.Context, connID string) {
	if err := rl.redisClient.Del(ctx, rlKey(connID)).Err(); err != nil {
		rl.logger.Debug("failed to clear rate limit window", "error", err, "conn_id", connID)
	}
}
