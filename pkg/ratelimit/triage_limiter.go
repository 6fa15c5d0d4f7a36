// Package ratelimit implements a redis-backed sliding window limiter used to
// throttle the public widget endpoint per project and client.
package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// slidingWindow trims the window, then either records the request (returns 1)
// or returns the negative number of milliseconds until the oldest entry expires.
var slidingWindow = redis.NewScript(`
	local key = KEYS[1]
	local now = tonumber(ARGV[1])
	local window_start = tonumber(ARGV[2])
	local max_requests = tonumber(ARGV[3])
	local window_ms = tonumber(ARGV[4])

	redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)

	local count = redis.call('ZCARD', key)
	if count < max_requests then
		redis.call('ZADD', key, now, now .. '-' .. math.random())
		redis.call('PEXPIRE', key, window_ms * 2)
		return 1
	end

	local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
	if #oldest > 0 then
		return -(oldest[2] + window_ms - now)
	end
	return 0
`)

// SlidingWindowLimiter allows rate+burst requests per window for each key.
type SlidingWindowLimiter struct {
	redis  redis.Scripter
	rate   int
	burst  int
	window time.Duration
	now    func() time.Time
}

// NewSlidingWindowLimiter creates a limiter with a one second window.
func NewSlidingWindowLimiter(client redis.Scripter, requestsPerSecond, burst int) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		redis:  client,
		rate:   requestsPerSecond,
		burst:  burst,
		window: time.Second,
		now:    time.Now,
	}
}

// Allow reports whether the request may proceed and, if not, how long to wait.
// Redis failures fail open.
func (l *SlidingWindowLimiter) Allow(ctx context.Context, key string) (bool, time.Duration) {
	if l == nil || l.redis == nil {
		return true, 0
	}

	now := l.now()
	result, err := slidingWindow.Run(ctx, l.redis, []string{"ratelimit:" + key},
		now.UnixMilli(),
		now.Add(-l.window).UnixMilli(),
		l.rate+l.burst,
		l.window.Milliseconds(),
	).Int64()
	if err != nil {
		return true, 0
	}

	switch {
	case result == 1:
		return true, 0
	case result < 0:
		return false, time.Duration(-result) * time.Millisecond
	default:
		return false, l.window
	}
}
