package limiter

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "login_attempts:"

// Times and windows travel as unix milliseconds. A key expires after two
// windows, which Allow would treat as elapsed anyway.
var (
	allowScript = `
local v = redis.call('HMGET', KEYS[1], 'fails', 'start')
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
if (not v[2]) or (now - tonumber(v[2]) > window) then
  redis.call('HSET', KEYS[1], 'fails', 0, 'start', now)
  redis.call('PEXPIRE', KEYS[1], window * 2)
  return 0
end
return tonumber(v[1])`

	failureScript = `
if redis.call('EXISTS', KEYS[1]) == 0 then
  redis.call('HSET', KEYS[1], 'fails', 1, 'start', ARGV[1])
  redis.call('PEXPIRE', KEYS[1], tonumber(ARGV[2]) * 2)
  return 1
end
return redis.call('HINCRBY', KEYS[1], 'fails', 1)`
)

type redisScripter interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// Redis is a Limiter shared by every server pointing at the same Redis.
// Each call is one Lua script, so a username's read-modify-write is atomic.
type Redis struct {
	rdb      redisScripter
	window   time.Duration
	maxFails int
}

var _ Limiter = (*Redis)(nil)

// NewRedis constructs a Redis-backed limiter.
func NewRedis(rdb *redis.Client, window time.Duration, maxFails int) *Redis {
	return newRedis(rdb, window, maxFails)
}

func newRedis(rdb redisScripter, window time.Duration, maxFails int) *Redis {
	if window <= 0 {
		window = DefaultWindow
	}
	if maxFails <= 0 {
		maxFails = DefaultMaxFails
	}
	return &Redis{rdb: rdb, window: window, maxFails: maxFails}
}

// Allow opens or resets the window and reports whether the count is below the cap.
func (l *Redis) Allow(ctx context.Context, username string, now time.Time) (bool, error) {
	fails, err := l.rdb.Eval(ctx, allowScript, []string{redisKeyPrefix + username},
		now.UnixMilli(), l.window.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return fails < int64(l.maxFails), nil
}

// RecordFailure increments the counter, opening a window when none exists.
func (l *Redis) RecordFailure(ctx context.Context, username string, now time.Time) error {
	return l.rdb.Eval(ctx, failureScript, []string{redisKeyPrefix + username},
		now.UnixMilli(), l.window.Milliseconds()).Err()
}
