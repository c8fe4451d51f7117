package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// slidingWindowScript keeps one sorted-set member per admitted request,
// scored by its timestamp in milliseconds. Rejected requests are not
// recorded, so they don't extend the window.
//
// KEYS[1] window key
// ARGV[1] now (ms), ARGV[2] window (ms), ARGV[3] limit, ARGV[4] member
// Returns {allowed, count, reset_ms}
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
local allowed = 0
if count < limit then
  redis.call('ZADD', key, ARGV[1], ARGV[4])
  count = count + 1
  allowed = 1
end
if count > 0 then
  redis.call('PEXPIRE', key, window)
end

local reset = now + window
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if oldest[2] then
  reset = tonumber(oldest[2]) + window
end
return {allowed, count, reset}
`)

// incrWithTTLScript increments a counter and gives it a TTL if it has none.
// Checking PTTL instead of the returned count also repairs a counter that
// lost its TTL, e.g. one created by a bare INCR.
//
// KEYS[1] counter key
// ARGV[1] ttl (ms)
// Returns the new count
var incrWithTTLScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if redis.call('PTTL', KEYS[1]) < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return count
`)

// RedisCounterStore implements CounterStore on Redis
type RedisCounterStore struct {
	client *redis.Client
}

var _ CounterStore = (*RedisCounterStore)(nil)

// NewRedisCounterStore creates a counter store on an existing client
func NewRedisCounterStore(client *redis.Client) *RedisCounterStore {
	return &RedisCounterStore{client: client}
}

// RedisOptions configures NewRedisClient
type RedisOptions struct {
	URL      string
	Password string
	DB       int
	PoolSize int
	Timeout  time.Duration
}

// NewRedisClient builds a Redis client from a URL. It does not ping the
// server: the gateway must start even while Redis is down.
func NewRedisClient(opts RedisOptions) (*redis.Client, error) {
	parsed, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	if opts.Password != "" {
		parsed.Password = opts.Password
	}
	if opts.DB > 0 {
		parsed.DB = opts.DB
	}
	if opts.PoolSize > 0 {
		parsed.PoolSize = opts.PoolSize
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	parsed.DialTimeout = timeout
	parsed.ReadTimeout = timeout
	parsed.WriteTimeout = timeout
	parsed.PoolTimeout = timeout
	// Fail fast; the limiter degrades instead of retrying. -1 disables
	// retries, 0 would mean the client default.
	parsed.MaxRetries = -1

	return redis.NewClient(parsed), nil
}

// Window implements CounterStore
func (s *RedisCounterStore) Window(ctx context.Context, key string, limit int64, window time.Duration, now time.Time) (WindowResult, error) {
	nowMs := now.UnixMilli()
	member := strconv.FormatInt(nowMs, 10) + "-" + uuid.NewString()

	raw, err := slidingWindowScript.Run(ctx, s.client, []string{key},
		nowMs, window.Milliseconds(), limit, member).Slice()
	if err != nil {
		return WindowResult{}, fmt.Errorf("sliding window script failed: %w", err)
	}
	if len(raw) != 3 {
		return WindowResult{}, fmt.Errorf("sliding window script returned %d values", len(raw))
	}
	vals := make([]int64, len(raw))
	for i, v := range raw {
		n, ok := v.(int64)
		if !ok {
			return WindowResult{}, fmt.Errorf("sliding window script returned %T at %d", v, i)
		}
		vals[i] = n
	}

	return WindowResult{
		Allowed: vals[0] == 1,
		Count:   vals[1],
		Reset:   time.UnixMilli(vals[2]),
	}, nil
}

// IncrWithTTL implements CounterStore
func (s *RedisCounterStore) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	n, err := incrWithTTLScript.Run(ctx, s.client, []string{key}, ttl.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("counter increment script failed: %w", err)
	}
	return n, nil
}

// Ping checks Redis connectivity
func (s *RedisCounterStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Reset deletes counter keys (for admin tooling and tests)
func (s *RedisCounterStore) Reset(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}
