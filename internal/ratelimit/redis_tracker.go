package ratelimit

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
)

var redisWindowScript = redis.NewScript(`
local key = KEYS[1]
local now_ms = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local interval_ms = tonumber(ARGV[3])

redis.call("LPUSH", key, now_ms)
redis.call("LTRIM", key, 0, capacity - 1)
redis.call("PEXPIRE", key, interval_ms)

local cutoff = now_ms - interval_ms
local count = 0
local entries = redis.call("LRANGE", key, 0, -1)
for _, v in ipairs(entries) do
  if tonumber(v) > cutoff then
    count = count + 1
  end
end
return count
`)

// RedisTracker applies the window semantics of LocalTracker across processes.
// Each key is a capped list of millisecond timestamps, newest first.
type RedisTracker struct {
	client   redis.UniversalClient
	prefix   string
	capacity int
	interval time.Duration
}

func NewRedisTracker(client redis.UniversalClient, prefix string, policy Policy) *RedisTracker {
	if prefix == "" {
		prefix = "rl"
	}
	policy = normalizePolicy(policy)
	return &RedisTracker{
		client:   client,
		prefix:   prefix,
		capacity: policy.WindowSize,
		interval: policy.Interval,
	}
}

func (t *RedisTracker) Track(ctx context.Context, key string, now time.Time) (int, error) {
	if t.client == nil {
		return 0, fmt.Errorf("redis client is nil")
	}
	intervalMS := t.interval.Milliseconds()
	if intervalMS <= 0 {
		intervalMS = 1000
	}
	raw, err := redisWindowScript.Run(
		ctx,
		t.client,
		[]string{fmt.Sprintf("%s:%s", t.prefix, key)},
		now.UnixMilli(),
		t.capacity,
		intervalMS,
	).Result()
	if err != nil {
		return 0, err
	}
	count, err := parseRedisInt64(raw)
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

func parseRedisInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case uint64:
		if n > math.MaxInt64 {
			return 0, fmt.Errorf("redis response overflows int64")
		}
		return int64(n), nil
	case int:
		return int64(n), nil
	case string:
		return 0, fmt.Errorf("unexpected string redis response: %s", n)
	default:
		return 0, fmt.Errorf("unexpected redis response type %T", v)
	}
}
