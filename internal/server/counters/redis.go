package counters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/server/models"
	"github.com/angiedazun/Sri-Lanka-Ports-Authority-Inventory-Management-System.-sub004/internal/timex"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "ratelimit:"

// INCR and the first PEXPIRE run as one script so a crash between them
// cannot leave a counter without a TTL.
var incrementScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {n, ttl}
`)

type RedisCounter struct {
	client redis.UniversalClient
	now    timex.Clock
}

func NewRedisCounter(client redis.UniversalClient, now timex.Clock) *RedisCounter {
	if now == nil {
		now = timex.UTCNow
	}
	return &RedisCounter{client: client, now: now}
}

func (c *RedisCounter) Increment(ctx context.Context, key string, window time.Duration) (models.Bucket, error) {
	res, err := incrementScript.Run(ctx, c.client, []string{redisKeyPrefix + key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return models.Bucket{}, fmt.Errorf("redis error: %w", err)
	}
	if len(res) != 2 {
		return models.Bucket{}, fmt.Errorf("redis error: unexpected script reply %v", res)
	}
	return models.Bucket{
		Key:       key,
		Attempts:  int(res[0]),
		ExpiresAt: c.now().Add(time.Duration(res[1]) * time.Millisecond),
	}, nil
}

func (c *RedisCounter) Get(ctx context.Context, key string) (models.Bucket, error) {
	k := redisKeyPrefix + key

	pipe := c.client.Pipeline()
	get := pipe.Get(ctx, k)
	pttl := pipe.PTTL(ctx, k)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return models.Bucket{}, fmt.Errorf("redis error: %w", err)
	}

	n, err := get.Int()
	if errors.Is(err, redis.Nil) {
		return models.Bucket{Key: key}, nil
	}
	if err != nil {
		return models.Bucket{}, fmt.Errorf("redis error: %w", err)
	}

	ttl := pttl.Val()
	if ttl <= 0 {
		return models.Bucket{Key: key}, nil
	}
	return models.Bucket{Key: key, Attempts: n, ExpiresAt: c.now().Add(ttl)}, nil
}

func (c *RedisCounter) Reset(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, redisKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("redis error: %w", err)
	}
	return nil
}
