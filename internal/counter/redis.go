package counter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrementScript increments KEYS[1] while it is below ARGV[1] and refreshes its expiry to ARGV[2]
// milliseconds. A limit of -1 means unbounded. Returns {value, incremented}.
var incrementScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
local limit = tonumber(ARGV[1])
if limit >= 0 and current >= limit then
  return {current, 0}
end
current = redis.call('INCR', KEYS[1])
local ttl = tonumber(ARGV[2])
if ttl > 0 then
  redis.call('PEXPIRE', KEYS[1], ttl)
end
return {current, 1}
`)

// RedisStore implements Store using Redis. Every increment is a single script call, so concurrent
// callers never lose updates.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a counter store on the client. Keys expire ttl after their last increment, a
// zero ttl keeps them until deleted.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (r *RedisStore) Get(ctx context.Context, key string) (int64, bool, error) {
	value, err := r.client.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("%w: GET %s: %w", ErrUnavailable, key, err)
	}
	return value, true, nil
}

func (r *RedisStore) Increment(ctx context.Context, key string) (int64, error) {
	value, _, err := r.run(ctx, key, -1)
	return value, err
}

func (r *RedisStore) IncrementBelow(ctx context.Context, key string, limit int64) (int64, bool, error) {
	if limit < 0 {
		limit = 0
	}
	return r.run(ctx, key, limit)
}

func (r *RedisStore) run(ctx context.Context, key string, limit int64) (int64, bool, error) {
	result, err := incrementScript.Run(ctx, r.client, []string{key}, limit, r.ttl.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, false, fmt.Errorf("%w: increment %s: %w", ErrUnavailable, key, err)
	}
	if len(result) != 2 {
		return 0, false, fmt.Errorf("unexpected increment script result %v", result)
	}
	return result[0], result[1] == 1, nil
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("%w: DEL %s: %w", ErrUnavailable, key, err)
	}
	return nil
}
