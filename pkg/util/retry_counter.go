package util

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RetryCounter tracks delivery attempts per message in redis. It satisfies
// mq.RetryBudget. Counters expire after ttl so abandoned messages do not leak keys.
type RetryCounter struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRetryCounter(rdb *redis.Client, ttl time.Duration) *RetryCounter {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RetryCounter{rdb: rdb, ttl: ttl}
}

// Attempt records one more failed attempt and returns the running total.
func (r *RetryCounter) Attempt(ctx context.Context, key string) (int64, error) {
	var incr *redis.IntCmd
	_, err := r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, key)
		p.Expire(ctx, key, r.ttl)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

// Attempts reports the recorded attempts without changing them.
func (r *RetryCounter) Attempts(ctx context.Context, key string) (int64, error) {
	n, err := r.rdb.Get(ctx, key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

// Clear forgets a message once it has been handled.
func (r *RetryCounter) Clear(ctx context.Context, key string) error {
	return r.rdb.Del(ctx, key).Err()
}
