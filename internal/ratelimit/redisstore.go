package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is an optional SharedStore backend that writes rate-limit
// configuration learned from response headers to Redis, keyed by endpoint
// and expiring after twice the window. It has no read method, and no
// process loads these entries back into its buckets.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore connects to addr and returns a RedisStore.
func NewRedisStore(addr string) *RedisStore {
	return &RedisStore{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		prefix: "taskrunner:ratelimit:",
	}
}

// SaveLimit implements SharedStore.
func (s *RedisStore) SaveLimit(ctx context.Context, key string, capacity int, window time.Duration) error {
	value := fmt.Sprintf("%d:%d", capacity, int64(window.Seconds()))
	return s.client.Set(ctx, s.prefix+key, value, window*2).Err()
}

// Close releases the underlying Redis connection pool.
func (s *RedisStore) Close() error { return s.client.Close() }
