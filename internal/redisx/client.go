package redisx

import (
	"context"
	"github.com/redis/go-redis/v9"
	"time"
)

// New builds a client with short I/O timeouts; coordination calls are
// expected to be fast and a hung Redis must not hold requests.
func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

func Exists(ctx context.Context, rdb *redis.Client, key string) (bool, error) {
	n, err := rdb.Exists(ctx, key).Result()
	return n > 0, err
}

// SetMarkerNX sets key only if absent. Returns true for the caller that won;
// used for at-most-once markers (payment reminders, event dedup).
func SetMarkerNX(ctx context.Context, rdb *redis.Client, key string, ttl time.Duration) (bool, error) {
	return rdb.SetNX(ctx, key, "1", ttl).Result()
}
