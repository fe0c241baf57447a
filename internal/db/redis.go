package db

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Each connected viewer holds one dedicated pub/sub connection outside the
// command pool, so the pool itself only has to absorb publish traffic from
// listing mutations.
const (
	redisPoolSize     = 8
	redisMinIdleConns = 2
)

// NewRedisClient creates and verifies the Redis client shared by the listing
// change-event publisher and the feed subscriptions.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL: %w", err)
	}
	opts.PoolSize = redisPoolSize
	opts.MinIdleConns = redisMinIdleConns

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return rdb, nil
}
