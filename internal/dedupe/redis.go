package dedupe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "newsdigest:latest:"

// Redis is a LatestLinks backed by Redis, so the fast path survives worker
// restarts.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(ctx context.Context, addr string, ttl time.Duration) (*Redis, error) {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Redis{client: client, ttl: ttl}, nil
}

// Get returns the remembered link for a source, or "" when unknown.
func (r *Redis) Get(ctx context.Context, sourceURL string) (string, error) {
	val, err := r.client.Get(ctx, redisKeyPrefix+sourceURL).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get latest link: %w", err)
	}
	return val, nil
}

// Set records the newest ingested link for a source.
func (r *Redis) Set(ctx context.Context, sourceURL, link string) error {
	if err := r.client.Set(ctx, redisKeyPrefix+sourceURL, link, r.ttl).Err(); err != nil {
		return fmt.Errorf("set latest link: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (r *Redis) Close() error { return r.client.Close() }
