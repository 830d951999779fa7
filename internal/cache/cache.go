package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// JobStatusTTL is how long a mirrored job status outlives its last update.
const JobStatusTTL = 30 * time.Minute

// Cache holds the job status mirror and the rate-limit counters.
// Implementations must be safe for concurrent use.
type Cache interface {
	Ping(ctx context.Context) error
	SetJobStatus(ctx context.Context, jobID string, status string, ttl time.Duration) error
	GetJobStatus(ctx context.Context, jobID string) (string, bool, error)
	// IncrWithExpiry increments key and returns the new count. The window
	// starts with the first increment and is not extended by later ones.
	IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error)
	Close() error
}

// RedisCache shares statuses and counters between server replicas.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache parses redisURL. It does not dial; call Ping to verify.
func NewRedisCache(redisURL string) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	return &RedisCache{client: redis.NewClient(opts)}, nil
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) SetJobStatus(ctx context.Context, jobID string, status string, ttl time.Duration) error {
	if err := c.client.Set(ctx, JobStatusKey(jobID), status, ttl).Err(); err != nil {
		return fmt.Errorf("set job status: %w", err)
	}
	return nil
}

func (c *RedisCache) GetJobStatus(ctx context.Context, jobID string) (string, bool, error) {
	val, err := c.client.Get(ctx, JobStatusKey(jobID)).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return "", false, nil
	case err != nil:
		return "", false, fmt.Errorf("get job status: %w", err)
	}
	return val, true, nil
}

func (c *RedisCache) IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error) {
	var incr *redis.IntCmd
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, expiry)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("increment %s: %w", key, err)
	}
	return incr.Val(), nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

var _ Cache = (*RedisCache)(nil)
