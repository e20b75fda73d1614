package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/example/faces-api/internal/validation"
)

// boxGenerationKey versions every cached box result. Bumping it after an insert
// makes all earlier entries unreachable; they expire on their own TTL.
const boxGenerationKey = "photos:box:generation"

// Cache abstracts the Redis operations used for query results.
type Cache interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string) (string, error)
	Incr(ctx context.Context, key string) (int64, error)
}

// RedisCache is a concrete implementation backed by go-redis.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache constructs a new Redis-backed cache adapter.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return c.client.Set(ctx, key, value, expiration).Err()
}

// Get returns redis.Nil on a miss.
func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	return c.client.Get(ctx, key).Result()
}

func (c *RedisCache) Incr(ctx context.Context, key string) (int64, error) {
	return c.client.Incr(ctx, key).Result()
}

func boxCacheKey(generation string, box validation.BoundingBox) string {
	return fmt.Sprintf("photos:box:%s:%d:%d:%d:%d", generation, box.StartX, box.EndX, box.StartY, box.EndY)
}
