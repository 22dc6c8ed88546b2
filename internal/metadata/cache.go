package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrCacheMiss = errors.New("metadata cache miss")

type Cache interface {
	Get(ctx context.Context, key string) (Page, error)
	Set(ctx context.Context, key string, p Page, ttl time.Duration) error
}

// RedisCache stores pages as JSON strings with a TTL.
type RedisCache struct {
	redis *redis.Client
}

func NewRedisCache(rdb *redis.Client) *RedisCache {
	return &RedisCache{redis: rdb}
}

func (c *RedisCache) Get(ctx context.Context, key string) (Page, error) {
	data, err := c.redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Page{}, ErrCacheMiss
	}
	if err != nil {
		return Page{}, err
	}

	var p Page
	if err := json.Unmarshal(data, &p); err != nil {
		return Page{}, err
	}
	return p, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, p Page, ttl time.Duration) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return c.redis.Set(ctx, key, data, ttl).Err()
}
