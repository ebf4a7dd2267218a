package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MaviLabArt/BoltCanvas-sub001/internal/usecase"
)

// RedisStatusCache mirrors the latest order status for cheap storefront
// reads. Settlement correctness never depends on it.
type RedisStatusCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStatusCache(rdb *redis.Client, ttl time.Duration) *RedisStatusCache {
	return &RedisStatusCache{rdb: rdb, ttl: ttl}
}

func (c *RedisStatusCache) SetStatus(ctx context.Context, orderID, status string) error {
	return c.rdb.Set(ctx, "order:status:"+orderID, status, c.ttl).Err()
}

func (c *RedisStatusCache) GetStatus(ctx context.Context, orderID string) (string, bool, error) {
	val, err := c.rdb.Get(ctx, "order:status:"+orderID).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

var _ usecase.StatusCache = (*RedisStatusCache)(nil)
