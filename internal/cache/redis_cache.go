package cache

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/Alexcarrizal/cybermanager-pro-sub000/internal/domain"
)

type RedisTariffCache struct {
	client *redis.Client
}

func NewRedisTariffCache(addr string, password string, db int) *RedisTariffCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisTariffCache{client: client}
}

func (c *RedisTariffCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisTariffCache) Close() error {
	return c.client.Close()
}

func (c *RedisTariffCache) Get(ctx context.Context, key string) ([]domain.Tariff, bool, error) {
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var tariffs []domain.Tariff
	if err := json.Unmarshal([]byte(val), &tariffs); err != nil {
		return nil, false, err
	}
	return tariffs, true, nil
}

func (c *RedisTariffCache) Set(ctx context.Context, key string, tariffs []domain.Tariff, ttl time.Duration) error {
	if tariffs == nil {
		return nil
	}
	payload, err := json.Marshal(tariffs)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, payload, ttl).Err()
}

func (c *RedisTariffCache) Invalidate(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}
