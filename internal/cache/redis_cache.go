package cache

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"bagatelle/backend/internal/domain"
)

type RedisSuggestionCache struct {
	client *redis.Client
}

func NewRedisSuggestionCache(addr string, password string, db int) *RedisSuggestionCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisSuggestionCache{client: client}
}

func (c *RedisSuggestionCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisSuggestionCache) Close() error {
	return c.client.Close()
}

func (c *RedisSuggestionCache) Get(ctx context.Context, key string) (*domain.RepurchaseFeed, bool, error) {
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var feed domain.RepurchaseFeed
	if err := json.Unmarshal([]byte(val), &feed); err != nil {
		return nil, false, err
	}
	return &feed, true, nil
}

func (c *RedisSuggestionCache) Set(ctx context.Context, key string, value *domain.RepurchaseFeed, ttl time.Duration) error {
	if value == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, payload, ttl).Err()
}
