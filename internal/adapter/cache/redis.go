package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bookstore/orderservice/internal/adapter/config"
	"github.com/bookstore/orderservice/internal/core/port"
	"github.com/redis/go-redis/v9"
)

const serviceName = "bookstore"

type redisCache struct {
	client      *redis.Client
	serviceName string
}

func NewRedisCache(ctx context.Context, cfg *config.Redis) (port.Cache, error) {
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &redisCache{client: client, serviceName: serviceName}, nil
}

func (r *redisCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *redisCache) Get(ctx context.Context, key string) (string, error) {
	value, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (r *redisCache) GenerateKey(operation, key string) string {
	return generateKey(r.serviceName, operation, key)
}

func generateKey(service, operation, key string) string {
	return fmt.Sprintf("%s:%s:%s", service, operation, key)
}
