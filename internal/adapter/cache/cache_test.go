package cache_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/bookstore/orderservice/internal/adapter/cache"
	"github.com/bookstore/orderservice/internal/adapter/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopCache(t *testing.T) {
	c := cache.NewNoopCache()
	ctx := context.Background()

	key := c.GenerateKey("payment-url", "42")
	assert.Equal(t, "bookstore:payment-url:42", key)

	require.NoError(t, c.Set(ctx, key, "value", time.Minute))
	value, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, value)
}

func TestRedisCache(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDRESS")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDRESS is not set")
	}
	ctx := context.Background()

	c, err := cache.NewRedisCache(ctx, &config.Redis{Addr: addr})
	require.NoError(t, err)

	key := c.GenerateKey("test", time.Now().Format(time.RFC3339Nano))
	value, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, value)

	require.NoError(t, c.Set(ctx, key, "cached", time.Minute))
	value, err = c.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "cached", value)
}
