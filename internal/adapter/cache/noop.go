package cache

import (
	"context"
	"time"

	"github.com/bookstore/orderservice/internal/core/port"
)

// noopCache is used when no Redis address is configured; every read misses.
type noopCache struct{}

func NewNoopCache() port.Cache {
	return noopCache{}
}

func (noopCache) Set(context.Context, string, string, time.Duration) error { return nil }

func (noopCache) Get(context.Context, string) (string, error) { return "", nil }

func (noopCache) GenerateKey(operation, key string) string {
	return generateKey(serviceName, operation, key)
}
