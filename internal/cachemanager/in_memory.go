package cachemanager

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/zjrosen/observerkit/internal/log"
)

const DefaultExpiration = 2 * time.Second
const DefaultCleanupInterval = 30 * time.Second

// NoExpiration keeps an entry until it is deleted or flushed.
const NoExpiration = gocache.NoExpiration

// NewInMemory creates a go-cache backed CacheManager. useCase names the
// cache in log lines.
func NewInMemory[K ~string, V any](useCase string, defaultExpiration, cleanupInterval time.Duration) *InMemory[K, V] {
	return &InMemory[K, V]{
		useCase: useCase,
		cache:   gocache.New(defaultExpiration, cleanupInterval),
	}
}

// InMemory is the go-cache implementation of CacheManager.
type InMemory[K ~string, V any] struct {
	useCase string
	cache   *gocache.Cache
}

var _ CacheManager[string, struct{}] = (*InMemory[string, struct{}])(nil)

// Get returns the live value stored under key.
func (c *InMemory[K, V]) Get(ctx context.Context, key K) (V, bool) {
	var zero V

	value, found := c.cache.Get(string(key))
	if !found {
		return zero, false
	}

	v, ok := value.(V)
	if !ok {
		log.Error(log.CatCache, "wrong type assertion when getting value", "cache", c.useCase, "key", key)
		return zero, false
	}

	return v, true
}

// Set stores value under key. A zero ttl uses the cache default.
func (c *InMemory[K, V]) Set(ctx context.Context, key K, value V, ttl time.Duration) {
	c.cache.Set(string(key), value, ttl)
}

func (c *InMemory[K, V]) Claim(ctx context.Context, key K, value V, ttl time.Duration) bool {
	if err := c.cache.Add(string(key), value, ttl); err != nil {
		log.Debug(log.CatCache, "duplicate suppressed", "cache", c.useCase, "key", key)
		return false
	}
	return true
}

func (c *InMemory[K, V]) Delete(ctx context.Context, keys ...K) {
	for _, key := range keys {
		c.cache.Delete(string(key))
	}
}

func (c *InMemory[K, V]) Flush(ctx context.Context) {
	c.cache.Flush()
}

// Len counts stored entries, including expired ones not yet cleaned up.
func (c *InMemory[K, V]) Len() int {
	return c.cache.ItemCount()
}
