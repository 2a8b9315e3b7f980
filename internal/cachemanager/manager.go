// Package cachemanager provides a small TTL cache used to suppress
// duplicate work, such as repeated file events inside a short window.
package cachemanager

import (
	"context"
	"time"
)

// CacheManager is a typed key/value cache with per-entry expiry.
type CacheManager[K ~string, V any] interface {
	Get(ctx context.Context, key K) (V, bool)
	Set(ctx context.Context, key K, value V, ttl time.Duration)
	// Claim stores value only when key is absent or expired and reports
	// whether it did.
	Claim(ctx context.Context, key K, value V, ttl time.Duration) bool
	Delete(ctx context.Context, keys ...K)
	Flush(ctx context.Context)
	Len() int
}
