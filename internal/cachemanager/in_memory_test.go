package cachemanager

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fileKey string

type stamp struct {
	Path string
	Op   string
}

func TestNewInMemory(t *testing.T) {
	require.NotPanics(t, func() {
		NewInMemory[string, string]("test", DefaultExpiration, DefaultCleanupInterval)
	})
}

func TestInMemory_GetExistingValue_StructType(t *testing.T) {
	cache := NewInMemory[fileKey, stamp]("events", DefaultExpiration, DefaultCleanupInterval)
	want := stamp{Path: "/tmp/a.txt", Op: "WRITE"}
	cache.Set(context.Background(), "a", want, DefaultExpiration)

	got, ok := cache.Get(context.Background(), "a")
	require.True(t, ok)
	require.Equal(t, want, got)
}

func TestInMemory_GetMissingValue(t *testing.T) {
	cache := NewInMemory[string, string]("events", DefaultExpiration, DefaultCleanupInterval)

	got, ok := cache.Get(context.Background(), "missing")
	require.False(t, ok)
	require.Equal(t, "", got)
}

func TestInMemory_GetWithInvalidValueType(t *testing.T) {
	cache := NewInMemory[string, string]("events", DefaultExpiration, DefaultCleanupInterval)
	cache.cache.Set("a", 123, DefaultExpiration)

	got, ok := cache.Get(context.Background(), "a")
	require.False(t, ok)
	require.Equal(t, "", got)
}

func TestInMemory_Claim(t *testing.T) {
	cache := NewInMemory[fileKey, struct{}]("events", DefaultExpiration, DefaultCleanupInterval)

	require.True(t, cache.Claim(context.Background(), "a", struct{}{}, time.Minute))
	require.False(t, cache.Claim(context.Background(), "a", struct{}{}, time.Minute), "second claim inside the window is a duplicate")
	require.True(t, cache.Claim(context.Background(), "b", struct{}{}, time.Minute))
	require.Equal(t, 2, cache.Len())
}

func TestInMemory_ClaimAfterExpiry(t *testing.T) {
	cache := NewInMemory[fileKey, struct{}]("events", DefaultExpiration, DefaultCleanupInterval)

	require.True(t, cache.Claim(context.Background(), "a", struct{}{}, 10*time.Millisecond))
	require.Eventually(t, func() bool {
		return cache.Claim(context.Background(), "a", struct{}{}, time.Minute)
	}, time.Second, 5*time.Millisecond)
}

func TestInMemory_Delete(t *testing.T) {
	cache := NewInMemory[string, string]("events", DefaultExpiration, DefaultCleanupInterval)
	cache.Set(context.Background(), "a", "x", DefaultExpiration)
	cache.Set(context.Background(), "b", "y", DefaultExpiration)

	cache.Delete(context.Background())
	require.Equal(t, 2, cache.Len())

	cache.Delete(context.Background(), "a")
	_, ok := cache.Get(context.Background(), "a")
	require.False(t, ok)
	got, ok := cache.Get(context.Background(), "b")
	require.True(t, ok)
	require.Equal(t, "y", got)
}

func TestInMemory_Flush(t *testing.T) {
	cache := NewInMemory[string, string]("events", DefaultExpiration, DefaultCleanupInterval)
	cache.Set(context.Background(), "a", "x", NoExpiration)

	cache.Flush(context.Background())

	_, ok := cache.Get(context.Background(), "a")
	require.False(t, ok)
	require.Equal(t, 0, cache.Len())
}
