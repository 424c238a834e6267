// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startMiniRedis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr := miniredis.NewMiniRedis()
	if err := mr.Start(); err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	return mr
}

// setupMiniRedis creates a test Redis server using miniredis.
func setupMiniRedis(t *testing.T) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()
	mr := startMiniRedis(t)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, &RedisCache{
		client: client,
		prefix: DefaultKeyPrefix,
		logger: zerolog.Nop(),
	}
}

func TestRedisCache_SetGet(t *testing.T) {
	mr, cache := setupMiniRedis(t)

	cache.Set("sitemap:xml", []byte("<urlset/>"), 5*time.Minute)

	val, found := cache.Get("sitemap:xml")
	require.True(t, found)
	assert.Equal(t, "<urlset/>", string(val))

	stored, err := mr.Get("sitekit:sitemap:xml")
	require.NoError(t, err)
	assert.Equal(t, "<urlset/>", stored, "keys are namespaced")

	stats := cache.Stats()
	assert.Equal(t, int64(1), stats.Sets)
	assert.Equal(t, int64(1), stats.Hits)
}

func TestRedisCache_GetMissing(t *testing.T) {
	_, cache := setupMiniRedis(t)

	val, found := cache.Get("nonexistent")
	assert.False(t, found)
	assert.Nil(t, val)
	assert.Equal(t, int64(1), cache.Stats().Misses)
}

func TestRedisCache_TTL(t *testing.T) {
	mr, cache := setupMiniRedis(t)

	cache.Set("ttl-key", []byte("ttl-value"), 100*time.Millisecond)

	_, found := cache.Get("ttl-key")
	require.True(t, found, "expected value to be found immediately")

	mr.FastForward(200 * time.Millisecond)

	_, found = cache.Get("ttl-key")
	assert.False(t, found, "expected value to be expired")
}

func TestRedisCache_Delete(t *testing.T) {
	_, cache := setupMiniRedis(t)

	cache.Set("delete-key", []byte("delete-value"), 5*time.Minute)
	_, found := cache.Get("delete-key")
	require.True(t, found)

	cache.Delete("delete-key")

	_, found = cache.Get("delete-key")
	assert.False(t, found)
}

func TestRedisCache_ClearKeepsForeignKeys(t *testing.T) {
	mr, cache := setupMiniRedis(t)
	require.NoError(t, mr.Set("session:abc", "other-app"))

	cache.Set("key1", []byte("value1"), 5*time.Minute)
	cache.Set("key2", []byte("value2"), 5*time.Minute)
	cache.Set("key3", []byte("value3"), 5*time.Minute)
	require.Equal(t, 3, cache.Stats().CurrentSize)

	cache.Clear()

	assert.Equal(t, 0, cache.Stats().CurrentSize)
	_, found := cache.Get("key1")
	assert.False(t, found)
	assert.True(t, mr.Exists("session:abc"), "clear must not touch keys outside the prefix")
}

func TestRedisCache_HealthCheck(t *testing.T) {
	mr, cache := setupMiniRedis(t)
	ctx := context.Background()

	require.NoError(t, cache.HealthCheck(ctx))

	mr.Close()

	assert.Error(t, cache.HealthCheck(ctx), "expected health check to fail after Redis shutdown")
}

func TestNewRedisCache_Unreachable(t *testing.T) {
	mr := startMiniRedis(t)
	addr := mr.Addr()
	mr.Close()

	_, err := NewRedisCache(RedisConfig{Addr: addr}, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis connection failed")
}

func TestRedisCache_ConcurrentAccess(t *testing.T) {
	_, cache := setupMiniRedis(t)

	const numGoroutines = 10
	const numOps = 50

	var wg sync.WaitGroup
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < numOps; j++ {
				cache.Set("concurrent-key", []byte("v"), 5*time.Minute)
				cache.Get("concurrent-key")
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(numGoroutines*numOps), cache.Stats().Sets)
}
