package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// exerciseCache 各实现共用的基本行为检查
func exerciseCache(t *testing.T, c Cache) {
	ctx := context.Background()
	vec := []float32{0.25, -1.5, 3}

	// 测试Set和Get
	require.NoError(t, c.Set(ctx, "k1", vec, 0))
	got, found, err := c.Get(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, vec, got)

	// 返回值修改不影响缓存内容
	got[0] = 99
	again, _, _ := c.Get(ctx, "k1")
	assert.Equal(t, float32(0.25), again[0])

	// 测试不存在的键
	got, found, err = c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, got)

	// 测试删除
	require.NoError(t, c.Delete(ctx, "k1"))
	_, found, _ = c.Get(ctx, "k1")
	assert.False(t, found)

	// 测试清空
	require.NoError(t, c.Set(ctx, "k2", vec, 0))
	require.NoError(t, c.Clear(ctx))
	_, found, _ = c.Get(ctx, "k2")
	assert.False(t, found)
}

func TestMemoryCache(t *testing.T) {
	c, err := NewMemoryCache(Config{Type: "memory", DefaultTTL: time.Minute, CleanupInterval: time.Second})
	require.NoError(t, err)
	exerciseCache(t, c)

	t.Run("expiry", func(t *testing.T) {
		ctx := context.Background()
		require.NoError(t, c.Set(ctx, "short", []float32{1}, 50*time.Millisecond))
		time.Sleep(120 * time.Millisecond)
		_, found, err := c.Get(ctx, "short")
		require.NoError(t, err)
		assert.False(t, found)
	})
}

func TestRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)

	c, err := NewRedisCache(Config{Type: "redis", RedisAddr: mr.Addr(), DefaultTTL: time.Hour})
	require.NoError(t, err)
	exerciseCache(t, c)

	t.Run("ttl", func(t *testing.T) {
		ctx := context.Background()
		require.NoError(t, c.Set(ctx, "ttl-key", []float32{1, 2}, time.Second))
		mr.FastForward(2 * time.Second)
		_, found, err := c.Get(ctx, "ttl-key")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("corrupt value", func(t *testing.T) {
		require.NoError(t, mr.Set("bad", "abc"))
		_, _, err := c.Get(context.Background(), "bad")
		assert.Error(t, err)
	})
}

func TestRedisCacheUnavailable(t *testing.T) {
	_, err := NewRedisCache(Config{Type: "redis", RedisAddr: "127.0.0.1:1"})
	assert.Error(t, err)
}

func TestLRUCache(t *testing.T) {
	c, err := NewLRUCache(Config{Type: "lru", Size: 2, DefaultTTL: time.Hour})
	require.NoError(t, err)
	exerciseCache(t, c)

	t.Run("eviction", func(t *testing.T) {
		ctx := context.Background()
		require.NoError(t, c.Set(ctx, "a", []float32{1}, 0))
		require.NoError(t, c.Set(ctx, "b", []float32{2}, 0))
		require.NoError(t, c.Set(ctx, "c", []float32{3}, 0))

		_, found, _ := c.Get(ctx, "a")
		assert.False(t, found, "最久未使用的条目应被淘汰")
		_, found, _ = c.Get(ctx, "c")
		assert.True(t, found)
	})
}

func TestCacheFactory(t *testing.T) {
	for _, typ := range []string{"memory", "lru", "unknown-type"} {
		c, err := NewCache(Config{Type: typ})
		assert.NoError(t, err, typ)
		assert.NotNil(t, c, typ)
	}

	mr := miniredis.RunT(t)
	c, err := NewCache(Config{Type: "redis", RedisAddr: mr.Addr()})
	require.NoError(t, err)
	_, ok := c.(*RedisCache)
	assert.True(t, ok)
}

func TestGenerateCacheKey(t *testing.T) {
	assert.Equal(t, "prefix", GenerateCacheKey("prefix"))
	assert.Equal(t, "prefix:part1", GenerateCacheKey("prefix", "part1"))
	assert.Equal(t, "prefix:part1:part2:part3", GenerateCacheKey("prefix", "part1", "part2", "part3"))
}

func TestVectorKey(t *testing.T) {
	k1 := VectorKey("openai/text-embedding-3-small", "hello")
	k2 := VectorKey("openai/text-embedding-3-small", "hello")
	k3 := VectorKey("ollama/nomic-embed-text", "hello")

	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3, "不同模型的向量不能共用缓存键")
	assert.Len(t, k1, len("embed:openai/text-embedding-3-small:")+64)
}
