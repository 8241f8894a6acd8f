package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// LRUCache 容量有限的内存缓存，超出容量时淘汰最久未使用的向量
// 过期时间统一取 DefaultTTL，Set 的 ttl 参数被忽略
type LRUCache struct {
	lru *expirable.LRU[string, []float32]
}

// NewLRUCache 创建LRU缓存
func NewLRUCache(config Config) (Cache, error) {
	size := config.Size
	if size <= 0 {
		size = 10000
	}
	return &LRUCache{
		lru: expirable.NewLRU[string, []float32](size, nil, config.DefaultTTL),
	}, nil
}

// Get 获取缓存向量
func (l *LRUCache) Get(_ context.Context, key string) ([]float32, bool, error) {
	vec, ok := l.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	return cloneVector(vec), true, nil
}

// Set 写入缓存向量
func (l *LRUCache) Set(_ context.Context, key string, vector []float32, _ time.Duration) error {
	l.lru.Add(key, cloneVector(vector))
	return nil
}

// Delete 删除缓存项
func (l *LRUCache) Delete(_ context.Context, key string) error {
	l.lru.Remove(key)
	return nil
}

// Clear 清空所有缓存
func (l *LRUCache) Clear(_ context.Context) error {
	l.lru.Purge()
	return nil
}

func init() {
	RegisterCache("lru", NewLRUCache)
}
