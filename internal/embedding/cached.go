package embedding

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/doc-ingest/internal/cache"
)

// CachedClient 带向量缓存的客户端
// 缓存未命中的文本合并为一次底层调用
type CachedClient struct {
	client Client
	cache  cache.Cache
	ttl    time.Duration
	logger *logrus.Logger
}

// NewCachedClient 包装客户端
func NewCachedClient(client Client, c cache.Cache, ttl time.Duration, logger *logrus.Logger) *CachedClient {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &CachedClient{client: client, cache: c, ttl: ttl, logger: logger}
}

// Name 返回底层模型名称
func (c *CachedClient) Name() string {
	return c.client.Name()
}

// Embed 生成单条文本的向量表示
func (c *CachedClient) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch 先查缓存，只为未命中的文本调用底层客户端
func (c *CachedClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missing []string
	var missingIdx []int

	for i, text := range texts {
		vec, found, err := c.cache.Get(ctx, cache.VectorKey(c.client.Name(), text))
		if err != nil {
			// 缓存故障不影响向量化本身
			c.logger.WithError(err).Warn("Embedding cache read failed")
		}
		if found {
			out[i] = vec
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}

	if len(missing) == 0 {
		return out, nil
	}

	vectors, err := c.client.EmbedBatch(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(missing) {
		return nil, NewEmbeddingError(ErrCodeMalformed, "vector count does not match input count")
	}

	for j, vec := range vectors {
		out[missingIdx[j]] = vec
		if err := c.cache.Set(ctx, cache.VectorKey(c.client.Name(), missing[j]), vec, c.ttl); err != nil {
			c.logger.WithError(err).Warn("Embedding cache write failed")
		}
	}

	c.logger.WithFields(logrus.Fields{
		"model":  c.client.Name(),
		"total":  len(texts),
		"misses": len(missing),
	}).Debug("Embedding cache lookup finished")
	return out, nil
}
