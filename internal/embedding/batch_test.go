package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fyerfyer/doc-ingest/internal/cache"
)

func TestSplitIntoBatches(t *testing.T) {
	texts := []string{"a", "b", "c", "d", "e"}
	assert.Equal(t, [][]string{{"a", "b"}, {"c", "d"}, {"e"}}, splitIntoBatches(texts, 2))
	assert.Equal(t, [][]string{{"a", "b", "c", "d", "e"}}, splitIntoBatches(texts, 10))
	assert.Len(t, splitIntoBatches(texts, 0), 5)
}

func TestBatchProcessorKeepsOrder(t *testing.T) {
	fake, err := NewFakeClient(WithDimensions(16))
	require.NoError(t, err)

	texts := make([]string, 0, 23)
	for i := 0; i < 23; i++ {
		texts = append(texts, string(rune('a'+i))+" word")
	}

	p := NewBatchProcessor(fake, 5, 3)
	got, err := p.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)

	want, err := fake.EmbedBatch(context.Background(), texts)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, int64(5+1), fake.(*FakeClient).Calls(), "5个批次加上一次直接调用")
}

func TestBatchProcessorRespectsProviderLimit(t *testing.T) {
	c, err := NewTongyiClient(WithAPIKey("k"), WithModel("text-embedding-v3"))
	require.NoError(t, err)
	p := NewBatchProcessor(c, 64, 2)
	assert.Equal(t, 10, p.batchSize)
}

func TestBatchProcessorFailure(t *testing.T) {
	m := NewMockClient(t)
	m.On("EmbedBatch", mock.Anything, []string{"a", "b"}).Return([][]float32{{1}, {2}}, nil).Maybe()
	m.On("EmbedBatch", mock.Anything, []string{"c"}).Return(nil, errors.New("boom"))

	p := NewBatchProcessor(m, 2, 1)
	_, err := p.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestCachedClient(t *testing.T) {
	m := NewMockClient(t)
	m.On("Name").Return("mock/model")
	m.On("EmbedBatch", mock.Anything, []string{"x", "y"}).Return([][]float32{{1, 0}, {0, 1}}, nil).Once()
	m.On("EmbedBatch", mock.Anything, []string{"z"}).Return([][]float32{{1, 1}}, nil).Once()

	c, err := cache.NewMemoryCache(cache.DefaultConfig())
	require.NoError(t, err)
	cc := NewCachedClient(m, c, 0, nil)
	ctx := context.Background()

	first, err := cc.EmbedBatch(ctx, []string{"x", "y"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, first)

	// 只有 z 未命中
	second, err := cc.EmbedBatch(ctx, []string{"y", "z", "x"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0, 1}, {1, 1}, {1, 0}}, second)

	vec, err := cc.Embed(ctx, "z")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 1}, vec)
}

func TestCachedClientPropagatesErrors(t *testing.T) {
	m := NewMockClient(t)
	m.On("Name").Return("mock/model")
	m.On("EmbedBatch", mock.Anything, []string{"x"}).Return(nil, NewEmbeddingError(ErrCodeServerError, "down"))

	c, err := cache.NewLRUCache(cache.Config{Size: 4})
	require.NoError(t, err)
	_, err = NewCachedClient(m, c, 0, nil).EmbedBatch(context.Background(), []string{"x"})
	require.Error(t, err)

	_, found, _ := c.Get(context.Background(), cache.VectorKey("mock/model", "x"))
	assert.False(t, found, "失败的结果不应写入缓存")
}
