package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"sync/atomic"
	"unicode"
)

const defaultFakeDimensions = 256

// FakeClient 离线使用的确定性嵌入客户端
// 把每个词散列到固定维度的桶中得到词袋向量，词汇重叠越多的文本距离越近
type FakeClient struct {
	dimensions int
	calls      atomic.Int64
}

// NewFakeClient 创建离线嵌入客户端
func NewFakeClient(opts ...Option) (Client, error) {
	cfg := NewConfig(opts...)
	dim := cfg.Dimensions
	if dim <= 0 {
		dim = defaultFakeDimensions
	}
	return &FakeClient{dimensions: dim}, nil
}

// Name 返回模型名称
func (c *FakeClient) Name() string {
	return "fake/bow"
}

// Calls 返回批量调用次数
func (c *FakeClient) Calls() int64 {
	return c.calls.Load()
}

// Embed 生成单条文本的向量表示
func (c *FakeClient) Embed(_ context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, NewEmbeddingError(ErrCodeEmptyInput, ErrMsgEmptyInput)
	}
	return c.vector(text), nil
}

// EmbedBatch 批量生成向量
func (c *FakeClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls.Add(1)
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, NewEmbeddingError(ErrCodeTimeout, err.Error())
		}
		out = append(out, c.vector(t))
	}
	return out, nil
}

func (c *FakeClient) vector(text string) []float32 {
	vec := make([]float32, c.dimensions)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		h.Write([]byte(w))
		vec[h.Sum32()%uint32(c.dimensions)]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		// 没有可散列的词时给一个固定方向，避免零向量
		vec[0] = 1
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

func init() {
	RegisterClient("fake", NewFakeClient)
}
