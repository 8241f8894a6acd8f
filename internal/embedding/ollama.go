package embedding

import (
	"context"
	"fmt"

	"github.com/philippgille/chromem-go"
)

const (
	defaultOllamaModel = "nomic-embed-text"
	defaultOllamaURL   = "http://localhost:11434/api"
)

// OllamaClient 通过 chromem-go 调用本地 Ollama 嵌入接口
// 该接口一次只接受一条文本，批量请求逐条发送
type OllamaClient struct {
	model string
	embed chromem.EmbeddingFunc
}

// NewOllamaClient 创建Ollama嵌入客户端
func NewOllamaClient(opts ...Option) (Client, error) {
	cfg := NewConfig(opts...)

	model := cfg.Model
	if model == "" {
		model = defaultOllamaModel
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}

	return &OllamaClient{
		model: model,
		embed: chromem.NewEmbeddingFuncOllama(model, baseURL),
	}, nil
}

// Name 返回模型名称
func (c *OllamaClient) Name() string {
	return "ollama/" + c.model
}

// Embed 生成单条文本的向量表示
func (c *OllamaClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, NewEmbeddingError(ErrCodeEmptyInput, ErrMsgEmptyInput)
	}
	vec, err := c.embed(ctx, text)
	if err != nil {
		return nil, NewEmbeddingError(ErrCodeNetworkError, fmt.Sprintf("ollama embedding failed: %v", err))
	}
	return vec, nil
}

// EmbedBatch 逐条调用，任一失败即返回
func (c *OllamaClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		vec, err := c.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out = append(out, vec)
	}
	return out, nil
}

func init() {
	RegisterClient("ollama", NewOllamaClient)
}
