package embedding

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

const defaultOpenAIModel = "text-embedding-3-small"

// OpenAIClient 基于 langchaingo 的 OpenAI 嵌入客户端
type OpenAIClient struct {
	model    string
	embedder embeddings.Embedder
}

// NewOpenAIClient 创建OpenAI嵌入客户端
// APIKey 为空时由 langchaingo 读取 OPENAI_API_KEY
func NewOpenAIClient(opts ...Option) (Client, error) {
	cfg := NewConfig(opts...)

	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}

	openaiOpts := []openai.Option{openai.WithEmbeddingModel(model)}
	if cfg.APIKey != "" {
		openaiOpts = append(openaiOpts, openai.WithToken(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		openaiOpts = append(openaiOpts, openai.WithBaseURL(cfg.BaseURL))
	}

	llm, err := openai.New(openaiOpts...)
	if err != nil {
		return nil, NewEmbeddingError(ErrCodeInvalidAPIKey, fmt.Sprintf("failed to initialize openai client: %v", err))
	}

	embedder, err := embeddings.NewEmbedder(llm,
		embeddings.WithBatchSize(cfg.BatchSize),
		embeddings.WithStripNewLines(false),
	)
	if err != nil {
		return nil, NewEmbeddingError(ErrCodeInvalidRequest, fmt.Sprintf("failed to construct openai embedder: %v", err))
	}

	return &OpenAIClient{model: model, embedder: embedder}, nil
}

// Name 返回模型名称
func (c *OpenAIClient) Name() string {
	return "openai/" + c.model
}

// Embed 生成单条文本的向量表示
func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, NewEmbeddingError(ErrCodeEmptyInput, ErrMsgEmptyInput)
	}
	vec, err := c.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, NewEmbeddingError(ErrCodeServerError, fmt.Sprintf("openai embedding failed: %v", err))
	}
	return vec, nil
}

// EmbedBatch 批量生成向量，分批由 langchaingo 处理
func (c *OpenAIClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	vectors, err := c.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, NewEmbeddingError(ErrCodeServerError, fmt.Sprintf("openai embedding failed: %v", err))
	}
	if len(vectors) != len(texts) {
		return nil, NewEmbeddingError(ErrCodeMalformed,
			fmt.Sprintf("openai returned %d vectors for %d texts", len(vectors), len(texts)))
	}
	return vectors, nil
}

func init() {
	RegisterClient("openai", NewOpenAIClient)
}
