package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

const (
	// 默认API端点
	defaultDashScopeEndpoint = "https://dashscope.aliyuncs.com/api/v1/services/embeddings/text-embedding/text-embedding"
	defaultCompatEndpoint    = "https://dashscope.aliyuncs.com/compatible-mode/v1/embeddings"

	defaultTongyiModel = "text-embedding-v1"
	defaultTongyiDim   = 1024
)

// dashScopeRequest DashScope原生接口请求体
type dashScopeRequest struct {
	Model      string               `json:"model"`
	Input      dashScopeInput       `json:"input"`
	Parameters *dashScopeParameters `json:"parameters,omitempty"`
}

type dashScopeInput struct {
	Texts []string `json:"texts"`
}

type dashScopeParameters struct {
	Dimension  int    `json:"dimension,omitempty"`
	OutputType string `json:"output_type,omitempty"`
}

// dashScopeResponse DashScope原生接口响应体
type dashScopeResponse struct {
	StatusCode int    `json:"status_code,omitempty"`
	RequestID  string `json:"request_id"`
	Code       string `json:"code,omitempty"`
	Message    string `json:"message,omitempty"`
	Output     struct {
		Embeddings []struct {
			Embedding []float32 `json:"embedding"`
			TextIndex int       `json:"text_index"`
		} `json:"embeddings"`
	} `json:"output"`
}

// compatResponse OpenAI兼容接口响应体
type compatResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// TongyiClient 通义千问（DashScope）嵌入API客户端
type TongyiClient struct {
	apiKey     string
	endpoint   string
	model      string
	httpClient *http.Client
	maxRetries int
	dimensions int
	compatAPI  bool // 是否使用OpenAI兼容接口
	logger     *logrus.Logger
}

// NewTongyiClient 创建新的通义千问嵌入客户端
func NewTongyiClient(opts ...Option) (Client, error) {
	cfg := NewConfig(opts...)

	if cfg.APIKey == "" {
		return nil, NewEmbeddingError(ErrCodeInvalidAPIKey, ErrMsgInvalidAPIKey)
	}

	// 确定API端点
	endpoint := cfg.BaseURL
	compat := false
	switch endpoint {
	case "":
		endpoint = defaultDashScopeEndpoint
	case "openai", "compatible":
		endpoint = defaultCompatEndpoint
		compat = true
	}

	model := cfg.Model
	if model == "" {
		model = defaultTongyiModel
	}
	dimensions := cfg.Dimensions
	if dimensions == 0 {
		dimensions = defaultTongyiDim
	}

	return &TongyiClient{
		apiKey:     cfg.APIKey,
		endpoint:   endpoint,
		model:      model,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		maxRetries: cfg.MaxRetries,
		dimensions: dimensions,
		compatAPI:  compat,
		logger:     cfg.Logger,
	}, nil
}

// Name 返回模型名称
func (c *TongyiClient) Name() string {
	return "tongyi/" + c.model
}

// Embed 生成单条文本的向量表示
func (c *TongyiClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, NewEmbeddingError(ErrCodeEmptyInput, ErrMsgEmptyInput)
	}

	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// MaxBatchSize 单次请求允许的最大文本数
func (c *TongyiClient) MaxBatchSize() int {
	if c.isV3Model() {
		return 10
	}
	return 25
}

// EmbedBatch 批量生成文本的向量表示
func (c *TongyiClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if len(texts) > c.MaxBatchSize() {
		return nil, NewEmbeddingError(ErrCodeInvalidRequest,
			fmt.Sprintf("model %s supports at most %d texts per batch, got %d", c.model, c.MaxBatchSize(), len(texts)))
	}
	if c.isV3Model() && c.dimensions != defaultTongyiDim && !isValidDimension(c.dimensions) {
		return nil, NewEmbeddingError(ErrCodeInvalidRequest, fmt.Sprintf("invalid dimension: %d", c.dimensions))
	}

	var result [][]float32
	var err error
	if c.compatAPI {
		result, err = c.embedCompat(ctx, texts)
	} else {
		result, err = c.embedDashScope(ctx, texts)
	}
	if err != nil {
		return nil, err
	}

	for i, v := range result {
		if len(v) == 0 {
			return nil, NewEmbeddingError(ErrCodeMalformed, fmt.Sprintf("missing embedding for text %d", i))
		}
	}
	return result, nil
}

// embedCompat 使用OpenAI兼容接口
func (c *TongyiClient) embedCompat(ctx context.Context, texts []string) ([][]float32, error) {
	reqData := map[string]interface{}{
		"model":           c.model,
		"input":           texts,
		"encoding_format": "float",
	}
	if c.isV3Model() && c.dimensions != defaultTongyiDim {
		reqData["dimensions"] = c.dimensions
	}

	var resp compatResponse
	if err := c.sendRequest(ctx, reqData, &resp); err != nil {
		return nil, err
	}

	result := make([][]float32, len(texts))
	for _, item := range resp.Data {
		if item.Index >= 0 && item.Index < len(texts) {
			result[item.Index] = item.Embedding
		}
	}
	return result, nil
}

// embedDashScope 使用DashScope原生接口
func (c *TongyiClient) embedDashScope(ctx context.Context, texts []string) ([][]float32, error) {
	reqData := dashScopeRequest{
		Model: c.model,
		Input: dashScopeInput{Texts: texts},
	}
	if c.isV3Model() {
		reqData.Parameters = &dashScopeParameters{OutputType: "dense"}
		if c.dimensions != defaultTongyiDim {
			reqData.Parameters.Dimension = c.dimensions
		}
	}

	var resp dashScopeResponse
	if err := c.sendRequest(ctx, reqData, &resp); err != nil {
		return nil, err
	}
	if resp.StatusCode != 0 && resp.StatusCode != http.StatusOK {
		return nil, NewEmbeddingError(ErrCodeServerError,
			fmt.Sprintf("API error: %s (%s)", resp.Message, resp.Code))
	}

	result := make([][]float32, len(texts))
	for _, emb := range resp.Output.Embeddings {
		if emb.TextIndex >= 0 && emb.TextIndex < len(texts) {
			result[emb.TextIndex] = emb.Embedding
		}
	}
	return result, nil
}

// sendRequest 发送请求，可重试的错误按指数退避重试
func (c *TongyiClient) sendRequest(ctx context.Context, reqData interface{}, respObj interface{}) error {
	body, err := json.Marshal(reqData)
	if err != nil {
		return NewEmbeddingError(ErrCodeInvalidRequest, fmt.Sprintf("failed to marshal request: %v", err))
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 200 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	retries := c.maxRetries
	if retries < 0 {
		retries = 0
	}

	attempt := 0
	operation := func() error {
		attempt++
		err := c.doRequest(ctx, body, respObj)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return backoff.Permanent(err)
		}
		c.logger.WithFields(logrus.Fields{
			"model":   c.model,
			"attempt": attempt,
			"error":   err.Error(),
		}).Warn("Embedding request failed, retrying")
		return err
	}

	err = backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(b, uint64(retries)), ctx))
	if err != nil {
		if ctx.Err() != nil {
			return NewEmbeddingError(ErrCodeTimeout, ctx.Err().Error())
		}
		return err
	}
	return nil
}

// doRequest 执行一次HTTP请求
func (c *TongyiClient) doRequest(ctx context.Context, body []byte, respObj interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return NewEmbeddingError(ErrCodeInvalidRequest, fmt.Sprintf("failed to create request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return NewEmbeddingError(ErrCodeNetworkError, fmt.Sprintf("request failed: %v", err))
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return NewEmbeddingError(ErrCodeNetworkError, fmt.Sprintf("failed to read response: %v", err))
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return NewEmbeddingError(ErrCodeInvalidAPIKey, ErrMsgInvalidAPIKey)
	case resp.StatusCode == http.StatusTooManyRequests:
		return NewEmbeddingError(ErrCodeRateLimited, ErrMsgRateLimited)
	case resp.StatusCode >= 500:
		return NewEmbeddingError(ErrCodeServerError, fmt.Sprintf("API error (status %d): %s", resp.StatusCode, apiMessage(data)))
	default:
		return NewEmbeddingError(ErrCodeInvalidRequest, fmt.Sprintf("API error (status %d): %s", resp.StatusCode, apiMessage(data)))
	}

	if err := json.Unmarshal(data, respObj); err != nil {
		return NewEmbeddingError(ErrCodeMalformed, fmt.Sprintf("failed to parse response: %v", err))
	}
	return nil
}

// apiMessage 尽量从错误响应中取出可读消息
func apiMessage(body []byte) string {
	var errResp struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil {
		if errResp.Message != "" {
			return errResp.Message
		}
		if errResp.Error != "" {
			return errResp.Error
		}
	}
	return string(body)
}

// isV3Model 检查是否为v3模型
func (c *TongyiClient) isV3Model() bool {
	return c.model == "text-embedding-v3"
}

// isValidDimension v3模型支持的维度
func isValidDimension(dim int) bool {
	switch dim {
	case 1024, 768, 512, 256, 128, 64:
		return true
	}
	return false
}

func init() {
	RegisterClient("tongyi", NewTongyiClient)
}
