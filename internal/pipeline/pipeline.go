// Package pipeline 串联抽取、规范化、切分与JSONL序列化
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/doc-ingest/internal/chunker"
	"github.com/fyerfyer/doc-ingest/internal/document"
	"github.com/fyerfyer/doc-ingest/internal/metrics"
	"github.com/fyerfyer/doc-ingest/internal/models"
	"github.com/fyerfyer/doc-ingest/pkg/storage"
)

// Loader 读取文件并返回文本段
type Loader func(filePath string) ([]document.Segment, error)

// Pipeline 文档切分流水线
// 本身不含切分逻辑，每次运行按请求中的配置创建切分器
type Pipeline struct {
	loader      Loader
	embedder    chunker.Embedder
	tokenizer   chunker.Tokenizer
	fallback    bool
	rejectEmpty bool
	logger      *logrus.Logger
	metrics     *metrics.Metrics
}

// Option 流水线选项
type Option func(*Pipeline)

// WithEmbedder 设置语义切分使用的向量化器
func WithEmbedder(e chunker.Embedder) Option {
	return func(p *Pipeline) {
		p.embedder = e
	}
}

// WithTokenizer 覆盖切分器的长度计算
func WithTokenizer(t chunker.Tokenizer) Option {
	return func(p *Pipeline) {
		p.tokenizer = t
	}
}

// WithLoader 替换默认的 document.Load
func WithLoader(l Loader) Option {
	return func(p *Pipeline) {
		p.loader = l
	}
}

// WithFallbackOnEmbeddingFailure 语义切分向量化失败时改用递归切分该段
func WithFallbackOnEmbeddingFailure(enabled bool) Option {
	return func(p *Pipeline) {
		p.fallback = enabled
	}
}

// WithRejectEmpty 规范化后无内容时返回 ErrEmptyInput
func WithRejectEmpty(enabled bool) Option {
	return func(p *Pipeline) {
		p.rejectEmpty = enabled
	}
}

// WithLogger 设置日志记录器
func WithLogger(logger *logrus.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithMetrics 设置指标收集器
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// New 创建流水线
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		loader: document.Load,
		logger: logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Request 一次运行的输入
type Request struct {
	Path   string         // 待处理文件
	Config chunker.Config // 切分配置，Strategy 决定使用哪种切分器
}

// Result 一次运行的输出
type Result struct {
	Records   []models.ChunkRecord
	Strategy  chunker.Strategy
	Segments  int // 抽取出的文本段数
	Fallbacks int // 回退为递归切分的文本段数
}

// Process 执行 抽取 → 规范化 → 切分，返回带连续ID的记录
// 任一文本段失败则整体失败，不返回部分结果
func (p *Pipeline) Process(ctx context.Context, req Request) (result *Result, err error) {
	start := time.Now()
	log := p.logger.WithFields(logrus.Fields{
		"file":     filepath.Base(req.Path),
		"strategy": req.Config.Strategy,
	})
	defer func() {
		chunks := 0
		if result != nil {
			chunks = len(result.Records)
		}
		p.metrics.ObserveIngest(string(req.Config.Strategy), ResultLabel(err), time.Since(start), chunks)
	}()

	if err := document.CheckSupported(req.Path); err != nil {
		return nil, err
	}

	primary, err := p.newChunker(req.Config)
	if err != nil {
		return nil, err
	}
	var fallback chunker.Chunker
	if p.fallback && req.Config.Strategy == chunker.StrategySemantic {
		if fallback, err = p.newChunker(fallbackConfig(req.Config)); err != nil {
			return nil, err
		}
	}

	segments, err := p.loader(req.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", filepath.Base(req.Path), err)
	}
	p.metrics.ObserveSegments(string(document.DetectContentType(req.Path)), len(segments))
	segments = document.Clean(segments)

	result = &Result{Strategy: primary.Strategy(), Segments: len(segments), Records: []models.ChunkRecord{}}
	nonEmpty := 0
	for i, seg := range segments {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if seg.Content == "" {
			continue
		}
		nonEmpty++

		chunks, err := primary.SplitSegment(ctx, i, seg)
		if err != nil && fallback != nil && errors.Is(err, models.ErrEmbeddingFailure) {
			log.WithFields(logrus.Fields{
				"segment": i,
				"error":   err,
			}).Warn("Embedding failed, falling back to recursive split")
			p.metrics.IncFallback()
			result.Fallbacks++
			chunks, err = fallback.SplitSegment(ctx, i, seg)
		}
		if err != nil {
			log.WithFields(logrus.Fields{
				"segment": i,
				"error":   err,
			}).Error("Failed to split segment")
			return nil, err
		}

		for _, c := range chunks {
			result.Records = append(result.Records, models.ChunkRecord{
				ID:       len(result.Records),
				Content:  c.Content,
				Metadata: c.Metadata,
			})
		}
	}

	if nonEmpty == 0 && p.rejectEmpty {
		return nil, fmt.Errorf("%s has no text after normalization: %w", filepath.Base(req.Path), models.ErrEmptyInput)
	}

	log.WithFields(logrus.Fields{
		"segments":  len(segments),
		"chunks":    len(result.Records),
		"fallbacks": result.Fallbacks,
		"latency":   time.Since(start).String(),
	}).Info("Document processed")
	return result, nil
}

// WriteFile 处理文件并原子地写出JSONL产物
// 失败时 outputPath 不会被创建或修改
func (p *Pipeline) WriteFile(ctx context.Context, req Request, outputPath string) (*Result, error) {
	result, err := p.Process(ctx, req)
	if err != nil {
		return nil, err
	}
	data, err := Marshal(result.Records)
	if err != nil {
		return nil, err
	}
	if _, err := storage.WriteFileAtomic(outputPath, bytes.NewReader(data)); err != nil {
		return nil, err
	}
	return result, nil
}

// Artifact 已提交到存储的JSONL产物
type Artifact struct {
	Result *Result
	Info   storage.FileInfo
	Data   []byte
}

// Ingest 处理文件并把JSONL产物提交到存储
// 产物先完整渲染再保存，失败时存储中不会出现该产物
func (p *Pipeline) Ingest(ctx context.Context, req Request, store storage.Storage, artifactName string) (*Artifact, error) {
	result, err := p.Process(ctx, req)
	if err != nil {
		return nil, err
	}
	data, err := Marshal(result.Records)
	if err != nil {
		return nil, err
	}
	info, err := store.Save(bytes.NewReader(data), artifactName)
	if err != nil {
		return nil, fmt.Errorf("failed to store artifact: %w", err)
	}
	return &Artifact{Result: result, Info: info, Data: data}, nil
}

func (p *Pipeline) newChunker(cfg chunker.Config) (chunker.Chunker, error) {
	opts := []chunker.Option{chunker.WithLogger(p.logger)}
	if p.embedder != nil {
		opts = append(opts, chunker.WithEmbedder(p.embedder))
	}
	if p.tokenizer != nil {
		opts = append(opts, chunker.WithTokenizer(p.tokenizer))
	}
	return chunker.New(cfg, opts...)
}

// fallbackConfig 语义切分失败时使用的递归切分配置
// 块大小取 MaxChunkSize，不重叠
func fallbackConfig(cfg chunker.Config) chunker.Config {
	fb := chunker.DefaultConfig(chunker.StrategyRecursive)
	fb.LengthUnit = cfg.LengthUnit
	fb.Encoding = cfg.Encoding
	fb.AddStartIndex = cfg.AddStartIndex
	fb.ChunkSize = cfg.MaxChunkSize
	fb.ChunkOverlap = 0
	return fb
}

// ResultLabel 把错误归类为指标标签
func ResultLabel(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, models.ErrUnsupportedFormat):
		return "unsupported_format"
	case errors.Is(err, models.ErrInvalidConfiguration):
		return "invalid_configuration"
	case errors.Is(err, models.ErrEmbeddingFailure):
		return "embedding_failure"
	case errors.Is(err, models.ErrEmptyInput):
		return "empty_input"
	default:
		return "error"
	}
}
