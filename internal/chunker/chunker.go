package chunker

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/doc-ingest/internal/document"
)

// Strategy 切分策略
type Strategy string

const (
	// StrategyFixed 固定窗口切分
	StrategyFixed Strategy = "fixed"
	// StrategyRecursive 按分隔符层级递归切分
	StrategyRecursive Strategy = "recursive"
	// StrategySemantic 按相邻句子的语义距离切分
	StrategySemantic Strategy = "semantic"
)

// ParseStrategy 解析策略名，大小写不敏感
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case StrategyFixed:
		return StrategyFixed, nil
	case StrategyRecursive:
		return StrategyRecursive, nil
	case StrategySemantic:
		return StrategySemantic, nil
	default:
		return "", newConfigError("strategy", "must be one of fixed, recursive, semantic, got %q", s)
	}
}

// Chunk 切分结果
// Metadata 继承自来源文本段
type Chunk struct {
	Content  string
	Metadata map[string]interface{}
}

// StartIndexKey 开启 AddStartIndex 后写入元数据的键
const StartIndexKey = "start_index"

// Chunker 文本切分器接口
type Chunker interface {
	// Split 按顺序切分所有文本段
	Split(ctx context.Context, segments []document.Segment) ([]Chunk, error)

	// SplitSegment 切分单个文本段，index 用于错误定位
	SplitSegment(ctx context.Context, index int, seg document.Segment) ([]Chunk, error)

	// Strategy 返回切分策略
	Strategy() Strategy
}

// Config 切分配置
type Config struct {
	Strategy      Strategy   // 切分策略
	ChunkSize     int        // 固定/递归切分的块大小
	ChunkOverlap  int        // 固定/递归切分的重叠大小
	LengthUnit    LengthUnit // 长度单位
	Encoding      string     // tokens 单位时使用的编码
	Separators    []string   // 递归切分的分隔符层级
	AddStartIndex bool       // 是否在元数据中记录块的起始位置

	MinChunkSize    int           // 语义切分的最小块
	MaxChunkSize    int           // 语义切分的最大块
	ThresholdType   ThresholdType // 断点阈值类型
	ThresholdAmount float64       // 阈值参数，0 表示使用类型默认值
	BufferSize      int           // 语义窗口半径
}

// DefaultConfig 返回给定策略的默认配置
func DefaultConfig(strategy Strategy) Config {
	cfg := Config{
		Strategy:      strategy,
		LengthUnit:    UnitChars,
		Encoding:      DefaultEncoding,
		Separators:    DefaultSeparators(),
		MinChunkSize:  200,
		MaxChunkSize:  800,
		ThresholdType: ThresholdPercent,
		BufferSize:    1,
	}
	switch strategy {
	case StrategyFixed:
		cfg.ChunkSize, cfg.ChunkOverlap = 800, 100
	default:
		cfg.ChunkSize, cfg.ChunkOverlap = 900, 150
	}
	return cfg
}

// Validate 校验配置，失败时返回 *ConfigError
func (c Config) Validate() error {
	if _, err := ParseStrategy(string(c.Strategy)); err != nil {
		return err
	}
	if c.LengthUnit != "" && c.LengthUnit != UnitChars && c.LengthUnit != UnitTokens {
		return newConfigError("length_unit", "must be chars or tokens, got %q", c.LengthUnit)
	}

	switch c.Strategy {
	case StrategyFixed, StrategyRecursive:
		if c.ChunkSize <= 0 {
			return newConfigError("chunk_size", "must be positive, got %d", c.ChunkSize)
		}
		if c.ChunkOverlap < 0 {
			return newConfigError("chunk_overlap", "must not be negative, got %d", c.ChunkOverlap)
		}
		if c.ChunkOverlap >= c.ChunkSize {
			return newConfigError("chunk_overlap", "(%d) must be smaller than chunk_size (%d)", c.ChunkOverlap, c.ChunkSize)
		}
		if c.Strategy == StrategyRecursive {
			if _, err := parseSeparators(c.Separators); err != nil {
				return err
			}
		}
	case StrategySemantic:
		if c.MinChunkSize < 0 {
			return newConfigError("min_chunk_size", "must not be negative, got %d", c.MinChunkSize)
		}
		if c.MaxChunkSize <= 0 {
			return newConfigError("max_chunk_size", "must be positive, got %d", c.MaxChunkSize)
		}
		if c.MinChunkSize > c.MaxChunkSize {
			return newConfigError("min_chunk_size", "(%d) must not exceed max_chunk_size (%d)", c.MinChunkSize, c.MaxChunkSize)
		}
		if c.BufferSize < 0 {
			return newConfigError("buffer_size", "must not be negative, got %d", c.BufferSize)
		}
		if err := validateThreshold(c.ThresholdType, c.ThresholdAmount); err != nil {
			return err
		}
	}
	return nil
}

// Option 切分器选项
type Option func(*options)

type options struct {
	embedder  Embedder
	tokenizer Tokenizer
	logger    *logrus.Logger
}

// WithEmbedder 设置语义切分使用的向量化器
func WithEmbedder(e Embedder) Option {
	return func(o *options) {
		o.embedder = e
	}
}

// WithTokenizer 覆盖按 LengthUnit 创建的Tokenizer
func WithTokenizer(t Tokenizer) Option {
	return func(o *options) {
		o.tokenizer = t
	}
}

// WithLogger 设置日志记录器
func WithLogger(logger *logrus.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// New 校验配置并创建对应策略的切分器
func New(cfg Config, opts ...Option) (Chunker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := &options{logger: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(o)
	}
	if o.tokenizer == nil {
		tok, err := NewTokenizer(cfg.LengthUnit, cfg.Encoding)
		if err != nil {
			return nil, err
		}
		o.tokenizer = tok
	}

	switch cfg.Strategy {
	case StrategyFixed:
		return newFixedSizeChunker(cfg, o), nil
	case StrategyRecursive:
		return newRecursiveChunker(cfg, o)
	case StrategySemantic:
		if o.embedder == nil {
			return nil, newConfigError("embedder", "is required for the semantic strategy")
		}
		return newSemanticChunker(cfg, o), nil
	default:
		return nil, fmt.Errorf("unreachable strategy %q", cfg.Strategy)
	}
}

// splitEach 依次切分每个文本段
func splitEach(ctx context.Context, c Chunker, segments []document.Segment) ([]Chunk, error) {
	var chunks []Chunk
	for i, seg := range segments {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out, err := c.SplitSegment(ctx, i, seg)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, out...)
	}
	return chunks, nil
}

// newChunk 拷贝来源元数据，按需附加起始位置
func newChunk(content string, seg document.Segment, start int, addStart bool) Chunk {
	meta := seg.CloneMetadata()
	if addStart {
		meta[StartIndexKey] = start
	}
	return Chunk{Content: content, Metadata: meta}
}
