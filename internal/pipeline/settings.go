package pipeline

import (
	"github.com/fyerfyer/doc-ingest/config"
	"github.com/fyerfyer/doc-ingest/internal/chunker"
)

// Overrides 单次运行对配置文件切分参数的覆盖，nil 或空串表示不覆盖
type Overrides struct {
	LengthUnit      string
	ChunkSize       *int
	ChunkOverlap    *int
	MinChunkSize    *int
	MaxChunkSize    *int
	ThresholdType   string
	ThresholdAmount *float64
	BufferSize      *int
	AddStartIndex   *bool
}

// ChunkerSettings 合并配置与覆盖项，得到指定策略的切分配置
// strategy 为空时使用配置中的默认策略，非法参数返回 *chunker.ConfigError
func ChunkerSettings(c config.ChunkerConfig, strategy string, o Overrides) (chunker.Config, error) {
	if strategy == "" {
		strategy = c.Strategy
	}
	s, err := chunker.ParseStrategy(strategy)
	if err != nil {
		return chunker.Config{}, err
	}

	cfg := chunker.DefaultConfig(s)
	if c.LengthUnit != "" {
		cfg.LengthUnit = chunker.LengthUnit(c.LengthUnit)
	}
	if c.Encoding != "" {
		cfg.Encoding = c.Encoding
	}
	cfg.AddStartIndex = c.AddStartIndex

	switch s {
	case chunker.StrategyFixed:
		applyWindow(&cfg, c.Fixed)
	case chunker.StrategyRecursive:
		applyWindow(&cfg, c.Recursive)
		if len(c.Recursive.Separators) > 0 {
			cfg.Separators = c.Recursive.Separators
		}
	case chunker.StrategySemantic:
		if c.Semantic.MaxChunkSize > 0 {
			cfg.MinChunkSize = c.Semantic.MinChunkSize
			cfg.MaxChunkSize = c.Semantic.MaxChunkSize
		}
		if c.Semantic.BreakpointThresholdType != "" {
			t, err := chunker.ParseThresholdType(c.Semantic.BreakpointThresholdType)
			if err != nil {
				return chunker.Config{}, err
			}
			cfg.ThresholdType = t
		}
		cfg.ThresholdAmount = c.Semantic.BreakpointThresholdAmount
		cfg.BufferSize = c.Semantic.BufferSize
	}

	if err := o.apply(&cfg); err != nil {
		return chunker.Config{}, err
	}
	return cfg, cfg.Validate()
}

func applyWindow(cfg *chunker.Config, w config.WindowConfig) {
	if w.ChunkSize > 0 {
		cfg.ChunkSize = w.ChunkSize
		cfg.ChunkOverlap = w.ChunkOverlap
	}
}

func (o Overrides) apply(cfg *chunker.Config) error {
	if o.LengthUnit != "" {
		cfg.LengthUnit = chunker.LengthUnit(o.LengthUnit)
	}
	if o.ChunkSize != nil {
		cfg.ChunkSize = *o.ChunkSize
	}
	if o.ChunkOverlap != nil {
		cfg.ChunkOverlap = *o.ChunkOverlap
	}
	if o.MinChunkSize != nil {
		cfg.MinChunkSize = *o.MinChunkSize
	}
	if o.MaxChunkSize != nil {
		cfg.MaxChunkSize = *o.MaxChunkSize
	}
	if o.ThresholdType != "" {
		t, err := chunker.ParseThresholdType(o.ThresholdType)
		if err != nil {
			return err
		}
		cfg.ThresholdType = t
		if o.ThresholdAmount == nil {
			cfg.ThresholdAmount = 0
		}
	}
	if o.ThresholdAmount != nil {
		cfg.ThresholdAmount = *o.ThresholdAmount
	}
	if o.BufferSize != nil {
		cfg.BufferSize = *o.BufferSize
	}
	if o.AddStartIndex != nil {
		cfg.AddStartIndex = *o.AddStartIndex
	}
	return nil
}
