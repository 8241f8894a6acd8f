package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyerfyer/doc-ingest/config"
	"github.com/fyerfyer/doc-ingest/internal/chunker"
	"github.com/fyerfyer/doc-ingest/internal/models"
)

func chunkerDefaults() config.ChunkerConfig {
	return config.ChunkerConfig{
		Strategy:   "recursive",
		LengthUnit: "chars",
		Encoding:   "cl100k_base",
		Fixed:      config.WindowConfig{ChunkSize: 800, ChunkOverlap: 100},
		Recursive:  config.WindowConfig{ChunkSize: 900, ChunkOverlap: 150},
		Semantic: config.SemanticConfig{
			MinChunkSize:            200,
			MaxChunkSize:            800,
			BreakpointThresholdType: "percent",
			BufferSize:              1,
		},
	}
}

func intPtr(v int) *int { return &v }

func TestChunkerSettings(t *testing.T) {
	t.Run("default strategy", func(t *testing.T) {
		cfg, err := ChunkerSettings(chunkerDefaults(), "", Overrides{})
		require.NoError(t, err)
		assert.Equal(t, chunker.StrategyRecursive, cfg.Strategy)
		assert.Equal(t, 900, cfg.ChunkSize)
		assert.Equal(t, 150, cfg.ChunkOverlap)
	})

	t.Run("fixed", func(t *testing.T) {
		cfg, err := ChunkerSettings(chunkerDefaults(), "FIXED", Overrides{})
		require.NoError(t, err)
		assert.Equal(t, chunker.StrategyFixed, cfg.Strategy)
		assert.Equal(t, 800, cfg.ChunkSize)
		assert.Equal(t, 100, cfg.ChunkOverlap)
	})

	t.Run("semantic with overrides", func(t *testing.T) {
		amount := 90.0
		cfg, err := ChunkerSettings(chunkerDefaults(), "semantic", Overrides{
			MaxChunkSize:    intPtr(500),
			ThresholdType:   "percentile",
			ThresholdAmount: &amount,
		})
		require.NoError(t, err)
		assert.Equal(t, 200, cfg.MinChunkSize)
		assert.Equal(t, 500, cfg.MaxChunkSize)
		assert.Equal(t, chunker.ThresholdPercentile, cfg.ThresholdType)
		assert.Equal(t, 90.0, cfg.ThresholdAmount)
		assert.Equal(t, 1, cfg.BufferSize)
	})

	t.Run("invalid", func(t *testing.T) {
		tests := []struct {
			name     string
			strategy string
			o        Overrides
		}{
			{"unknown strategy", "sliding", Overrides{}},
			{"overlap not below size", "recursive", Overrides{ChunkSize: intPtr(100), ChunkOverlap: intPtr(100)}},
			{"bad threshold", "semantic", Overrides{ThresholdType: "gradient"}},
			{"bad unit", "fixed", Overrides{LengthUnit: "bytes"}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := ChunkerSettings(chunkerDefaults(), tt.strategy, tt.o)
				assert.ErrorIs(t, err, models.ErrInvalidConfiguration)
			})
		}
	})
}
