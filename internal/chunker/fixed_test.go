package chunker

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyerfyer/doc-ingest/internal/document"
	"github.com/fyerfyer/doc-ingest/internal/models"
)

func segmentOf(content string) document.Segment {
	return document.Segment{
		Content:  content,
		Metadata: map[string]interface{}{"source": "unit-test.txt"},
	}
}

// alphabet 生成长度为 n 的确定性文本
func alphabet(n int) string {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		sb.WriteByte(byte('a' + i%26))
	}
	return sb.String()
}

func newFixed(t *testing.T, size, overlap int) Chunker {
	t.Helper()
	cfg := DefaultConfig(StrategyFixed)
	cfg.ChunkSize, cfg.ChunkOverlap = size, overlap
	c, err := New(cfg)
	require.NoError(t, err)
	return c
}

func TestFixedSizeWindows(t *testing.T) {
	text := alphabet(2000)
	c := newFixed(t, 800, 100)

	chunks, err := c.Split(context.Background(), []document.Segment{segmentOf(text)})
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	lengths := make([]int, len(chunks))
	for i, ch := range chunks {
		lengths[i] = utf8.RuneCountInString(ch.Content)
	}
	// 窗口起点 0、700、1400
	assert.Equal(t, []int{800, 800, 600}, lengths)

	for i := 0; i < len(chunks)-1; i++ {
		prev, next := chunks[i].Content, chunks[i+1].Content
		assert.Equal(t, prev[len(prev)-100:], next[:100], "相邻块应重叠100个字符")
	}
	assert.Equal(t, text[1400:], chunks[2].Content)
}

func TestFixedSizeShortInput(t *testing.T) {
	c := newFixed(t, 800, 100)

	chunks, err := c.Split(context.Background(), []document.Segment{segmentOf("short text")})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "short text", chunks[0].Content)

	t.Run("exact size", func(t *testing.T) {
		chunks, err := c.Split(context.Background(), []document.Segment{segmentOf(alphabet(800))})
		require.NoError(t, err)
		assert.Len(t, chunks, 1, "恰好等于窗口长度时不应产生重复的尾块")
	})

	t.Run("empty", func(t *testing.T) {
		chunks, err := c.Split(context.Background(), []document.Segment{segmentOf("")})
		require.NoError(t, err)
		assert.Empty(t, chunks)
	})
}

func TestFixedSizeMetadataAndStartIndex(t *testing.T) {
	seg := document.Segment{
		Content:  alphabet(250),
		Metadata: map[string]interface{}{"source": "a.pdf", "page": 2},
	}

	t.Run("inherited unchanged", func(t *testing.T) {
		chunks, err := newFixed(t, 100, 20).Split(context.Background(), []document.Segment{seg})
		require.NoError(t, err)
		require.Len(t, chunks, 3)
		for _, ch := range chunks {
			assert.Equal(t, seg.Metadata, ch.Metadata)
		}
	})

	t.Run("start index", func(t *testing.T) {
		cfg := DefaultConfig(StrategyFixed)
		cfg.ChunkSize, cfg.ChunkOverlap, cfg.AddStartIndex = 100, 20, true
		c, err := New(cfg)
		require.NoError(t, err)

		chunks, err := c.Split(context.Background(), []document.Segment{seg})
		require.NoError(t, err)
		var starts []interface{}
		for _, ch := range chunks {
			starts = append(starts, ch.Metadata[StartIndexKey])
			assert.Equal(t, 2, ch.Metadata["page"])
		}
		assert.Equal(t, []interface{}{0, 80, 160}, starts)
		_, leaked := seg.Metadata[StartIndexKey]
		assert.False(t, leaked, "不应修改来源文本段的元数据")
	})
}

func TestFixedSizeMultiByte(t *testing.T) {
	text := strings.Repeat("文档切分", 50)
	chunks, err := newFixed(t, 30, 10).Split(context.Background(), []document.Segment{segmentOf(text)})
	require.NoError(t, err)
	for _, ch := range chunks {
		assert.True(t, utf8.ValidString(ch.Content))
		assert.LessOrEqual(t, utf8.RuneCountInString(ch.Content), 30)
	}
}

// byteTokenizer 每个字节一个token，模拟字节级BPE拆开多字节字符的情况
type byteTokenizer struct{}

func (byteTokenizer) Encode(text string) []int {
	ids := make([]int, len(text))
	for i := 0; i < len(text); i++ {
		ids[i] = int(text[i])
	}
	return ids
}

func (byteTokenizer) Decode(ids []int) string {
	buf := make([]byte, len(ids))
	for i, id := range ids {
		buf[i] = byte(id)
	}
	return string(buf)
}

func (byteTokenizer) Count(text string) int {
	return len(text)
}

func TestFixedSizeTokenBoundaries(t *testing.T) {
	text := strings.Repeat("文档切分", 50)
	runes := []rune(text)

	tests := []struct {
		name    string
		size    int
		overlap int
	}{
		{"window ends inside a rune", 4, 1},
		{"window smaller than a rune", 2, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig(StrategyFixed)
			cfg.ChunkSize, cfg.ChunkOverlap = tt.size, tt.overlap
			c, err := New(cfg, WithTokenizer(byteTokenizer{}))
			require.NoError(t, err)

			chunks, err := c.Split(context.Background(), []document.Segment{segmentOf(text)})
			require.NoError(t, err)
			require.Len(t, chunks, len(runes))
			for i, ch := range chunks {
				assert.True(t, utf8.ValidString(ch.Content))
				assert.NotContains(t, ch.Content, string(utf8.RuneError))
				assert.Equal(t, string(runes[i]), ch.Content)
			}
		})
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"overlap equals size", func(c *Config) { c.ChunkSize, c.ChunkOverlap = 100, 100 }, "chunk_overlap"},
		{"overlap exceeds size", func(c *Config) { c.ChunkSize, c.ChunkOverlap = 100, 150 }, "chunk_overlap"},
		{"negative overlap", func(c *Config) { c.ChunkOverlap = -1 }, "chunk_overlap"},
		{"zero size", func(c *Config) { c.ChunkSize = 0 }, "chunk_size"},
		{"unknown strategy", func(c *Config) { c.Strategy = "sliding" }, "strategy"},
		{"unknown unit", func(c *Config) { c.LengthUnit = "bytes" }, "length_unit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig(StrategyFixed)
			tt.mutate(&cfg)

			_, err := New(cfg)
			require.Error(t, err)
			assert.True(t, errors.Is(err, models.ErrInvalidConfiguration))
			var ce *ConfigError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy(" Semantic ")
	require.NoError(t, err)
	assert.Equal(t, StrategySemantic, s)

	_, err = ParseStrategy("character")
	assert.True(t, errors.Is(err, models.ErrInvalidConfiguration))
}
