package chunker

import (
	"context"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/doc-ingest/internal/document"
)

// fixedSizeChunker 在单位序列上滑动固定窗口
// 窗口长度 chunkSize，步长 chunkSize-chunkOverlap，不感知句子或单词边界
type fixedSizeChunker struct {
	size     int
	overlap  int
	addStart bool
	tok      Tokenizer
	logger   *logrus.Logger
}

func newFixedSizeChunker(cfg Config, o *options) *fixedSizeChunker {
	return &fixedSizeChunker{
		size:     cfg.ChunkSize,
		overlap:  cfg.ChunkOverlap,
		addStart: cfg.AddStartIndex,
		tok:      o.tokenizer,
		logger:   o.logger,
	}
}

func (f *fixedSizeChunker) Strategy() Strategy {
	return StrategyFixed
}

func (f *fixedSizeChunker) Split(ctx context.Context, segments []document.Segment) ([]Chunk, error) {
	return splitEach(ctx, f, segments)
}

func (f *fixedSizeChunker) SplitSegment(_ context.Context, index int, seg document.Segment) ([]Chunk, error) {
	if seg.Content == "" {
		return nil, nil
	}

	ids := f.tok.Encode(seg.Content)
	var chunks []Chunk
	for start := 0; start < len(ids); {
		end := start + f.size
		if end > len(ids) {
			end = len(ids)
		}
		end = f.alignEnd(ids, start, end)
		chunks = append(chunks, newChunk(f.tok.Decode(ids[start:end]), seg, start, f.addStart))
		// 最后一个窗口已到达末尾
		if end == len(ids) {
			break
		}

		next := end - f.overlap
		if next <= start {
			next = start + 1
		}
		start = f.alignStart(ids, next, end)
	}

	f.logger.WithFields(logrus.Fields{
		"segment": index,
		"units":   len(ids),
		"chunks":  len(chunks),
	}).Debug("Fixed-size split finished")
	return chunks, nil
}

// alignEnd 字节级BPE会把一个多字节字符拆成多个token，窗口末尾回退到字符边界
// 整个窗口都落在同一字符内时向后扩展
func (f *fixedSizeChunker) alignEnd(ids []int, start, end int) int {
	for e := end; e > start; e-- {
		if utf8.ValidString(f.tok.Decode(ids[start:e])) {
			return e
		}
	}
	for e := end + 1; e <= len(ids); e++ {
		if utf8.ValidString(f.tok.Decode(ids[start:e])) {
			return e
		}
	}
	return end
}

// alignStart 下一个窗口的起点前移到字符边界
func (f *fixedSizeChunker) alignStart(ids []int, start, end int) int {
	for s := start; s < end; s++ {
		if utf8.ValidString(f.tok.Decode(ids[s:end])) {
			return s
		}
	}
	return end
}
