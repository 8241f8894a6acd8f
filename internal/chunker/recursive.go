package chunker

import (
	"context"
	"strings"
	"unicode"

	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/doc-ingest/internal/document"
)

// recursiveChunker 先用最粗的分隔符切分，过大的片段再用更细的分隔符切分，
// 最后把相邻片段贪心合并到 chunkSize 以内并保留重叠
type recursiveChunker struct {
	size       int
	overlap    int
	addStart   bool
	separators []separator
	tok        Tokenizer
	logger     *logrus.Logger
}

func newRecursiveChunker(cfg Config, o *options) (*recursiveChunker, error) {
	seps, err := parseSeparators(cfg.Separators)
	if err != nil {
		return nil, err
	}
	return &recursiveChunker{
		size:       cfg.ChunkSize,
		overlap:    cfg.ChunkOverlap,
		addStart:   cfg.AddStartIndex,
		separators: seps,
		tok:        o.tokenizer,
		logger:     o.logger,
	}, nil
}

func (r *recursiveChunker) Strategy() Strategy {
	return StrategyRecursive
}

func (r *recursiveChunker) Split(ctx context.Context, segments []document.Segment) ([]Chunk, error) {
	return splitEach(ctx, r, segments)
}

func (r *recursiveChunker) SplitSegment(_ context.Context, index int, seg document.Segment) ([]Chunk, error) {
	text := seg.Content
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	spans := r.splitSpan(text, span{0, len(text)}, r.separators)
	chunks := make([]Chunk, 0, len(spans))
	for _, sp := range spans {
		sp = trimSpan(text, sp)
		if sp.end <= sp.start {
			continue
		}
		start := 0
		if r.addStart {
			start = r.tok.Count(text[:sp.start])
		}
		chunks = append(chunks, newChunk(text[sp.start:sp.end], seg, start, r.addStart))
	}

	r.logger.WithFields(logrus.Fields{
		"segment": index,
		"chunks":  len(chunks),
	}).Debug("Recursive split finished")
	return chunks, nil
}

// splitSpan 在区间内选择第一个能切开文本的分隔符层级
func (r *recursiveChunker) splitSpan(text string, within span, levels []separator) []span {
	part := text[within.start:within.end]

	var pieces []string
	var rest []separator
	for i, lv := range levels {
		if p := lv.split(part); len(p) > 1 {
			pieces, rest = p, levels[i+1:]
			break
		}
	}
	// 最细层级也切不开，整体保留
	if pieces == nil {
		return []span{within}
	}

	var final, good []span
	off := within.start
	for _, p := range pieces {
		sp := span{off, off + len(p)}
		off += len(p)
		if r.tok.Count(p) <= r.size {
			good = append(good, sp)
			continue
		}
		if len(good) > 0 {
			final = append(final, r.merge(text, good)...)
			good = nil
		}
		final = append(final, r.splitSpan(text, sp, rest)...)
	}
	if len(good) > 0 {
		final = append(final, r.merge(text, good)...)
	}
	return final
}

// merge 贪心合并相邻片段，新块以上一块末尾不超过 overlap 的片段开头
func (r *recursiveChunker) merge(text string, pieces []span) []span {
	var out, current []span
	total := 0
	for _, sp := range pieces {
		l := r.tok.Count(text[sp.start:sp.end])
		if total+l > r.size && len(current) > 0 {
			out = append(out, span{current[0].start, current[len(current)-1].end})
			for total > r.overlap || (total+l > r.size && total > 0) {
				total -= r.tok.Count(text[current[0].start:current[0].end])
				current = current[1:]
			}
		}
		current = append(current, sp)
		total += l
	}
	if len(current) > 0 {
		out = append(out, span{current[0].start, current[len(current)-1].end})
	}
	return out
}

func trimSpan(text string, sp span) span {
	s := text[sp.start:sp.end]
	left := len(s) - len(strings.TrimLeftFunc(s, unicode.IsSpace))
	right := len(strings.TrimRightFunc(s, unicode.IsSpace))
	if right <= left {
		return span{sp.start, sp.start}
	}
	return span{sp.start + left, sp.start + right}
}
