package chunker

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/doc-ingest/internal/document"
)

// Embedder 语义切分依赖的向量化能力
// 每个文本段只调用一次，返回的向量与输入一一对应
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbedFunc 函数形式的 Embedder
type EmbedFunc func(ctx context.Context, texts []string) ([][]float32, error)

// EmbedBatch 实现 Embedder
func (f EmbedFunc) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return f(ctx, texts)
}

// semanticChunker 在语义距离突变处切分
type semanticChunker struct {
	minSize       int
	maxSize       int
	thresholdType ThresholdType
	amount        float64
	buffer        int
	addStart      bool
	embedder      Embedder
	tok           Tokenizer
	logger        *logrus.Logger
}

func newSemanticChunker(cfg Config, o *options) *semanticChunker {
	t, _ := ParseThresholdType(string(cfg.ThresholdType))
	return &semanticChunker{
		minSize:       cfg.MinChunkSize,
		maxSize:       cfg.MaxChunkSize,
		thresholdType: t,
		amount:        thresholdAmount(t, cfg.ThresholdAmount),
		buffer:        cfg.BufferSize,
		addStart:      cfg.AddStartIndex,
		embedder:      o.embedder,
		tok:           o.tokenizer,
		logger:        o.logger,
	}
}

func (s *semanticChunker) Strategy() Strategy {
	return StrategySemantic
}

func (s *semanticChunker) Split(ctx context.Context, segments []document.Segment) ([]Chunk, error) {
	return splitEach(ctx, s, segments)
}

func (s *semanticChunker) SplitSegment(ctx context.Context, index int, seg document.Segment) ([]Chunk, error) {
	text := seg.Content
	units := splitSentences(text)
	if len(units) == 0 {
		return nil, nil
	}

	var groups []span
	if len(units) == 1 {
		groups = []span{{0, 0}}
	} else {
		distances, err := s.distances(ctx, index, text, units)
		if err != nil {
			return nil, err
		}
		threshold := computeThreshold(s.thresholdType, s.amount, distances)

		var breakpoints []int
		for i, d := range distances {
			if d > threshold {
				breakpoints = append(breakpoints, i)
			}
		}

		r := &semanticRun{s: s, text: text, units: units, distances: distances, threshold: threshold}
		groups = r.partition()
		if groups == nil {
			// 不存在满足上下限的划分时按断点贪心处理
			for _, g := range r.applyMinSize(breakpoints) {
				groups = append(groups, r.subdivide(g.start, g.end)...)
			}
		}

		s.logger.WithFields(logrus.Fields{
			"segment":     index,
			"units":       len(units),
			"threshold":   threshold,
			"breakpoints": len(breakpoints),
			"chunks":      len(groups),
		}).Debug("Semantic split finished")
	}

	chunks := make([]Chunk, 0, len(groups))
	for _, g := range groups {
		from, to := units[g.start].start, units[g.end].end
		start := 0
		if s.addStart {
			start = s.tok.Count(text[:from])
		}
		chunks = append(chunks, newChunk(text[from:to], seg, start, s.addStart))
	}
	return chunks, nil
}

// distances 为每个句子构造窗口并一次性向量化，返回相邻窗口的余弦距离
func (s *semanticChunker) distances(ctx context.Context, index int, text string, units []span) ([]float64, error) {
	windows := make([]string, len(units))
	for i := range units {
		lo, hi := i-s.buffer, i+s.buffer
		if lo < 0 {
			lo = 0
		}
		if hi > len(units)-1 {
			hi = len(units) - 1
		}
		windows[i] = text[units[lo].start:units[hi].end]
	}

	// 相同窗口只向量化一次
	unique := make([]string, 0, len(windows))
	position := make(map[string]int, len(windows))
	for _, w := range windows {
		if _, ok := position[w]; !ok {
			position[w] = len(unique)
			unique = append(unique, w)
		}
	}

	vectors, err := s.embedder.EmbedBatch(ctx, unique)
	if err != nil {
		return nil, &EmbeddingFailureError{SegmentIndex: index, Err: err}
	}
	if err := checkVectors(vectors, len(unique)); err != nil {
		return nil, &EmbeddingFailureError{SegmentIndex: index, Err: err}
	}

	distances := make([]float64, len(windows)-1)
	for i := range distances {
		distances[i] = cosineDistance(vectors[position[windows[i]]], vectors[position[windows[i+1]]])
	}
	return distances, nil
}

// checkVectors 校验返回数量与维度
func checkVectors(vectors [][]float32, want int) error {
	if len(vectors) != want {
		return fmt.Errorf("malformed embedding response: got %d vectors for %d inputs", len(vectors), want)
	}
	dim := -1
	for i, v := range vectors {
		if len(v) == 0 {
			return fmt.Errorf("malformed embedding response: empty vector at %d", i)
		}
		if dim >= 0 && len(v) != dim {
			return fmt.Errorf("malformed embedding response: dimension %d at %d, expected %d", len(v), i, dim)
		}
		dim = len(v)
	}
	return nil
}

// semanticRun 单个文本段的切分状态，区间以句子下标表示且两端闭合
type semanticRun struct {
	s         *semanticChunker
	text      string
	units     []span
	distances []float64
	threshold float64
	// lengths[i][k] 为句子 i..i+k 的长度，只记录到首次超过 maxSize 为止
	lengths [][]int
}

func (r *semanticRun) length(first, last int) int {
	return r.s.tok.Count(r.text[r.units[first].start:r.units[last].end])
}

// applyMinSize 跳过会产生过短块的断点；末尾过短时并入前一块
func (r *semanticRun) applyMinSize(breakpoints []int) []span {
	var groups []span
	start := 0
	for _, b := range breakpoints {
		if r.length(start, b) < r.s.minSize {
			continue
		}
		groups = append(groups, span{start, b})
		start = b + 1
	}

	last := len(r.units) - 1
	if len(groups) > 0 && r.length(start, last) < r.s.minSize {
		groups[len(groups)-1].end = last
		return groups
	}
	return append(groups, span{start, last})
}

// subdivide 超过 maxSize 的组在内部距离最大处二分，优先选择两侧都不短于 minSize 的位置
func (r *semanticRun) subdivide(first, last int) []span {
	if first == last || r.length(first, last) <= r.s.maxSize {
		return []span{{first, last}}
	}

	best, admissible := -1, -1
	for k := first; k < last; k++ {
		d := r.distances[k]
		if best < 0 || d > r.distances[best] {
			best = k
		}
		if r.length(first, k) >= r.s.minSize && r.length(k+1, last) >= r.s.minSize {
			if admissible < 0 || d > r.distances[admissible] {
				admissible = k
			}
		}
	}
	if admissible >= 0 {
		best = admissible
	}

	return append(r.subdivide(first, best), r.subdivide(best+1, last)...)
}

// fits 句子 i..j 能否单独成块：长度在 [minSize, maxSize] 内，或是超长的单句
func (r *semanticRun) fits(i, j int) bool {
	if j-i >= len(r.lengths[i]) {
		return false
	}
	n := r.lengths[i][j-i]
	return (n >= r.s.minSize && n <= r.s.maxSize) || (i == j && n > r.s.maxSize)
}

// partition 在所有块都满足上下限的前提下切分
// 优先在第一个可用断点处切；其后剩余部分能整体成块时不再切；否则在可达范围内距离最大处切
// 不存在合法划分时返回 nil
func (r *semanticRun) partition() []span {
	n := len(r.units)
	count := r.length
	if _, ok := r.s.tok.(CharTokenizer); ok {
		count = runeCounter(r.text, r.units)
	}
	r.lengths = make([][]int, n)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			l := count(i, j)
			r.lengths[i] = append(r.lengths[i], l)
			if l > r.s.maxSize {
				break
			}
		}
	}

	// feasible[i] 句子 i..n-1 存在合法划分
	feasible := make([]bool, n+1)
	feasible[n] = true
	for i := n - 1; i >= 0; i-- {
		for k := range r.lengths[i] {
			if r.fits(i, i+k) && feasible[i+k+1] {
				feasible[i] = true
				break
			}
		}
	}
	if !feasible[0] {
		return nil
	}

	var groups []span
	for start := 0; start < n; {
		end := -1
		widest := -1
		for k := range r.lengths[start] {
			j := start + k
			if !r.fits(start, j) || !feasible[j+1] {
				continue
			}
			if j == n-1 {
				end = j
				break
			}
			if r.distances[j] > r.threshold {
				widest = j
				break
			}
			if widest < 0 || r.distances[j] >= r.distances[widest] {
				widest = j
			}
		}
		if end < 0 {
			end = widest
		}
		groups = append(groups, span{start, end})
		start = end + 1
	}
	return groups
}

// runeCounter 以句子边界处的rune偏移计算区间长度，与 CharTokenizer.Count 一致
func runeCounter(text string, units []span) func(i, j int) int {
	starts := make([]int, len(units))
	ends := make([]int, len(units))
	pos, n := 0, 0
	for k, u := range units {
		n += utf8.RuneCountInString(text[pos:u.start])
		starts[k] = n
		n += utf8.RuneCountInString(text[u.start:u.end])
		ends[k] = n
		pos = u.end
	}
	return func(i, j int) int {
		return ends[j] - starts[i]
	}
}
