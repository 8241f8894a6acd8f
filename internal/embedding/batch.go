package embedding

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// BatchProcessor 把一次大批量请求拆成提供方允许的小批次并发执行
// 结果顺序与输入一致，任一批次失败则整体失败
type BatchProcessor struct {
	client     Client
	batchSize  int
	maxWorkers int
}

// batchLimiter 提供方声明的单次请求上限
type batchLimiter interface {
	MaxBatchSize() int
}

// NewBatchProcessor 创建新的批处理器
func NewBatchProcessor(client Client, batchSize int, maxWorkers int) *BatchProcessor {
	if batchSize <= 0 {
		batchSize = 16
	}
	if l, ok := client.(batchLimiter); ok && l.MaxBatchSize() < batchSize {
		batchSize = l.MaxBatchSize()
	}
	if maxWorkers <= 0 {
		maxWorkers = 4
	}

	return &BatchProcessor{
		client:     client,
		batchSize:  batchSize,
		maxWorkers: maxWorkers,
	}
}

// Name 返回底层模型名称
func (p *BatchProcessor) Name() string {
	return p.client.Name()
}

// Embed 单条文本直接交给底层客户端
func (p *BatchProcessor) Embed(ctx context.Context, text string) ([]float32, error) {
	return p.client.Embed(ctx, text)
}

// EmbedBatch 分批并发处理
func (p *BatchProcessor) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	batches := splitIntoBatches(texts, p.batchSize)
	results := make([][][]float32, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.maxWorkers)
	for i, batch := range batches {
		g.Go(func() error {
			vectors, err := p.client.EmbedBatch(gctx, batch)
			if err != nil {
				return fmt.Errorf("batch %d: %w", i, err)
			}
			if len(vectors) != len(batch) {
				return NewEmbeddingError(ErrCodeMalformed,
					fmt.Sprintf("batch %d: got %d vectors for %d texts", i, len(vectors), len(batch)))
			}
			results[i] = vectors
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	all := make([][]float32, 0, len(texts))
	for _, r := range results {
		all = append(all, r...)
	}
	return all, nil
}

// splitIntoBatches 将文本列表分割成多个批次
func splitIntoBatches(texts []string, batchSize int) [][]string {
	if batchSize <= 0 {
		batchSize = 1
	}

	batches := make([][]string, 0, (len(texts)+batchSize-1)/batchSize)
	for i := 0; i < len(texts); i += batchSize {
		end := i + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batches = append(batches, texts[i:end])
	}
	return batches
}
