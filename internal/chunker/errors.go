package chunker

import (
	"fmt"

	"github.com/fyerfyer/doc-ingest/internal/models"
)

// ConfigError 切分参数非法
type ConfigError struct {
	Field  string // 出错的配置项
	Reason string // 原因
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid chunker configuration: %s %s", e.Field, e.Reason)
}

// Is 与 models.ErrInvalidConfiguration 等价
func (e *ConfigError) Is(target error) bool {
	return target == models.ErrInvalidConfiguration
}

func newConfigError(field, format string, args ...interface{}) *ConfigError {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// EmbeddingFailureError 某个文本段的向量化失败，该段的语义切分被中止
type EmbeddingFailureError struct {
	SegmentIndex int
	Err          error
}

func (e *EmbeddingFailureError) Error() string {
	return fmt.Sprintf("embedding failed for segment %d: %v", e.SegmentIndex, e.Err)
}

func (e *EmbeddingFailureError) Unwrap() error {
	return e.Err
}

// Is 与 models.ErrEmbeddingFailure 等价
func (e *EmbeddingFailureError) Is(target error) bool {
	return target == models.ErrEmbeddingFailure
}
