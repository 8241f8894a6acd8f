package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/fyerfyer/doc-ingest/api/model"
	"github.com/fyerfyer/doc-ingest/internal/chunker"
	"github.com/fyerfyer/doc-ingest/internal/document"
)

// HealthHandler 健康检查
type HealthHandler struct {
	embedder string
}

// NewHealthHandler embedder 为语义切分使用的模型名，未配置时传空串
func NewHealthHandler(embedder string) *HealthHandler {
	return &HealthHandler{embedder: embedder}
}

// Health GET /api/health
func (h *HealthHandler) Health(c *gin.Context) {
	strategies := []string{string(chunker.StrategyFixed), string(chunker.StrategyRecursive)}
	if h.embedder != "" {
		strategies = append(strategies, string(chunker.StrategySemantic))
	}

	c.JSON(http.StatusOK, model.NewSuccessResponse(model.HealthResponse{
		Status:     "ok",
		Strategies: strategies,
		Embedder:   h.embedder,
		Formats:    document.SupportedFormats(),
	}))
}
