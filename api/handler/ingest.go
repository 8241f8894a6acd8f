package handler

import (
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/fyerfyer/doc-ingest/api/middleware"
	"github.com/fyerfyer/doc-ingest/api/model"
	"github.com/fyerfyer/doc-ingest/config"
	"github.com/fyerfyer/doc-ingest/internal/document"
	"github.com/fyerfyer/doc-ingest/internal/pipeline"
	"github.com/fyerfyer/doc-ingest/pkg/storage"
)

// IngestHandler 处理文档切分相关的API请求
type IngestHandler struct {
	pipeline      *pipeline.Pipeline    // 切分流水线
	uploads       *storage.LocalStorage // 上传文件暂存区
	outputs       storage.Storage       // JSONL产物存储
	chunking      config.ChunkerConfig  // 默认切分参数
	maxUploadSize int64                 // 上传大小上限
	logger        *logrus.Logger        // 日志记录器
}

// NewIngestHandler 创建新的切分处理器
func NewIngestHandler(
	p *pipeline.Pipeline,
	uploads *storage.LocalStorage,
	outputs storage.Storage,
	chunking config.ChunkerConfig,
	maxUploadSize int64,
) *IngestHandler {
	return &IngestHandler{
		pipeline:      p,
		uploads:       uploads,
		outputs:       outputs,
		chunking:      chunking,
		maxUploadSize: maxUploadSize,
		logger:        middleware.GetLogger(),
	}
}

// Ingest 上传文档并同步返回JSONL产物
// POST /api/ingest
func (h *IngestHandler) Ingest(c *gin.Context) {
	var req model.IngestRequest
	if err := c.ShouldBind(&req); err != nil {
		h.logger.WithFields(logrus.Fields{
			"error": err.Error(),
		}).Warn("Invalid ingest request")
		middleware.HandleError(c, middleware.NewValidationError("invalid request parameters", err.Error()))
		return
	}

	filename := filepath.Base(req.File.Filename)
	if err := document.CheckSupported(filename); err != nil {
		middleware.HandleError(c, err)
		return
	}
	if h.maxUploadSize > 0 && req.File.Size > h.maxUploadSize {
		middleware.HandleError(c, middleware.NewTooLargeError(
			"file exceeds upload limit of "+strconv.FormatInt(h.maxUploadSize, 10)+" bytes"))
		return
	}

	// 先校验参数，避免无效请求占用暂存区
	chunkCfg, err := pipeline.ChunkerSettings(h.chunking, req.Strategy, overridesOf(req))
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	file, err := req.File.Open()
	if err != nil {
		middleware.HandleError(c, middleware.NewInternalError("failed to open uploaded file", err.Error()))
		return
	}
	staged, err := h.uploads.Save(file, filename)
	file.Close()
	if err != nil {
		middleware.HandleError(c, middleware.NewInternalError("failed to stage uploaded file", err.Error()))
		return
	}

	log := h.logger.WithFields(logrus.Fields{
		"staged_id": staged.ID,
		"filename":  filename,
		"size":      staged.Size,
		"strategy":  chunkCfg.Strategy,
	})
	log.Info("File staged")

	artifactName := filename + ".jsonl"
	artifact, err := h.pipeline.Ingest(c.Request.Context(), pipeline.Request{
		Path:   filepath.Join(h.uploads.BasePath(), staged.Path),
		Config: chunkCfg,
	}, h.outputs, artifactName)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}

	log.WithFields(logrus.Fields{
		"artifact_id": artifact.Info.ID,
		"chunks":      len(artifact.Result.Records),
	}).Info("Artifact created")

	c.Header(model.HeaderArtifactID, artifact.Info.ID)
	c.Header(model.HeaderChunkCount, strconv.Itoa(len(artifact.Result.Records)))
	c.Header(model.HeaderStrategy, string(artifact.Result.Strategy))
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": artifactName}))
	c.Data(http.StatusOK, model.ContentTypeJSONL, artifact.Data)
}

// GetArtifact 重新下载已生成的产物
// GET /api/artifacts/:id
func (h *IngestHandler) GetArtifact(c *gin.Context) {
	var req model.ArtifactRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleError(c, middleware.NewValidationError("invalid artifact id", err.Error()))
		return
	}

	reader, err := h.outputs.Get(req.ID)
	if err != nil {
		middleware.HandleError(c, err)
		return
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		middleware.HandleError(c, middleware.NewInternalError("failed to read artifact", err.Error()))
		return
	}

	c.Header(model.HeaderArtifactID, req.ID)
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": req.ID + ".jsonl"}))
	c.Data(http.StatusOK, model.ContentTypeJSONL, data)
}

func overridesOf(req model.IngestRequest) pipeline.Overrides {
	return pipeline.Overrides{
		LengthUnit:      req.LengthUnit,
		ChunkSize:       req.ChunkSize,
		ChunkOverlap:    req.ChunkOverlap,
		MinChunkSize:    req.MinChunkSize,
		MaxChunkSize:    req.MaxChunkSize,
		ThresholdType:   req.ThresholdType,
		ThresholdAmount: req.ThresholdAmount,
		BufferSize:      req.BufferSize,
		AddStartIndex:   req.AddStartIndex,
	}
}
