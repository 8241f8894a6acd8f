package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fyerfyer/doc-ingest/api/handler"
	"github.com/fyerfyer/doc-ingest/api/middleware"
	"github.com/fyerfyer/doc-ingest/api/model"
	"github.com/fyerfyer/doc-ingest/config"
	"github.com/fyerfyer/doc-ingest/internal/chunker"
	"github.com/fyerfyer/doc-ingest/internal/embedding"
	"github.com/fyerfyer/doc-ingest/internal/metrics"
	"github.com/fyerfyer/doc-ingest/internal/pipeline"
	"github.com/fyerfyer/doc-ingest/pkg/storage"
)

// 测试环境配置
type testEnv struct {
	Router  *gin.Engine
	Uploads *storage.LocalStorage
	Outputs *storage.LocalStorage
}

func testChunking() config.ChunkerConfig {
	return config.ChunkerConfig{
		Strategy:   "recursive",
		LengthUnit: "chars",
		Fixed:      config.WindowConfig{ChunkSize: 800, ChunkOverlap: 100},
		Recursive:  config.WindowConfig{ChunkSize: 900, ChunkOverlap: 150},
		Semantic: config.SemanticConfig{
			MinChunkSize:            0,
			MaxChunkSize:            800,
			BreakpointThresholdType: "percent",
			BufferSize:              1,
		},
	}
}

// 创建测试环境
func setupTestEnv(t *testing.T, embedder chunker.Embedder, opts ...pipeline.Option) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetOutput(bytes.NewBuffer(nil))
	middleware.SetLogger(logger)

	uploads, err := storage.NewLocalStorage(storage.LocalConfig{Path: t.TempDir()})
	require.NoError(t, err)
	outputs, err := storage.NewLocalStorage(storage.LocalConfig{Path: t.TempDir()})
	require.NoError(t, err)

	m := metrics.New()
	opts = append(opts, pipeline.WithLogger(logger), pipeline.WithMetrics(m))
	name := ""
	if embedder != nil {
		opts = append(opts, pipeline.WithEmbedder(embedder))
		name = "test-embedder"
	}

	router := SetupRouter(
		handler.NewIngestHandler(pipeline.New(opts...), uploads, outputs, testChunking(), 1<<20),
		handler.NewHealthHandler(name),
		m,
	)
	return &testEnv{Router: router, Uploads: uploads, Outputs: outputs}
}

// upload 构造 multipart 请求并执行
func (e *testEnv) upload(t *testing.T, filename, content string, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/ingest", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	e.Router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) get(path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func countFiles(t *testing.T, s storage.Storage) int {
	t.Helper()
	files, err := s.List()
	require.NoError(t, err)
	return len(files)
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) model.Response {
	t.Helper()
	var resp model.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

func sampleText() string {
	var paragraphs []string
	for i := 0; i < 3; i++ {
		paragraphs = append(paragraphs, strings.TrimSpace(strings.Repeat(
			fmt.Sprintf("Paragraph %d explains one more detail of the ingestion service. ", i), 8)))
	}
	return strings.Join(paragraphs, "\n\n")
}

func TestIngestReturnsJSONL(t *testing.T) {
	env := setupTestEnv(t, nil)

	rec := env.upload(t, "notes.txt", sampleText(), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, model.ContentTypeJSONL, rec.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename=notes.txt.jsonl`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "recursive", rec.Header().Get(model.HeaderStrategy))
	assert.NotEmpty(t, rec.Header().Get("X-Trace-ID"))
	artifactID := rec.Header().Get(model.HeaderArtifactID)
	require.NotEmpty(t, artifactID)

	lines := strings.Split(strings.TrimSuffix(rec.Body.String(), "\n"), "\n")
	assert.Equal(t, rec.Header().Get(model.HeaderChunkCount), fmt.Sprint(len(lines)))
	for i, line := range lines {
		var rec struct {
			ID       int                    `json:"id"`
			Content  string                 `json:"content"`
			Metadata map[string]interface{} `json:"metadata"`
		}
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		assert.Equal(t, i, rec.ID)
		assert.True(t, strings.HasPrefix(line, fmt.Sprintf(`{"id":%d,"content":`, i)), "字段顺序应固定")
		assert.Contains(t, rec.Metadata, "source")
	}

	assert.Equal(t, 1, countFiles(t, env.Uploads), "上传文件应保留在暂存区")
	assert.Equal(t, 1, countFiles(t, env.Outputs))

	t.Run("download artifact", func(t *testing.T) {
		again := env.get("/api/artifacts/" + artifactID)
		require.Equal(t, http.StatusOK, again.Code)
		assert.Equal(t, rec.Body.String(), again.Body.String())
	})
}

func TestIngestFixedWithOverrides(t *testing.T) {
	env := setupTestEnv(t, nil)

	rec := env.upload(t, "notes.txt", strings.Repeat("a", 250), map[string]string{
		"strategy":        "fixed",
		"chunk_size":      "100",
		"chunk_overlap":   "20",
		"add_start_index": "true",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "fixed", rec.Header().Get(model.HeaderStrategy))

	lines := strings.Split(strings.TrimSuffix(rec.Body.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], `"start_index":80`)
}

func TestIngestErrors(t *testing.T) {
	t.Run("unsupported format", func(t *testing.T) {
		env := setupTestEnv(t, nil)
		rec := env.upload(t, "slides.pptx", "binary", nil)

		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
		resp := decodeError(t, rec)
		assert.Equal(t, http.StatusUnsupportedMediaType, resp.Code)
		assert.NotEmpty(t, resp.TraceID)
		assert.Equal(t, 0, countFiles(t, env.Uploads))
		assert.Equal(t, 0, countFiles(t, env.Outputs), "不应生成产物")
	})

	t.Run("missing file", func(t *testing.T) {
		env := setupTestEnv(t, nil)
		req := httptest.NewRequest(http.MethodPost, "/api/ingest", strings.NewReader(""))
		req.Header.Set("Content-Type", "multipart/form-data; boundary=x")
		rec := httptest.NewRecorder()
		env.Router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("invalid configuration", func(t *testing.T) {
		env := setupTestEnv(t, nil)
		rec := env.upload(t, "notes.txt", sampleText(), map[string]string{
			"chunk_size":    "100",
			"chunk_overlap": "100",
		})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, decodeError(t, rec).Message, "chunk_overlap")
		assert.Equal(t, 0, countFiles(t, env.Outputs))
	})

	t.Run("semantic without embedder", func(t *testing.T) {
		env := setupTestEnv(t, nil)
		rec := env.upload(t, "notes.txt", sampleText(), map[string]string{"strategy": "semantic"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("embedding failure", func(t *testing.T) {
		client := embedding.NewMockClient(t)
		client.On("EmbedBatch", mock.Anything, mock.Anything).
			Return(nil, embedding.NewEmbeddingError(embedding.ErrCodeServerError, "upstream 503")).Once()

		env := setupTestEnv(t, client)
		rec := env.upload(t, "notes.txt", sampleText(), map[string]string{"strategy": "semantic"})
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Equal(t, 0, countFiles(t, env.Outputs), "失败时不应生成产物")
	})

	t.Run("empty input rejected", func(t *testing.T) {
		env := setupTestEnv(t, nil, pipeline.WithRejectEmpty(true))
		rec := env.upload(t, "blank.txt", "   \n\n ", nil)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("empty input allowed", func(t *testing.T) {
		env := setupTestEnv(t, nil)
		rec := env.upload(t, "blank.txt", "   \n\n ", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Body.String())
		assert.Equal(t, "0", rec.Header().Get(model.HeaderChunkCount))
	})

	t.Run("too large", func(t *testing.T) {
		env := setupTestEnv(t, nil)
		rec := env.upload(t, "big.txt", strings.Repeat("x", 2<<20), nil)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})
}

func TestIngestSemantic(t *testing.T) {
	client, err := embedding.NewFakeClient()
	require.NoError(t, err)
	env := setupTestEnv(t, client)

	text := "Cats purr when they are content. Cats sleep most of the day. " +
		"Stock markets fell sharply on Monday. Investors sold bank shares quickly."
	rec := env.upload(t, "mixed.txt", text, map[string]string{"strategy": "semantic"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "semantic", rec.Header().Get(model.HeaderStrategy))
	assert.NotEmpty(t, rec.Body.String())
}

func TestGetArtifactErrors(t *testing.T) {
	env := setupTestEnv(t, nil)

	rec := env.get("/api/artifacts/" + uuid.NewString())
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.get("/api/artifacts/not-a-uuid")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	client, err := embedding.NewFakeClient()
	require.NoError(t, err)
	env := setupTestEnv(t, client)

	rec := env.get("/api/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data model.HealthResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Data.Status)
	assert.Equal(t, []string{"fixed", "recursive", "semantic"}, resp.Data.Strategies)
	assert.ElementsMatch(t, []string{"pdf", "docx", "txt", "csv", "xls", "xlsx"}, resp.Data.Formats)

	env.upload(t, "notes.txt", sampleText(), nil)
	rec = env.get("/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `doc_ingest_ingestions_total{result="success",strategy="recursive"} 1`)
	assert.Contains(t, rec.Body.String(), `doc_ingest_http_requests_total{method="GET",route="/api/health",status="200"} 1`)
}

func TestAccessLogCarriesArtifact(t *testing.T) {
	env := setupTestEnv(t, nil)

	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&logrus.JSONFormatter{})
	middleware.SetLogger(logger)

	rec := env.upload(t, "notes.txt", sampleText(), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	logged := buf.String()
	assert.Contains(t, logged, `"artifact_id":"`+rec.Header().Get(model.HeaderArtifactID)+`"`)
	assert.Contains(t, logged, `"chunks":"`+rec.Header().Get(model.HeaderChunkCount)+`"`)
	assert.Contains(t, logged, `"strategy":"recursive"`)
	assert.Contains(t, logged, `"trace_id"`)
}

func TestCorsPreflight(t *testing.T) {
	env := setupTestEnv(t, nil)

	rec := httptest.NewRecorder()
	env.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/ingest", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Expose-Headers"), "X-Artifact-ID")
	assert.Equal(t, 0, countFiles(t, env.Uploads))
}

func TestFromError(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, middleware.FromError(errors.New("disk full")).Code)
	assert.Equal(t, http.StatusNotFound, middleware.FromError(storage.ErrNotFound).Code)
}
