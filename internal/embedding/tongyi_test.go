package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dashScopeHandler(t *testing.T, failures int32, status int) (http.HandlerFunc, *atomic.Int32) {
	var calls atomic.Int32
	return func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if n <= failures {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"message":"temporarily unavailable"}`))
			return
		}

		var req dashScopeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		var resp dashScopeResponse
		// 逆序返回，客户端需按 text_index 归位
		for i := len(req.Input.Texts) - 1; i >= 0; i-- {
			resp.Output.Embeddings = append(resp.Output.Embeddings, struct {
				Embedding []float32 `json:"embedding"`
				TextIndex int       `json:"text_index"`
			}{Embedding: []float32{float32(i), 1}, TextIndex: i})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}, &calls
}

func newTestTongyi(t *testing.T, url string) Client {
	c, err := NewTongyiClient(
		WithAPIKey("test-key"),
		WithBaseURL(url),
		WithMaxRetries(2),
		WithTimeout(5*time.Second),
	)
	require.NoError(t, err)
	return c
}

func TestTongyiEmbedBatch(t *testing.T) {
	handler, calls := dashScopeHandler(t, 0, 0)
	srv := httptest.NewServer(handler)
	defer srv.Close()

	c := newTestTongyi(t, srv.URL)
	vecs, err := c.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{0, 1}, {1, 1}, {2, 1}}, vecs)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "tongyi/text-embedding-v1", c.Name())
}

func TestTongyiRetriesServerErrors(t *testing.T) {
	handler, calls := dashScopeHandler(t, 2, http.StatusBadGateway)
	srv := httptest.NewServer(handler)
	defer srv.Close()

	vecs, err := newTestTongyi(t, srv.URL).EmbedBatch(context.Background(), []string{"x"})
	require.NoError(t, err)
	assert.Len(t, vecs, 1)
	assert.Equal(t, int32(3), calls.Load(), "两次失败后第三次成功")
}

func TestTongyiDoesNotRetryAuthErrors(t *testing.T) {
	handler, calls := dashScopeHandler(t, 10, http.StatusUnauthorized)
	srv := httptest.NewServer(handler)
	defer srv.Close()

	_, err := newTestTongyi(t, srv.URL).EmbedBatch(context.Background(), []string{"x"})
	require.Error(t, err)
	var ee EmbeddingError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, ErrCodeInvalidAPIKey, ee.Code)
	assert.Equal(t, int32(1), calls.Load())
}

func TestTongyiMissingVector(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"output":{"embeddings":[{"embedding":[1,2],"text_index":0}]}}`))
	}))
	defer srv.Close()

	_, err := newTestTongyi(t, srv.URL).EmbedBatch(context.Background(), []string{"a", "b"})
	var ee EmbeddingError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, ErrCodeMalformed, ee.Code)
}

func TestTongyiBatchLimit(t *testing.T) {
	c := newTestTongyi(t, "http://127.0.0.1:1")
	texts := make([]string, 26)
	_, err := c.EmbedBatch(context.Background(), texts)
	var ee EmbeddingError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, ErrCodeInvalidRequest, ee.Code)
}
