package metrics

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveIngest(t *testing.T) {
	m := New()

	m.ObserveIngest("recursive", "success", 20*time.Millisecond, 3)
	m.ObserveIngest("recursive", "success", 10*time.Millisecond, 2)
	m.ObserveIngest("semantic", "embedding_failure", time.Millisecond, 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.IngestTotal.WithLabelValues("recursive", "success")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.ChunksEmitted.WithLabelValues("recursive")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IngestTotal.WithLabelValues("semantic", "embedding_failure")))
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveIngest("fixed", "success", time.Second, 1)
		m.ObserveSegments("pdf", 2)
		m.IncFallback()
		m.ObservePurge("uploads", 1)
		m.ObserveHTTP("GET", "/api/health", 200, time.Millisecond)
	})
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObservePurge("outputs", 4)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	assert.Contains(t, rec.Body.String(), `doc_ingest_files_purged_total{store="outputs"} 4`)
}
