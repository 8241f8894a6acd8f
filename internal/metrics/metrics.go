// Package metrics 提供文档切分服务的 Prometheus 指标
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "doc_ingest"

// Metrics 服务指标集合
// 所有方法在接收者为 nil 时不做任何事
type Metrics struct {
	registry *prometheus.Registry

	IngestTotal        *prometheus.CounterVec
	IngestDuration     *prometheus.HistogramVec
	ChunksEmitted      *prometheus.CounterVec
	SegmentsExtracted  *prometheus.CounterVec
	EmbeddingFallbacks prometheus.Counter
	FilesPurged        *prometheus.CounterVec
	HTTPRequests       *prometheus.CounterVec
	HTTPDuration       *prometheus.HistogramVec
}

// New 创建独立注册表并注册全部指标
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		IngestTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingestions_total",
			Help:      "Total number of ingestion runs by strategy and result",
		}, []string{"strategy", "result"}),
		IngestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingestion_duration_seconds",
			Help:      "Duration of ingestion runs in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 14), // 5ms to ~40s
		}, []string{"strategy"}),
		ChunksEmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_emitted_total",
			Help:      "Total number of chunk records written",
		}, []string{"strategy"}),
		SegmentsExtracted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_extracted_total",
			Help:      "Total number of segments produced by extraction",
		}, []string{"format"}),
		EmbeddingFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_fallbacks_total",
			Help:      "Segments re-split recursively after an embedding failure",
		}),
		FilesPurged: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_purged_total",
			Help:      "Files removed by the retention janitor",
		}, []string{"store"}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status",
		}, []string{"method", "route", "status"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Registry 返回底层注册表
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler 返回 /metrics 处理器
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveIngest 记录一次流水线运行
func (m *Metrics) ObserveIngest(strategy, result string, elapsed time.Duration, chunks int) {
	if m == nil {
		return
	}
	m.IngestTotal.WithLabelValues(strategy, result).Inc()
	m.IngestDuration.WithLabelValues(strategy).Observe(elapsed.Seconds())
	if chunks > 0 {
		m.ChunksEmitted.WithLabelValues(strategy).Add(float64(chunks))
	}
}

// ObserveSegments 记录抽取出的文本段数
func (m *Metrics) ObserveSegments(format string, n int) {
	if m == nil {
		return
	}
	m.SegmentsExtracted.WithLabelValues(format).Add(float64(n))
}

// IncFallback 语义切分回退为递归切分
func (m *Metrics) IncFallback() {
	if m == nil {
		return
	}
	m.EmbeddingFallbacks.Inc()
}

// ObservePurge 记录清理数量
func (m *Metrics) ObservePurge(store string, removed int) {
	if m == nil {
		return
	}
	m.FilesPurged.WithLabelValues(store).Add(float64(removed))
}

// ObserveHTTP 记录一次HTTP请求
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
