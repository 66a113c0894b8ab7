// Package metrics tracks crawl counters as Prometheus collectors on a private
// registry, alongside the run health status reported by /health.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "newsai"

type Metrics struct {
	registry *prometheus.Registry

	pagesFetched  *prometheus.CounterVec
	extractions   *prometheus.CounterVec
	summaries     *prometheus.CounterVec
	summaryTokens *prometheus.CounterVec
	clusters      prometheus.Gauge
	storeSize     *prometheus.GaugeVec
	runDuration   prometheus.Histogram
	runsTotal     *prometheus.CounterVec

	mu sync.RWMutex

	// Timings
	LastProcessingTime    time.Duration
	AverageProcessingTime time.Duration
	TotalProcessingTime   time.Duration
	ProcessingCount       int64

	// Status
	LastRunTime   time.Time
	LastErrorTime time.Time
	LastError     string
	IsHealthy     bool
}

var Global = New()

// New creates a Metrics with its own registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry:  reg,
		IsHealthy: true,
		pagesFetched: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_fetched_total",
			Help:      "Fetched documents by source and result",
		}, []string{"source", "result"}),
		extractions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractions_total",
			Help:      "Article extraction outcomes by source",
		}, []string{"source", "outcome"}),
		summaries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summaries_total",
			Help:      "Summarization requests by result",
		}, []string{"result"}),
		summaryTokens: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "summary_tokens_total",
			Help:      "Tokens exchanged with the summarization backend",
		}, []string{"direction"}),
		clusters: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "clusters",
			Help:      "Clusters found by the last grouping pass",
		}),
		storeSize: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "store_records",
			Help:      "Records per persisted store",
		}, []string{"store"}),
		runDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of a full pipeline run",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		runsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Pipeline runs by result",
		}, []string{"result"}),
	}
}

// The observe methods accept a nil receiver so components can run without metrics.

func (m *Metrics) ObservePage(source string, ok bool) {
	if m == nil {
		return
	}
	m.pagesFetched.WithLabelValues(source, result(ok)).Inc()
}

func (m *Metrics) ObserveExtraction(source, outcome string) {
	if m == nil {
		return
	}
	m.extractions.WithLabelValues(source, outcome).Inc()
}

func (m *Metrics) ObserveSummary(ok bool, sent, received int) {
	if m == nil {
		return
	}
	m.summaries.WithLabelValues(result(ok)).Inc()
	if ok {
		m.summaryTokens.WithLabelValues("sent").Add(float64(sent))
		m.summaryTokens.WithLabelValues("received").Add(float64(received))
	}
}

func (m *Metrics) SetClusters(n int) {
	if m == nil {
		return
	}
	m.clusters.Set(float64(n))
}

func (m *Metrics) SetStoreSizes(articles, discarded, archived int) {
	if m == nil {
		return
	}
	m.storeSize.WithLabelValues("articles").Set(float64(articles))
	m.storeSize.WithLabelValues("discarded").Set(float64(discarded))
	m.storeSize.WithLabelValues("archived").Set(float64(archived))
}

func (m *Metrics) RecordProcessingTime(duration time.Duration) {
	if m == nil {
		return
	}
	m.runDuration.Observe(duration.Seconds())

	m.mu.Lock()
	defer m.mu.Unlock()

	m.LastProcessingTime = duration
	m.TotalProcessingTime += duration
	m.ProcessingCount++
	m.AverageProcessingTime = m.TotalProcessingTime / time.Duration(m.ProcessingCount)
}

func (m *Metrics) SetLastRun() {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues("ok").Inc()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastRunTime = time.Now()
	m.IsHealthy = true
}

func (m *Metrics) SetError(err string) {
	if m == nil {
		return
	}
	m.runsTotal.WithLabelValues("error").Inc()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastError = err
	m.LastErrorTime = time.Now()
	m.IsHealthy = false
}

func (m *Metrics) Healthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.IsHealthy
}

func (m *Metrics) GetStats() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]any{
		"last_processing_time_ms":    m.LastProcessingTime.Milliseconds(),
		"average_processing_time_ms": m.AverageProcessingTime.Milliseconds(),
		"runs":                       m.ProcessingCount,
		"last_run_time":              formatTime(m.LastRunTime),
		"last_error_time":            formatTime(m.LastErrorTime),
		"last_error":                 m.LastError,
		"is_healthy":                 m.IsHealthy,
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
