package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// IndexMetrics covers the reward history index.
type IndexMetrics struct {
	ingested *prometheus.CounterVec
	failures *prometheus.CounterVec
	exported prometheus.Counter
	queries  *prometheus.HistogramVec
}

var (
	indexOnce     sync.Once
	indexRegistry *IndexMetrics
)

func Index() *IndexMetrics {
	indexOnce.Do(func() {
		indexRegistry = &IndexMetrics{
			ingested: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "dgenerate_index_ingested_total",
				Help: "Count of indexed records by kind.",
			}, []string{"kind"}),
			failures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "dgenerate_index_failures_total",
				Help: "Count of indexing failures by stage.",
			}, []string{"stage"}),
			exported: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "dgenerate_index_exported_rows_total",
				Help: "Rows written by history exports.",
			}),
			queries: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "dgenerate_index_query_duration_seconds",
				Help:    "Latency of index queries.",
				Buckets: prometheus.DefBuckets,
			}, []string{"query"}),
		}
		prometheus.MustRegister(
			indexRegistry.ingested,
			indexRegistry.failures,
			indexRegistry.exported,
			indexRegistry.queries,
		)
	})
	return indexRegistry
}

func (m *IndexMetrics) ObserveIngested(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	m.ingested.WithLabelValues(kind).Add(float64(n))
}

func (m *IndexMetrics) IncFailure(stage string) {
	if m == nil {
		return
	}
	if stage == "" {
		stage = "unknown"
	}
	m.failures.WithLabelValues(stage).Inc()
}

func (m *IndexMetrics) AddExported(rows int) {
	if m == nil || rows <= 0 {
		return
	}
	m.exported.Add(float64(rows))
}

func (m *IndexMetrics) ObserveQuery(query string, d time.Duration) {
	if m == nil {
		return
	}
	m.queries.WithLabelValues(query).Observe(d.Seconds())
}
