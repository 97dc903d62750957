package observability

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type moduleMetrics struct {
	requests  *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	runtimeMetricsOnce sync.Once
	runtimeRegistry    *RuntimeMetrics
)

// ModuleMetrics returns the lazily-initialised registry recording JSON-RPC
// module activity.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "dgenerate",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Total JSON-RPC requests segmented by module and method.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "dgenerate",
				Subsystem: "rpc",
				Name:      "errors_total",
				Help:      "Total JSON-RPC errors segmented by module, method and error code.",
			}, []string{"module", "method", "code"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "dgenerate",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "dgenerate",
				Subsystem: "rpc",
				Name:      "throttles_total",
				Help:      "Count of requests rejected by rate limiting or authentication.",
			}, []string{"module", "reason"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
			moduleRegistry.throttles,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of a module request. code is the JSON-RPC error
// code, zero on success.
func (m *moduleMetrics) Observe(module, method string, code int, duration time.Duration) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if code != 0 {
		outcome = "error"
		m.errors.WithLabelValues(module, method, fmt.Sprintf("%d", code)).Inc()
	}
	m.requests.WithLabelValues(module, method, outcome).Inc()
	m.latency.WithLabelValues(module, method).Observe(duration.Seconds())
}

// RecordThrottle increments the throttle counter. Reasons should be stable
// strings such as "rate_limit" or "unauthenticated".
func (m *moduleMetrics) RecordThrottle(module, reason string) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(module, reason).Inc()
}

// RuntimeMetrics tracks transaction execution and reward emission.
type RuntimeMetrics struct {
	transactions  *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	minted        prometheus.Counter
	halvings      prometheus.Counter
	currentReward *prometheus.GaugeVec
	height        prometheus.Gauge
}

// Runtime returns the singleton runtime metrics registry.
func Runtime() *RuntimeMetrics {
	runtimeMetricsOnce.Do(func() {
		runtimeRegistry = &RuntimeMetrics{
			transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "dgenerate",
				Subsystem: "runtime",
				Name:      "transactions_total",
				Help:      "Executed transactions segmented by type and outcome.",
			}, []string{"type", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "dgenerate",
				Subsystem: "runtime",
				Name:      "transaction_duration_seconds",
				Help:      "Execution latency including commit.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"type"}),
			minted: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "dgenerate",
				Subsystem: "reward",
				Name:      "minted_total",
				Help:      "Tokens paid out by rewardUser.",
			}),
			halvings: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "dgenerate",
				Subsystem: "reward",
				Name:      "halvings_total",
				Help:      "Number of halvings applied across all ledgers.",
			}),
			currentReward: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "dgenerate",
				Subsystem: "reward",
				Name:      "current_reward",
				Help:      "Reward the next payout of each ledger will pay.",
			}, []string{"ledger"}),
			height: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "dgenerate",
				Subsystem: "runtime",
				Name:      "height",
				Help:      "Number of committed transactions.",
			}),
		}
		prometheus.MustRegister(
			runtimeRegistry.transactions,
			runtimeRegistry.latency,
			runtimeRegistry.minted,
			runtimeRegistry.halvings,
			runtimeRegistry.currentReward,
			runtimeRegistry.height,
		)
	})
	return runtimeRegistry
}

// ObserveTransaction records one execution. A nil err counts as committed.
func (m *RuntimeMetrics) ObserveTransaction(txType string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "committed"
	if err != nil {
		outcome = "rejected"
	}
	m.transactions.WithLabelValues(txType, outcome).Inc()
	m.latency.WithLabelValues(txType).Observe(duration.Seconds())
}

// RecordReward tracks a payout and the ledger's next reward.
func (m *RuntimeMetrics) RecordReward(ledger string, amount, next uint64, halved bool) {
	if m == nil {
		return
	}
	m.minted.Add(float64(amount))
	if halved {
		m.halvings.Inc()
	}
	m.currentReward.WithLabelValues(ledger).Set(float64(next))
}

// SetCurrentReward publishes a ledger's reward without a payout.
func (m *RuntimeMetrics) SetCurrentReward(ledger string, reward uint64) {
	if m == nil {
		return
	}
	m.currentReward.WithLabelValues(ledger).Set(float64(reward))
}

// SetHeight publishes the committed transaction count.
func (m *RuntimeMetrics) SetHeight(height uint64) {
	if m == nil {
		return
	}
	m.height.Set(float64(height))
}
