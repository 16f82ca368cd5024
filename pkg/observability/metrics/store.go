package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// StoreMetrics records latency and volume of document store operations.
// Labels: collection, operation, outcome
type StoreMetrics struct {
	duration *prometheus.HistogramVec
	total    *prometheus.CounterVec
}

// NewStoreMetrics builds unregistered store collectors; pass Collectors to NewRegistry.
func NewStoreMetrics() *StoreMetrics {
	labels := []string{"collection", "operation", "outcome"}
	return &StoreMetrics{
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "store_query_duration_seconds",
				Help:    "Document store operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			labels,
		),
		total: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "store_queries_total",
				Help: "Total number of document store operations",
			},
			labels,
		),
	}
}

// Collectors returns the collectors to register.
func (m *StoreMetrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{m.duration, m.total}
}

// Observe records one operation. A nil receiver is a no-op.
func (m *StoreMetrics) Observe(collection, operation string, err error, d time.Duration) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeError
	}
	m.duration.WithLabelValues(collection, operation, outcome).Observe(d.Seconds())
	m.total.WithLabelValues(collection, operation, outcome).Inc()
}
