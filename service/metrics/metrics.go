package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics.
type Metrics struct {
	// Solana RPC Metrics
	rpcCallsTotal    *prometheus.CounterVec
	rpcCallDuration  *prometheus.HistogramVec
	rpcRateLimitHits *prometheus.CounterVec
	rpcRetries       *prometheus.CounterVec

	// Cache Metrics
	cacheHitsTotal   prometheus.Counter
	cacheMissesTotal prometheus.Counter

	// Normalization Metrics
	transactionsNormalizedTotal *prometheus.CounterVec
	classificationsTotal        *prometheus.CounterVec

	// Sweep Metrics
	sweepProcessedTotal *prometheus.CounterVec
	sweepWindowDuration prometheus.Histogram

	// NATS Metrics
	natsMessagesPublished *prometheus.CounterVec
}

// New creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func New(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		rpcCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_calls_total",
				Help: "Total number of Solana RPC calls by method and status",
			},
			[]string{"method", "status", "endpoint"},
		),
		rpcCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "solana_rpc_call_duration_seconds",
				Help:    "Duration of Solana RPC calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"method", "endpoint"},
		),
		rpcRateLimitHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_rate_limit_hits_total",
				Help: "Total number of Solana RPC rate limit hits (429 errors)",
			},
			[]string{"endpoint"},
		),
		rpcRetries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solana_rpc_retries_total",
				Help: "Total number of Solana RPC retry attempts",
			},
			[]string{"reason"},
		),

		cacheHitsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of cache hits (fetches served without network calls)",
			},
		),
		cacheMissesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of cache misses",
			},
		),

		transactionsNormalizedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "transactions_normalized_total",
				Help: "Total number of transactions normalized by outcome",
			},
			[]string{"status"},
		),
		classificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "classifications_total",
				Help: "Total number of classified transactions by tag",
			},
			[]string{"tag"},
		),

		sweepProcessedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sweep_processed_total",
				Help: "Total number of identifiers processed by the sweep by outcome",
			},
			[]string{"status"},
		),
		sweepWindowDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sweep_window_duration_seconds",
				Help:    "Duration of one sweep window in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
			},
		),

		natsMessagesPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "nats_messages_published_total",
				Help: "Total number of NATS messages published",
			},
			[]string{"subject", "status"},
		),
	}
}

// RecordRPCCall records a Solana RPC call with duration.
func (m *Metrics) RecordRPCCall(method, status, endpoint string, duration float64) {
	m.rpcCallsTotal.WithLabelValues(method, status, endpoint).Inc()
	m.rpcCallDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordRateLimitHit records a rate limit hit (429 error).
func (m *Metrics) RecordRateLimitHit(endpoint string) {
	m.rpcRateLimitHits.WithLabelValues(endpoint).Inc()
}

// RecordRPCRetry records a retry attempt.
func (m *Metrics) RecordRPCRetry(reason string) {
	m.rpcRetries.WithLabelValues(reason).Inc()
}

// RecordCacheHit records a fetch served entirely from the local cache.
func (m *Metrics) RecordCacheHit() {
	m.cacheHitsTotal.Inc()
}

// RecordCacheMiss records a fetch that had to go to the network.
func (m *Metrics) RecordCacheMiss() {
	m.cacheMissesTotal.Inc()
}

// RecordTransactionNormalized records a normalization outcome
// ("ok", "empty", or "error").
func (m *Metrics) RecordTransactionNormalized(status string) {
	m.transactionsNormalizedTotal.WithLabelValues(status).Inc()
}

// RecordClassification records the tag assigned to a transaction.
func (m *Metrics) RecordClassification(tag string) {
	m.classificationsTotal.WithLabelValues(tag).Inc()
}

// RecordSweepProcessed records one identifier finishing the pipeline
// ("ok", "empty", or "error").
func (m *Metrics) RecordSweepProcessed(status string) {
	m.sweepProcessedTotal.WithLabelValues(status).Inc()
}

// RecordWindowDuration records how long one sweep window took.
func (m *Metrics) RecordWindowDuration(duration float64) {
	m.sweepWindowDuration.Observe(duration)
}

// RecordNATSPublish records a NATS publish operation.
func (m *Metrics) RecordNATSPublish(subject string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.natsMessagesPublished.WithLabelValues(subject, status).Inc()
}
