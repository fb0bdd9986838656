// Package metrics exposes the node's Prometheus gauges/counters/histograms:
// package-level metric vars, registered in init(), with a Timer helper for
// histogram observations.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Discovery / scan metrics
	DPRequestsKnown = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "etny_dprequests_known",
			Help: "Number of DP requests currently tracked, by network and status",
		},
		[]string{"network", "status"},
	)

	DORequestsKnown = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "etny_dorequests_known",
			Help: "Number of DO requests currently tracked, by network and status",
		},
		[]string{"network", "status"},
	)

	DiscoveryScanDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "etny_discovery_scan_duration_seconds",
			Help:    "Time taken for one discovery pipeline pass",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"network", "stage"},
	)

	// Dispersion metrics
	DispersionEligible = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "etny_dispersion_eligible",
			Help: "Whether this operator was eligible in the last dispersion check (1/0), by network",
		},
		[]string{"network"},
	)

	DispersionOperatorCount = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "etny_dispersion_operator_count",
			Help: "Operator count N used in the last dispersion computation, by network",
		},
		[]string{"network"},
	)

	// Order lifecycle metrics
	OrdersPlacedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etny_orders_placed_total",
			Help: "Total number of orders placed, by network",
		},
		[]string{"network"},
	)

	OrdersClosedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etny_orders_closed_total",
			Help: "Total number of orders closed, by network and result status",
		},
		[]string{"network", "result_status"},
	)

	OrderLifecycleDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "etny_order_lifecycle_duration_seconds",
			Help:    "Time from order placement to result submission",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
		},
		[]string{"network"},
	)

	ResultRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etny_order_result_retries_total",
			Help: "Total number of result submission retries, by network",
		},
		[]string{"network"},
	)

	// Chain client metrics
	ChainCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etny_chain_calls_total",
			Help: "Total number of chain RPC calls, by network, method and outcome",
		},
		[]string{"network", "method", "outcome"},
	)

	ChainCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "etny_chain_call_duration_seconds",
			Help:    "Chain RPC call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"network", "method"},
	)

	// Content store metrics
	ContentDownloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etny_content_downloads_total",
			Help: "Total number of content store downloads, by source (daemon, gateway) and outcome",
		},
		[]string{"source", "outcome"},
	)

	ContentVersionInvalidations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "etny_content_version_invalidations_total",
			Help: "Total number of content store cache invalidations triggered by a daemon version change",
		},
	)

	// Enclave execution metrics
	EnclaveExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "etny_enclave_executions_total",
			Help: "Total number of enclave executions, by network and result status",
		},
		[]string{"network", "result_status"},
	)

	EnclaveExecutionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "etny_enclave_execution_duration_seconds",
			Help:    "Time spent waiting for an enclave execution to produce a result",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200, 1800, 3600},
		},
		[]string{"network"},
	)
)

func init() {
	prometheus.MustRegister(DPRequestsKnown)
	prometheus.MustRegister(DORequestsKnown)
	prometheus.MustRegister(DiscoveryScanDuration)
	prometheus.MustRegister(DispersionEligible)
	prometheus.MustRegister(DispersionOperatorCount)
	prometheus.MustRegister(OrdersPlacedTotal)
	prometheus.MustRegister(OrdersClosedTotal)
	prometheus.MustRegister(OrderLifecycleDuration)
	prometheus.MustRegister(ResultRetriesTotal)
	prometheus.MustRegister(ChainCallsTotal)
	prometheus.MustRegister(ChainCallDuration)
	prometheus.MustRegister(ContentDownloadsTotal)
	prometheus.MustRegister(ContentVersionInvalidations)
	prometheus.MustRegister(EnclaveExecutionsTotal)
	prometheus.MustRegister(EnclaveExecutionDuration)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDurationVec records the elapsed time to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram *prometheus.HistogramVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
