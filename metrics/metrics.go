// Package metrics provides Prometheus metrics for the HTTP server and the
// reconstruction engine:
//   - http_request_total: Counter with method, path, and status labels
//   - http_request_duration_seconds: Histogram with method and path labels
//   - http_request_in_flight: Gauge for concurrent requests
//   - reconstructions_total: Counter with a status label (ok, warning, failed)
//   - reconstruction_duration_seconds: Histogram per reconstruction batch
//   - reconstruction_survival_mae: Histogram of per-arm curve fidelity
//
// All metrics are automatically registered with the Prometheus default
// registry during package initialization.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestTotals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	HTTPRequestInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_request_in_flight",
			Help: "Current in-flight requests",
		},
	)

	RateLimiterBucketsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rate_limiter_buckets_total",
			Help: "Total number of rate limiter buckets (IPs seen in last ~5 minutes)",
		},
	)

	ReconstructionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconstructions_total",
			Help: "Total per-arm reconstructions by outcome",
		},
		[]string{"status"},
	)

	ReconstructionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reconstruction_duration_seconds",
			Help:    "Duration of full reconstruction batches",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	ReconstructionMAE = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reconstruction_survival_mae",
			Help:    "Mean absolute error between refitted and published survival curves",
			Buckets: []float64{.005, .01, .025, .05, .1, .15, .2, .3, .5},
		},
	)
)

func init() {
	prometheus.MustRegister(HTTPRequestTotals)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestInFlight)
	prometheus.MustRegister(RateLimiterBucketsTotal)
	prometheus.MustRegister(ReconstructionsTotal)
	prometheus.MustRegister(ReconstructionDuration)
	prometheus.MustRegister(ReconstructionMAE)
}
