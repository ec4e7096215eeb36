package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the discrepancy engine
type Metrics struct {
	// Request metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Compute metrics
	ComputeTotal    *prometheus.CounterVec
	ComputeDuration *prometheus.HistogramVec
	ComputeErrors   *prometheus.CounterVec
	PairsCompared   prometheus.Counter

	// Registry metrics
	InstancesRegistered prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return &Metrics{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shapelet_requests_total",
				Help: "Total number of API requests by method and status",
			},
			[]string{"method", "status"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "shapelet_request_duration_seconds",
				Help:    "API request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method"},
		),
		ComputeTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shapelet_compute_total",
				Help: "Total number of discrepancy computations by kind",
			},
			[]string{"kind"},
		),
		ComputeDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "shapelet_compute_duration_seconds",
				Help:    "Discrepancy computation duration in seconds",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5},
			},
			[]string{"kind"},
		),
		ComputeErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shapelet_compute_errors_total",
				Help: "Total number of failed computations by kind and error type",
			},
			[]string{"kind", "error_type"},
		),
		PairsCompared: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "shapelet_pairs_compared_total",
				Help: "Total number of path pairs reduced to a discrepancy value",
			},
		),
		InstancesRegistered: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "shapelet_instances_registered",
				Help: "Number of discrepancy instances currently registered",
			},
		),
	}
}

// RecordRequest records an API request with its outcome and duration
func (m *Metrics) RecordRequest(method, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, status).Inc()
	m.RequestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordCompute records a successful computation: its kind, duration, and
// the number of path pairs it reduced
func (m *Metrics) RecordCompute(kind string, duration time.Duration, pairs int) {
	m.ComputeTotal.WithLabelValues(kind).Inc()
	m.ComputeDuration.WithLabelValues(kind).Observe(duration.Seconds())
	m.PairsCompared.Add(float64(pairs))
}

// RecordComputeError records a failed computation
func (m *Metrics) RecordComputeError(kind, errorType string) {
	m.ComputeErrors.WithLabelValues(kind, errorType).Inc()
}
