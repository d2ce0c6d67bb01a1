// Package metrics provides the Prometheus collectors exposed by the management server.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics holds the request collectors updated by the metrics middleware.
type HTTPMetrics struct {
	duration *prometheus.HistogramVec
	total    *prometheus.CounterVec
	inFlight prometheus.Gauge
}

func newHTTPMetrics() *HTTPMetrics {
	return &HTTPMetrics{
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		total: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		inFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Current number of HTTP requests being processed",
			},
		),
	}
}

func (m *HTTPMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{m.duration, m.total, m.inFlight}
}

// Observe records one finished request.
func (m *HTTPMetrics) Observe(method, path string, status int, duration time.Duration) {
	statusStr := strconv.Itoa(status)
	m.duration.WithLabelValues(method, path, statusStr).Observe(duration.Seconds())
	m.total.WithLabelValues(method, path, statusStr).Inc()
}

// IncInFlight increments the in-flight requests gauge.
func (m *HTTPMetrics) IncInFlight() {
	m.inFlight.Inc()
}

// DecInFlight decrements the in-flight requests gauge.
func (m *HTTPMetrics) DecInFlight() {
	m.inFlight.Dec()
}
