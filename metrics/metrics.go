// Package metrics provides Prometheus metrics for HTTP server monitoring.
// It exports four metrics:
//   - http_request_total: Counter with method, path, and status labels
//   - http_request_duration_seconds: Histogram with method and path labels
//   - http_request_in_flight: Gauge for concurrent requests
//   - rate_limiter_buckets_total: Gauge for tracked rate limiter clients
//
// Collectors are registered on the registerer passed to New, never on the
// Prometheus default registry.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// HTTPMetrics groups the collectors shared by the HTTP middleware and the rate limiter
type HTTPMetrics struct {
	RequestTotals      *prometheus.CounterVec
	RequestDuration    *prometheus.HistogramVec
	RequestInFlight    prometheus.Gauge
	RateLimiterBuckets prometheus.Gauge
}

// New creates the collectors and registers them on reg
func New(reg prometheus.Registerer) (*HTTPMetrics, error) {
	m := &HTTPMetrics{
		RequestTotals: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_request_total",
				Help: "Total HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		RequestInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_request_in_flight",
				Help: "Current in-flight requests",
			},
		),
		RateLimiterBuckets: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "rate_limiter_buckets_total",
				Help: "Total number of rate limiter buckets (clients seen since the last cleanup)",
			},
		),
	}

	for _, c := range []prometheus.Collector{m.RequestTotals, m.RequestDuration, m.RequestInFlight, m.RateLimiterBuckets} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}
