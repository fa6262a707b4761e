package prometheus

import (
	"strconv"
	"time"

	"github.com/marmos91/dittodir/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// httpMetrics is the Prometheus implementation of metrics.HTTPMetrics.
type httpMetrics struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	requestsInFlight *prometheus.GaugeVec
	rateLimited      *prometheus.CounterVec
}

// NewHTTPMetrics creates a Prometheus-backed HTTPMetrics instance.
//
// Returns a no-op implementation if metrics are not enabled (InitRegistry not called).
func NewHTTPMetrics() metrics.HTTPMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopHTTPMetrics()
	}
	return newHTTPMetrics(metrics.GetRegistry())
}

func newHTTPMetrics(reg prometheus.Registerer) *httpMetrics {
	return &httpMetrics{
		requestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittodir_http_requests_total",
				Help: "Total number of REST requests by service, route, and status code",
			},
			[]string{"service", "route", "code"},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "dittodir_http_request_duration_milliseconds",
				Help: "Duration of REST requests in milliseconds",
				Buckets: []float64{
					1,     // 1ms
					10,    // 10ms
					100,   // 100ms
					1000,  // 1s
					10000, // 10s
				},
			},
			[]string{"service", "route"},
		),
		requestsInFlight: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dittodir_http_requests_in_flight",
				Help: "Current number of REST requests being processed",
			},
			[]string{"service"},
		),
		rateLimited: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittodir_http_rate_limited_total",
				Help: "Total number of REST requests rejected by the rate limiter",
			},
			[]string{"service"},
		),
	}
}

func (m *httpMetrics) RecordRequest(service, route string, status int, duration time.Duration) {
	m.requestsTotal.WithLabelValues(service, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(service, route).Observe(duration.Seconds() * 1000) // Convert to milliseconds
}

func (m *httpMetrics) RecordRequestStart(service string) {
	m.requestsInFlight.WithLabelValues(service).Inc()
}

func (m *httpMetrics) RecordRequestEnd(service string) {
	m.requestsInFlight.WithLabelValues(service).Dec()
}

func (m *httpMetrics) RecordRateLimited(service string) {
	m.rateLimited.WithLabelValues(service).Inc()
}
