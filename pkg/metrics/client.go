package metrics

import (
	"time"

	"github.com/marmos91/dittodir/pkg/client"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// clientMetrics is the Prometheus implementation of client.Metrics.
type clientMetrics struct {
	calls    *prometheus.CounterVec
	attempts *prometheus.HistogramVec
	duration *prometheus.HistogramVec
}

// NewClientMetrics returns backend call metrics, or nil if metrics are
// disabled.
func NewClientMetrics() client.Metrics {
	if !IsEnabled() {
		return nil
	}
	return newClientMetrics(GetRegistry())
}

func newClientMetrics(reg prometheus.Registerer) *clientMetrics {
	return &clientMetrics{
		calls: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittodir_backend_calls_total",
				Help: "Total number of backend calls by backend, operation, and status",
			},
			[]string{"backend", "operation", "status"},
		),
		attempts: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dittodir_backend_call_attempts",
				Help:    "Attempts made per backend call, retries included",
				Buckets: []float64{1, 2, 3, 5, 10},
			},
			[]string{"backend", "operation"},
		),
		duration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "dittodir_backend_call_duration_seconds",
				Help: "Duration of backend calls in seconds, retries included",
				Buckets: []float64{
					0.001, // 1ms
					0.01,  // 10ms
					0.1,   // 100ms
					1,     // 1s
					5,     // 5s
					30,    // 30s
				},
			},
			[]string{"backend", "operation"},
		),
	}
}

func (m *clientMetrics) ObserveCall(backend, operation string, attempts int, duration time.Duration, err error) {
	m.calls.WithLabelValues(backend, operation, status(err)).Inc()
	m.attempts.WithLabelValues(backend, operation).Observe(float64(attempts))
	m.duration.WithLabelValues(backend, operation).Observe(duration.Seconds())
}
