package metrics

import (
	"errors"
	"time"

	"github.com/marmos91/dittodir/pkg/store/blob"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// blobMetrics is the Prometheus implementation of blob.Metrics.
type blobMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	bytes      *prometheus.CounterVec
}

// NewBlobMetrics returns blob store metrics, or nil if metrics are
// disabled.
func NewBlobMetrics() blob.Metrics {
	if !IsEnabled() {
		return nil
	}
	return newBlobMetrics(GetRegistry())
}

func newBlobMetrics(reg prometheus.Registerer) *blobMetrics {
	return &blobMetrics{
		operations: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittodir_blob_operations_total",
				Help: "Total number of blob store operations by store, operation, and status",
			},
			[]string{"store", "operation", "status"},
		),
		duration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "dittodir_blob_operation_duration_seconds",
				Help: "Duration of blob store operations in seconds",
				Buckets: []float64{
					0.0001, // 100µs
					0.001,  // 1ms
					0.01,   // 10ms
					0.1,    // 100ms
					1,      // 1s
				},
			},
			[]string{"store", "operation"},
		),
		bytes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittodir_blob_bytes_total",
				Help: "Total bytes moved through blob stores",
			},
			[]string{"store", "operation"},
		),
	}
}

func (m *blobMetrics) ObserveOperation(store, operation string, duration time.Duration, bytes int, err error) {
	s := "ok"
	switch {
	case errors.Is(err, blob.ErrNotFound):
		s = "not_found"
	case err != nil:
		s = "error"
	}
	m.operations.WithLabelValues(store, operation, s).Inc()
	m.duration.WithLabelValues(store, operation).Observe(duration.Seconds())
	if err == nil && bytes > 0 {
		m.bytes.WithLabelValues(store, operation).Add(float64(bytes))
	}
}
