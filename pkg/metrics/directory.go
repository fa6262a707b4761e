package metrics

import (
	"time"

	"github.com/marmos91/dittodir/pkg/directory"
	"github.com/marmos91/dittodir/pkg/placement"
	"github.com/marmos91/dittodir/pkg/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// status labels an outcome by its error code, or "ok".
func status(err error) string {
	if err == nil {
		return "ok"
	}
	return service.CodeOf(err).String()
}

// directoryMetrics is the Prometheus implementation of directory.Metrics.
type directoryMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	replicas   prometheus.Histogram
}

// NewDirectoryMetrics returns Directory metrics, or nil if metrics are
// disabled.
func NewDirectoryMetrics() directory.Metrics {
	if !IsEnabled() {
		return nil
	}
	return newDirectoryMetrics(GetRegistry())
}

func newDirectoryMetrics(reg prometheus.Registerer) *directoryMetrics {
	return &directoryMetrics{
		operations: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittodir_directory_operations_total",
				Help: "Total number of Directory operations by operation and status",
			},
			[]string{"operation", "status"},
		),
		duration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "dittodir_directory_operation_duration_seconds",
				Help: "Duration of Directory operations in seconds",
				Buckets: []float64{
					0.0001, // 100µs
					0.001,  // 1ms
					0.01,   // 10ms
					0.1,    // 100ms
					1,      // 1s
					10,     // 10s
				},
			},
			[]string{"operation"},
		),
		replicas: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "dittodir_directory_write_replicas",
				Help:    "Number of replicas written per successful write",
				Buckets: []float64{1, 2, 3, 4, 5},
			},
		),
	}
}

func (m *directoryMetrics) ObserveOperation(operation string, duration time.Duration, err error) {
	m.operations.WithLabelValues(operation, status(err)).Inc()
	m.duration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *directoryMetrics) RecordReplicas(count int) {
	m.replicas.Observe(float64(count))
}

// placementMetrics is the Prometheus implementation of placement.Metrics.
type placementMetrics struct {
	load *prometheus.GaugeVec
}

// NewPlacementMetrics returns backend load gauges, or nil if metrics are
// disabled.
func NewPlacementMetrics() placement.Metrics {
	if !IsEnabled() {
		return nil
	}
	return newPlacementMetrics(GetRegistry())
}

func newPlacementMetrics(reg prometheus.Registerer) *placementMetrics {
	return &placementMetrics{
		load: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dittodir_backend_files",
				Help: "Live files recorded per Files backend",
			},
			[]string{"backend"},
		),
	}
}

func (m *placementMetrics) SetBackendLoad(address string, files int64) {
	m.load.WithLabelValues(address).Set(float64(files))
}
