// Package metrics exports the Prometheus collectors of a DittoDir process.
//
// Each collector family backs one component interface:
//
//   - NewDirectoryMetrics: per-operation outcomes and latency of the
//     Directory, plus the number of replicas each write reached
//   - NewPlacementMetrics: the live file count of every Files backend
//   - NewClientMetrics: attempts and final outcomes of the retry decorator
//   - NewUserCacheMetrics: authentication cache hits and misses
//   - NewBlobMetrics: blob store operations behind a Files backend
//   - prometheus.NewHTTPMetrics: requests served by the REST handlers
//
// A constructor returns nil (or the no-op HTTP collector) until InitRegistry
// has run, and components treat a nil collector as "do not report". The
// config package calls InitRegistry when server.metrics.enabled is set.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// registry collects every DittoDir family; written once by InitRegistry.
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry creates the registry scraped by the metrics Server.
// Later calls are ignored, so the services of a single-process cluster
// share one registry.
func InitRegistry() {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()
	})
}

// GetRegistry returns the registry, or nil while metrics are disabled.
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled reports whether InitRegistry has run.
func IsEnabled() bool {
	return GetRegistry() != nil
}
