package config

import (
	"github.com/marmos91/dittodir/pkg/client"
	"github.com/marmos91/dittodir/pkg/directory"
	"github.com/marmos91/dittodir/pkg/metrics"
	promMetrics "github.com/marmos91/dittodir/pkg/metrics/prometheus"
	"github.com/marmos91/dittodir/pkg/placement"
	"github.com/marmos91/dittodir/pkg/store/blob"
	"github.com/marmos91/dittodir/pkg/usercache"
)

// MetricsResult contains all metrics-related components created from configuration.
//
// Every collector except HTTP is nil when metrics are disabled; consumers
// treat a nil collector as "do not report".
type MetricsResult struct {
	// Server is the HTTP server exposing Prometheus metrics (nil if disabled)
	Server *metrics.Server

	// HTTP is the REST adapter collector (never nil, no-op if disabled)
	HTTP metrics.HTTPMetrics

	Directory directory.Metrics
	Placement placement.Metrics
	Client    client.Metrics
	UserCache usercache.Metrics
	Blob      blob.Metrics
}

// InitializeMetrics creates and initializes all metrics components based on configuration.
//
// If metrics are enabled in the configuration:
//   - Initializes the global Prometheus registry
//   - Creates the metrics HTTP server
//   - Creates Prometheus-backed collectors for all components
//
// If metrics are disabled:
//   - Returns nil server and nil collectors
//   - Returns a no-op HTTP collector
func InitializeMetrics(cfg *Config) *MetricsResult {
	if !cfg.Server.Metrics.Enabled {
		return &MetricsResult{HTTP: metrics.NewNoopHTTPMetrics()}
	}

	metrics.InitRegistry()

	return &MetricsResult{
		Server:    metrics.NewServer(metrics.ServerConfig{Port: cfg.Server.Metrics.Port}),
		HTTP:      promMetrics.NewHTTPMetrics(),
		Directory: metrics.NewDirectoryMetrics(),
		Placement: metrics.NewPlacementMetrics(),
		Client:    metrics.NewClientMetrics(),
		UserCache: metrics.NewUserCacheMetrics(),
		Blob:      metrics.NewBlobMetrics(),
	}
}
