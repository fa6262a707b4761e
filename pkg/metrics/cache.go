package metrics

import (
	"github.com/marmos91/dittodir/pkg/usercache"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// userCacheMetrics is the Prometheus implementation of usercache.Metrics.
type userCacheMetrics struct {
	lookups *prometheus.CounterVec
}

// NewUserCacheMetrics returns user cache hit/miss counters, or nil if
// metrics are disabled.
func NewUserCacheMetrics() usercache.Metrics {
	if !IsEnabled() {
		return nil
	}
	return newUserCacheMetrics(GetRegistry())
}

func newUserCacheMetrics(reg prometheus.Registerer) *userCacheMetrics {
	return &userCacheMetrics{
		lookups: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dittodir_user_cache_lookups_total",
				Help: "Total number of user cache lookups by result",
			},
			[]string{"result"},
		),
	}
}

func (m *userCacheMetrics) RecordCacheHit() {
	m.lookups.WithLabelValues("hit").Inc()
}

func (m *userCacheMetrics) RecordCacheMiss() {
	m.lookups.WithLabelValues("miss").Inc()
}
