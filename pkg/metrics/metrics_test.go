package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/marmos91/dittodir/pkg/service"
	"github.com/marmos91/dittodir/pkg/store/blob"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDirectoryMetrics(t *testing.T) {
	m := newDirectoryMetrics(prometheus.NewRegistry())

	m.ObserveOperation("write", time.Millisecond, nil)
	m.ObserveOperation("write", time.Millisecond, service.NewError(service.ErrForbidden))
	m.ObserveOperation("write", time.Millisecond, errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("write", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("write", "FORBIDDEN")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("write", "INTERNAL_ERROR")))
}

func TestPlacementMetrics(t *testing.T) {
	m := newPlacementMetrics(prometheus.NewRegistry())

	m.SetBackendLoad("http://a", 3)
	m.SetBackendLoad("http://a", 2)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.load.WithLabelValues("http://a")))
}

func TestClientMetrics(t *testing.T) {
	m := newClientMetrics(prometheus.NewRegistry())

	m.ObserveCall("http://a", "write", 3, time.Second, service.NewError(service.ErrTimeout))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.calls.WithLabelValues("http://a", "write", "TIMEOUT")))
}

func TestUserCacheMetrics(t *testing.T) {
	m := newUserCacheMetrics(prometheus.NewRegistry())

	m.RecordCacheHit()
	m.RecordCacheHit()
	m.RecordCacheMiss()
	assert.Equal(t, 2.0, testutil.ToFloat64(m.lookups.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.lookups.WithLabelValues("miss")))
}

func TestBlobMetrics(t *testing.T) {
	m := newBlobMetrics(prometheus.NewRegistry())

	m.ObserveOperation("memory", "put", time.Millisecond, 10, nil)
	m.ObserveOperation("memory", "get", time.Millisecond, 0, blob.ErrNotFound)

	assert.Equal(t, 10.0, testutil.ToFloat64(m.bytes.WithLabelValues("memory", "put")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operations.WithLabelValues("memory", "get", "not_found")))
}

func TestServerHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := newDirectoryMetrics(reg)
	m.ObserveOperation("list", time.Millisecond, nil)

	srv := NewServer(ServerConfig{Port: 1, Gatherer: reg})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "dittodir_directory_operations_total"))

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
