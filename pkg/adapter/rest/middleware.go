package rest

import (
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/dittodir/internal/logger"
	"github.com/marmos91/dittodir/internal/ratelimiter"
	"github.com/marmos91/dittodir/pkg/metrics"
	"github.com/marmos91/dittodir/pkg/service"
)

// statusRecorder captures the status code written by a handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (r *statusRecorder) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(b)
	r.bytes += n
	return n, err
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// requestID propagates X-Request-ID, minting one when the caller sent none.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(service.HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(service.HeaderRequestID, id)
		}
		w.Header().Set(service.HeaderRequestID, id)
		next.ServeHTTP(w, r)
	})
}

// observe logs and measures every request. The query string carries
// passwords and tokens and is never logged.
func observe(name string, m metrics.HTTPMetrics, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}

		m.RecordRequestStart(name)
		defer m.RecordRequestEnd(name)

		next.ServeHTTP(rec, r)

		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		d := time.Since(start)
		m.RecordRequest(name, route, rec.status, d)

		logFn := logger.Debug
		if rec.status >= 500 {
			logFn = logger.Warn
		}
		logFn("%s %s %s -> %d (%d bytes, %v) [%s]",
			name, r.Method, r.URL.Path, rec.status, rec.bytes, d, r.Header.Get(service.HeaderRequestID))
	})
}

// rateLimit rejects requests from clients that exceed their bucket.
func rateLimit(name string, limiter *ratelimiter.PerClient, m metrics.HTTPMetrics, next http.Handler) http.Handler {
	if !limiter.Enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow(clientKey(r)) {
			m.RecordRateLimited(name)
			w.Header().Set("Retry-After", "1")
			writeStatus(w, http.StatusTooManyRequests, service.ErrorResponse{
				Code:    "RATE_LIMITED",
				Message: "too many requests",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
