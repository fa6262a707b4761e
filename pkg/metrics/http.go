package metrics

import "time"

// HTTPMetrics provides observability for the REST adapters.
//
// This interface is optional - if not provided to an adapter, a no-op
// implementation is used.
type HTTPMetrics interface {
	// RecordRequest records a completed request.
	//
	// Parameters:
	//   - service: adapter name ("directory", "files", "users")
	//   - route: the matched route pattern, not the raw path
	//   - status: HTTP status code written
	//   - duration: time taken to serve the request
	RecordRequest(service, route string, status int, duration time.Duration)

	// RecordRequestStart increments the in-flight gauge.
	RecordRequestStart(service string)

	// RecordRequestEnd decrements the in-flight gauge.
	RecordRequestEnd(service string)

	// RecordRateLimited counts a request rejected by the rate limiter.
	RecordRateLimited(service string)
}

// NewNoopHTTPMetrics returns an HTTPMetrics that records nothing.
func NewNoopHTTPMetrics() HTTPMetrics {
	return noopHTTPMetrics{}
}

type noopHTTPMetrics struct{}

func (noopHTTPMetrics) RecordRequest(string, string, int, time.Duration) {}
func (noopHTTPMetrics) RecordRequestStart(string)                        {}
func (noopHTTPMetrics) RecordRequestEnd(string)                          {}
func (noopHTTPMetrics) RecordRateLimited(string)                         {}
