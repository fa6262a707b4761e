// Package client provides the Retry/Failover decorator that wraps every
// outbound call to a Files or Users backend instance.
//
// A decorated client exposes the same interface as the one it wraps. Each
// attempt runs under a per-call timeout. Declared service results
// (*service.Error) are returned as-is; any other error is a transport fault
// and is retried with jittered exponential backoff. Once attempts are
// exhausted, network and deadline faults surface as ErrTimeout and anything
// else as ErrInternal, so callers only ever see the service taxonomy.
//
// Failover across instances is not done here: the Directory moves to the
// next candidate address when a decorated call fails.
package client

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws/retry"
	"github.com/marmos91/dittodir/internal/logger"
	"github.com/marmos91/dittodir/pkg/service"
)

// Policy bounds the retries of one call.
type Policy struct {
	// MaxAttempts is the total number of tries, including the first.
	// Default: 3
	MaxAttempts int

	// MaxBackoff caps the delay between attempts. Default: 200ms
	MaxBackoff time.Duration

	// Timeout bounds a single attempt. Default: 5s
	Timeout time.Duration
}

// DefaultPolicy returns the policy used when none is configured.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, MaxBackoff: 200 * time.Millisecond, Timeout: 5 * time.Second}
}

func (p Policy) withDefaults() Policy {
	d := DefaultPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = d.MaxAttempts
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = d.MaxBackoff
	}
	if p.Timeout <= 0 {
		p.Timeout = d.Timeout
	}
	return p
}

// Metrics observes decorated calls. A nil Metrics disables reporting.
type Metrics interface {
	ObserveCall(backend, operation string, attempts int, duration time.Duration, err error)
}

// retrier runs operations against one backend address.
type retrier struct {
	address string
	policy  Policy
	backoff *retry.ExponentialJitterBackoff
	metrics Metrics

	// sleep waits between attempts; tests replace it.
	sleep func(ctx context.Context, d time.Duration) error
}

func newRetrier(address string, policy Policy, metrics Metrics) *retrier {
	policy = policy.withDefaults()
	return &retrier{
		address: address,
		policy:  policy,
		backoff: retry.NewExponentialJitterBackoff(policy.MaxBackoff),
		metrics: metrics,
		sleep:   sleepContext,
	}
}

// do runs fn until it succeeds, returns a declared service error, or the
// attempts are exhausted.
func do[T any](ctx context.Context, r *retrier, operation string, fn func(ctx context.Context) (T, error)) (T, error) {
	var (
		zero    T
		lastErr error
		start   = time.Now()
	)

	attempt := 0
	for attempt < r.policy.MaxAttempts {
		attempt++

		callCtx, cancel := context.WithTimeout(ctx, r.policy.Timeout)
		v, err := fn(callCtx)
		cancel()

		if err == nil {
			r.observe(operation, attempt, start, nil)
			return v, nil
		}

		var declared *service.Error
		if errors.As(err, &declared) {
			r.observe(operation, attempt, start, declared)
			return zero, declared
		}

		lastErr = err
		logger.Debug("Client: %s %s attempt %d/%d failed: %v",
			operation, r.address, attempt, r.policy.MaxAttempts, err)

		if ctx.Err() != nil || attempt == r.policy.MaxAttempts {
			break
		}

		delay, berr := r.backoff.BackoffDelay(attempt, err)
		if berr != nil {
			delay = r.policy.MaxBackoff
		}
		if err := r.sleep(ctx, delay); err != nil {
			break
		}
	}

	final := terminal(lastErr)
	logger.Warn("Client: %s %s failed after %d attempt(s): %v", operation, r.address, attempt, lastErr)
	r.observe(operation, attempt, start, final)
	return zero, final
}

// terminal converts an exhausted transport fault into a service error.
func terminal(err error) *service.Error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return service.Errorf(service.ErrTimeout, "%v", err)
	case errors.As(err, &netErr):
		return service.Errorf(service.ErrTimeout, "%v", err)
	default:
		return service.Errorf(service.ErrInternal, "%v", err)
	}
}

func (r *retrier) observe(operation string, attempts int, start time.Time, err error) {
	if r.metrics != nil {
		r.metrics.ObserveCall(r.address, operation, attempts, time.Since(start), err)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
