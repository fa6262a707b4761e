// Package ratelimiter throttles inbound REST requests with token buckets.
package ratelimiter

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// unlimited stands in for rate.Inf, which has edge cases with bursts.
const unlimited = 1_000_000_000

// RateLimiter is a single token bucket.
//
// Thread safety:
// All methods are safe for concurrent use.
type RateLimiter struct {
	limiter *rate.Limiter
}

// New creates a bucket refilled at requestsPerSecond holding up to burst
// tokens. requestsPerSecond = 0 disables limiting.
func New(requestsPerSecond, burst uint) *RateLimiter {
	if requestsPerSecond == 0 {
		requestsPerSecond = unlimited
		burst = unlimited
	}
	if burst == 0 {
		burst = 1
	}
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), int(burst)),
	}
}

// Allow consumes a token if one is available.
func (r *RateLimiter) Allow() bool {
	return r.limiter.Allow()
}

// Tokens returns the tokens currently available.
func (r *RateLimiter) Tokens() float64 {
	return r.limiter.Tokens()
}

// PerClient keeps one bucket per client key (normally the remote IP), so a
// single noisy client cannot starve the others. Buckets idle for longer
// than the idle timeout are evicted by Sweep.
type PerClient struct {
	requestsPerSecond uint
	burst             uint
	idle              time.Duration
	now               func() time.Time

	mu      sync.Mutex
	clients map[string]*client
}

type client struct {
	limiter  *RateLimiter
	lastSeen time.Time
}

// NewPerClient returns a keyed limiter. An idle of 0 selects 5 minutes.
func NewPerClient(requestsPerSecond, burst uint, idle time.Duration) *PerClient {
	if idle <= 0 {
		idle = 5 * time.Minute
	}
	return &PerClient{
		requestsPerSecond: requestsPerSecond,
		burst:             burst,
		idle:              idle,
		now:               time.Now,
		clients:           make(map[string]*client),
	}
}

// Enabled reports whether any limit is enforced.
func (p *PerClient) Enabled() bool {
	return p.requestsPerSecond > 0
}

// Allow consumes a token from key's bucket.
func (p *PerClient) Allow(key string) bool {
	if !p.Enabled() {
		return true
	}

	p.mu.Lock()
	c, ok := p.clients[key]
	if !ok {
		c = &client{limiter: New(p.requestsPerSecond, p.burst)}
		p.clients[key] = c
	}
	c.lastSeen = p.now()
	p.mu.Unlock()

	return c.limiter.Allow()
}

// Sweep evicts idle buckets and returns how many were removed.
func (p *PerClient) Sweep() int {
	cutoff := p.now().Add(-p.idle)

	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for key, c := range p.clients {
		if c.lastSeen.Before(cutoff) {
			delete(p.clients, key)
			n++
		}
	}
	return n
}

// Len returns the number of tracked clients.
func (p *PerClient) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.clients)
}
