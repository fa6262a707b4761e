package ratelimiter

import (
	"testing"
	"time"
)

// TestNew verifies rate limiter creation with different parameters.
func TestNew(t *testing.T) {
	tests := []struct {
		name              string
		requestsPerSecond uint
		burst             uint
	}{
		{name: "standard rate", requestsPerSecond: 100, burst: 200},
		{name: "low rate", requestsPerSecond: 1, burst: 2},
		{name: "zero burst", requestsPerSecond: 5, burst: 0},
		{name: "unlimited (zero rate)", requestsPerSecond: 0, burst: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limiter := New(tt.requestsPerSecond, tt.burst)
			if limiter == nil || limiter.limiter == nil {
				t.Fatal("New() returned an unusable limiter")
			}
			if !limiter.Allow() {
				t.Fatal("first request should always be allowed")
			}
		})
	}
}

// TestAllow verifies that Allow() enforces the burst and refills.
func TestAllow(t *testing.T) {
	limiter := New(10, 10)

	for i := 0; i < 10; i++ {
		if !limiter.Allow() {
			t.Fatalf("request %d should be allowed (within burst)", i)
		}
	}
	if limiter.Allow() {
		t.Fatal("request should be rate-limited after burst exhausted")
	}

	// 100ms refills one token at 10 req/s.
	time.Sleep(110 * time.Millisecond)
	if !limiter.Allow() {
		t.Fatal("request should be allowed after token replenishment")
	}
}

// TestUnlimitedRate verifies that a zero rate never rejects.
func TestUnlimitedRate(t *testing.T) {
	limiter := New(0, 0)
	for i := 0; i < 10000; i++ {
		if !limiter.Allow() {
			t.Fatalf("unlimited limiter rejected request %d", i)
		}
	}
}

// TestPerClientIsolation verifies that exhausting one client's bucket does
// not affect another client.
func TestPerClientIsolation(t *testing.T) {
	p := NewPerClient(1, 2, time.Minute)

	for i := 0; i < 2; i++ {
		if !p.Allow("10.0.0.1") {
			t.Fatalf("request %d of first client should be allowed", i)
		}
	}
	if p.Allow("10.0.0.1") {
		t.Fatal("first client should be limited")
	}
	if !p.Allow("10.0.0.2") {
		t.Fatal("second client should not be affected")
	}
	if p.Len() != 2 {
		t.Fatalf("expected 2 tracked clients, got %d", p.Len())
	}
}

// TestPerClientSweep verifies idle buckets are evicted.
func TestPerClientSweep(t *testing.T) {
	p := NewPerClient(10, 10, time.Minute)
	now := time.Unix(1_700_000_000, 0)
	p.now = func() time.Time { return now }

	p.Allow("old")
	now = now.Add(2 * time.Minute)
	p.Allow("new")

	if n := p.Sweep(); n != 1 {
		t.Fatalf("expected 1 eviction, got %d", n)
	}
	if p.Len() != 1 {
		t.Fatalf("expected 1 tracked client, got %d", p.Len())
	}
}

// TestPerClientDisabled verifies a zero rate tracks nothing.
func TestPerClientDisabled(t *testing.T) {
	p := NewPerClient(0, 0, 0)
	for i := 0; i < 100; i++ {
		if !p.Allow("client") {
			t.Fatal("disabled limiter rejected a request")
		}
	}
	if p.Len() != 0 {
		t.Fatalf("disabled limiter should not track clients, got %d", p.Len())
	}
}

func BenchmarkPerClientAllow(b *testing.B) {
	p := NewPerClient(1_000_000, 1_000_000, time.Minute)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p.Allow("client")
	}
}
