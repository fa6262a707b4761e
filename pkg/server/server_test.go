package server

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAdapter struct {
	protocol string
	port     int
	failWith error

	stopped atomic.Int32
	mu      sync.Mutex
	order   *[]string
}

func (f *fakeAdapter) Serve(ctx context.Context) error {
	if f.failWith != nil {
		return f.failWith
	}
	<-ctx.Done()
	return nil
}

func (f *fakeAdapter) Stop(ctx context.Context) error {
	f.stopped.Add(1)
	if f.order != nil {
		f.mu.Lock()
		*f.order = append(*f.order, f.protocol)
		f.mu.Unlock()
	}
	return nil
}

func (f *fakeAdapter) Protocol() string { return f.protocol }
func (f *fakeAdapter) Port() int        { return f.port }

func TestAddAdapterConflicts(t *testing.T) {
	s := New(0)
	require.NoError(t, s.AddAdapter(&fakeAdapter{protocol: "REST/files", port: 8081}))

	assert.Error(t, s.AddAdapter(&fakeAdapter{protocol: "REST/files", port: 8082}))
	assert.Error(t, s.AddAdapter(&fakeAdapter{protocol: "REST/users", port: 8081}))

	require.NoError(t, s.AddAdapter(&fakeAdapter{protocol: "REST/users", port: 0}))
	require.NoError(t, s.AddAdapter(&fakeAdapter{protocol: "REST/directory", port: 0}))
	assert.Len(t, s.Adapters(), 3)
}

func TestServeWithoutAdapters(t *testing.T) {
	assert.Error(t, New(0).Serve(context.Background()))
}

func TestServeStopsInReverseOrderAndRunsHooks(t *testing.T) {
	var (
		order []string
		mu    sync.Mutex
	)
	s := New(time.Second)
	first := &fakeAdapter{protocol: "first", port: 1, order: &order}
	second := &fakeAdapter{protocol: "second", port: 2, order: &order}
	require.NoError(t, s.AddAdapter(first))
	require.NoError(t, s.AddAdapter(second))
	s.OnShutdown("pool", func(context.Context) error {
		mu.Lock()
		order = append(order, "hook")
		mu.Unlock()
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return")
	}

	assert.Equal(t, []string{"second", "first", "hook"}, order)
}

func TestAdapterFailureStopsServer(t *testing.T) {
	boom := errors.New("bind: address already in use")
	s := New(time.Second)
	healthy := &fakeAdapter{protocol: "healthy", port: 1}
	require.NoError(t, s.AddAdapter(healthy))
	require.NoError(t, s.AddAdapter(&fakeAdapter{protocol: "broken", port: 2, failWith: boom}))

	err := s.Serve(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(1), healthy.stopped.Load())
}

func TestServeTwicePanics(t *testing.T) {
	s := New(time.Second)
	require.NoError(t, s.AddAdapter(&fakeAdapter{protocol: "p", port: 1}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = s.Serve(ctx)

	assert.Panics(t, func() { _ = s.Serve(ctx) })
	assert.Panics(t, func() { _ = s.AddAdapter(&fakeAdapter{protocol: "q", port: 2}) })
}
