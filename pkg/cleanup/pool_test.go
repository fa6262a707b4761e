package cleanup

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolRunsJobs(t *testing.T) {
	p := New(Config{Workers: 2, QueueSize: 16})
	p.Start()

	var ran atomic.Int32
	for i := 0; i < 10; i++ {
		require.True(t, p.Submit(Job{Name: "count", Run: func(ctx context.Context) error {
			ran.Add(1)
			return nil
		}}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, p.Wait(ctx))
	assert.Equal(t, int32(10), ran.Load())

	require.NoError(t, p.Stop(ctx))
	stats := p.Stats()
	assert.Equal(t, uint64(10), stats.Submitted)
	assert.Equal(t, uint64(10), stats.Completed)
}

func TestPoolFailuresAreDropped(t *testing.T) {
	p := New(Config{Workers: 1})
	p.Start()

	p.Submit(Job{Name: "fail", Run: func(ctx context.Context) error {
		return errors.New("backend down")
	}})
	p.Submit(Job{Name: "panic", Run: func(ctx context.Context) error {
		panic("boom")
	}})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, p.Stop(ctx))

	stats := p.Stats()
	assert.Equal(t, uint64(2), stats.Failed)
	assert.Equal(t, uint64(0), stats.Completed)
}

func TestPoolQueueFull(t *testing.T) {
	p := New(Config{Workers: 1, QueueSize: 1})

	// Not started: the single slot fills and the next job is dropped.
	noop := Job{Name: "noop", Run: func(ctx context.Context) error { return nil }}
	assert.True(t, p.Submit(noop))
	assert.False(t, p.Submit(noop))
	assert.Equal(t, uint64(1), p.Stats().Dropped)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, p.Stop(ctx))
	assert.Equal(t, uint64(2), p.Stats().Dropped)
	require.NoError(t, p.Wait(ctx))
}

func TestSubmitAfterStop(t *testing.T) {
	p := New(Config{})
	p.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, p.Stop(ctx))
	require.NoError(t, p.Stop(ctx))

	assert.False(t, p.Submit(Job{Name: "late", Run: func(ctx context.Context) error { return nil }}))
}

func TestJobTimeout(t *testing.T) {
	p := New(Config{Workers: 1, JobTimeout: 20 * time.Millisecond})
	p.Start()

	p.Submit(Job{Name: "slow", Run: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, p.Stop(ctx))
	assert.Equal(t, uint64(1), p.Stats().Failed)
}
