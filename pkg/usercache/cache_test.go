package usercache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/marmos91/dittodir/pkg/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLoader struct {
	calls   atomic.Int32
	err     error
	release chan struct{}
}

func (f *fakeLoader) GetUser(ctx context.Context, userID, password string) (*service.User, error) {
	f.calls.Add(1)
	if f.release != nil {
		<-f.release
	}
	// Like the retry client, a dead context surfaces as a timeout.
	if err := ctx.Err(); err != nil {
		return nil, service.Errorf(service.ErrTimeout, "%v", err)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &service.User{UserID: userID}, nil
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newCache(loader Loader) (*Cache, *clock) {
	clk := &clock{now: time.Unix(1_700_000_000, 0)}
	c := New(loader, 3*time.Second, nil)
	c.now = clk.Now
	return c, clk
}

func TestHitWithinTTL(t *testing.T) {
	loader := &fakeLoader{}
	c, clk := newCache(loader)
	ctx := context.Background()

	u, err := c.Authenticate(ctx, "alice", "pw")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.UserID)

	clk.Advance(2 * time.Second)
	_, err = c.Authenticate(ctx, "alice", "pw")
	require.NoError(t, err)
	assert.Equal(t, int32(1), loader.calls.Load())

	clk.Advance(time.Second)
	_, err = c.Authenticate(ctx, "alice", "pw")
	require.NoError(t, err)
	assert.Equal(t, int32(2), loader.calls.Load(), "entry must expire at the TTL")
}

func TestNegativeResultsAreCached(t *testing.T) {
	loader := &fakeLoader{err: service.NewError(service.ErrNotFound)}
	c, _ := newCache(loader)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := c.Authenticate(ctx, "ghost", "")
		assert.True(t, service.IsNotFound(err))
	}
	assert.Equal(t, int32(1), loader.calls.Load())
}

func TestTimeoutBecomesBadRequest(t *testing.T) {
	loader := &fakeLoader{err: service.NewError(service.ErrTimeout)}
	c, _ := newCache(loader)
	ctx := context.Background()

	_, err := c.Authenticate(ctx, "alice", "pw")
	assert.Equal(t, service.ErrBadRequest, service.CodeOf(err))

	_, err = c.Authenticate(ctx, "alice", "pw")
	assert.Equal(t, service.ErrBadRequest, service.CodeOf(err))
	assert.Equal(t, int32(1), loader.calls.Load())
}

func TestKeyIncludesPassword(t *testing.T) {
	loader := &fakeLoader{}
	c, _ := newCache(loader)
	ctx := context.Background()

	_, _ = c.Authenticate(ctx, "alice", "pw")
	_, _ = c.Authenticate(ctx, "alice", "other")
	assert.Equal(t, int32(2), loader.calls.Load())
}

func TestInvalidateIsPointwise(t *testing.T) {
	loader := &fakeLoader{}
	c, _ := newCache(loader)
	ctx := context.Background()

	_, _ = c.Authenticate(ctx, "alice", "pw")
	_, _ = c.Authenticate(ctx, "bob", "pw")
	c.Invalidate("alice", "pw")
	assert.Equal(t, 1, c.Len())

	_, _ = c.Authenticate(ctx, "alice", "pw")
	_, _ = c.Authenticate(ctx, "bob", "pw")
	assert.Equal(t, int32(3), loader.calls.Load())
}

func TestSingleFlight(t *testing.T) {
	loader := &fakeLoader{release: make(chan struct{})}
	c, _ := newCache(loader)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Authenticate(ctx, "alice", "pw")
			errs <- err
		}()
	}

	require.Eventually(t, func() bool { return loader.calls.Load() == 1 },
		time.Second, time.Millisecond)
	// Give the other goroutines time to join the flight.
	time.Sleep(20 * time.Millisecond)
	close(loader.release)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), loader.calls.Load())
}

func TestPurge(t *testing.T) {
	loader := &fakeLoader{}
	c, clk := newCache(loader)
	ctx := context.Background()

	_, _ = c.Authenticate(ctx, "alice", "pw")
	clk.Advance(time.Second)
	_, _ = c.Authenticate(ctx, "bob", "pw")

	clk.Advance(2500 * time.Millisecond)
	assert.Equal(t, 1, c.Purge())
	assert.Equal(t, 1, c.Len())
}

func TestJanitorStartStop(t *testing.T) {
	c := New(&fakeLoader{}, 10*time.Millisecond, nil)
	_, _ = c.Authenticate(context.Background(), "alice", "pw")

	c.Start(5 * time.Millisecond)
	c.Start(5 * time.Millisecond)
	require.Eventually(t, func() bool { return c.Len() == 0 }, time.Second, 5*time.Millisecond)
	c.Stop()
	c.Stop()
}

func TestCancelledCallerDoesNotPoisonEntry(t *testing.T) {
	loader := &fakeLoader{}
	c, _ := newCache(loader)

	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	_, _ = c.Authenticate(cancelled, "alice", "pw")

	u, err := c.Authenticate(context.Background(), "alice", "pw")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.UserID)
}

func TestCallerStopsWaitingOnCancel(t *testing.T) {
	loader := &fakeLoader{release: make(chan struct{})}
	c, _ := newCache(loader)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := c.Authenticate(ctx, "alice", "pw")
		done <- err
	}()

	require.Eventually(t, func() bool { return loader.calls.Load() == 1 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.Equal(t, service.ErrBadRequest, service.CodeOf(err))
	case <-time.After(time.Second):
		t.Fatal("Authenticate did not return after cancellation")
	}

	// The shared load finishes and serves the next caller.
	close(loader.release)
	u, err := c.Authenticate(context.Background(), "alice", "pw")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.UserID)
	assert.Equal(t, int32(1), loader.calls.Load())
}
