// Package usercache memoizes authentication results from the Users backend.
//
// Results are keyed by (userId, password) and expire after a fixed TTL,
// whatever their outcome: a "not found" or "forbidden" answer is cached as
// faithfully as a successful one. A timeout from the backend is stored and
// returned as a bad request so a transient outage never surfaces as TIMEOUT
// to callers. Concurrent misses on the same key share one backend call.
package usercache

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/marmos91/dittodir/internal/logger"
	"github.com/marmos91/dittodir/pkg/service"
	"golang.org/x/sync/singleflight"
)

// DefaultTTL is how long an outcome is reused.
const DefaultTTL = 3 * time.Second

// Loader fetches a user from the Users backend.
type Loader interface {
	GetUser(ctx context.Context, userID, password string) (*service.User, error)
}

// Metrics receives cache hit/miss events. A nil Metrics disables reporting.
type Metrics interface {
	RecordCacheHit()
	RecordCacheMiss()
}

type key struct {
	userID   string
	password string
}

type entry struct {
	user    *service.User
	err     error
	expires time.Time
}

// Cache is a TTL map with single-flight loads.
//
// Thread safety:
// Safe for concurrent use. Loads run outside the map lock.
type Cache struct {
	loader  Loader
	ttl     time.Duration
	metrics Metrics

	mu      sync.RWMutex
	entries map[key]entry
	group   singleflight.Group

	// now is replaceable in tests.
	now func() time.Time

	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
}

// New returns a Cache in front of loader. ttl <= 0 selects DefaultTTL.
func New(loader Loader, ttl time.Duration, metrics Metrics) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		loader:  loader,
		ttl:     ttl,
		metrics: metrics,
		entries: make(map[key]entry),
		now:     time.Now,
	}
}

// Authenticate returns the user for (userID, password), loading it on a
// miss or after expiry. A caller whose ctx ends stops waiting; the load
// it shares with other callers completes and is cached.
func (c *Cache) Authenticate(ctx context.Context, userID, password string) (*service.User, error) {
	k := key{userID: userID, password: password}

	c.mu.RLock()
	e, ok := c.entries[k]
	c.mu.RUnlock()

	if ok && c.now().Before(e.expires) {
		if c.metrics != nil {
			c.metrics.RecordCacheHit()
		}
		return e.user, e.err
	}
	if c.metrics != nil {
		c.metrics.RecordCacheMiss()
	}

	// The flight is shared by every caller of k, so it must not end when
	// the caller that started it goes away. The Loader bounds its own calls.
	loadCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(flightKey(k), func() (any, error) {
		return c.load(loadCtx, k), nil
	})

	select {
	case res := <-ch:
		e = res.Val.(entry)
		return e.user, e.err
	case <-ctx.Done():
		return nil, service.Errorf(service.ErrBadRequest, "authentication of %s abandoned: %v", userID, ctx.Err())
	}
}

// load fetches k from the Users backend and stores the outcome.
func (c *Cache) load(ctx context.Context, k key) entry {
	// Another flight may have filled the entry while we queued.
	c.mu.RLock()
	e, ok := c.entries[k]
	c.mu.RUnlock()
	if ok && c.now().Before(e.expires) {
		return e
	}

	user, err := c.loader.GetUser(ctx, k.userID, k.password)
	if service.IsTimeout(err) {
		logger.Warn("User cache: users backend timed out for %s", k.userID)
		err = service.Errorf(service.ErrBadRequest, "users backend unavailable")
	} else if err != nil {
		err = service.AsError(err)
	}

	e = entry{user: user, err: err, expires: c.now().Add(c.ttl)}
	c.mu.Lock()
	c.entries[k] = e
	c.mu.Unlock()
	return e
}

// Invalidate drops the entry for (userID, password).
func (c *Cache) Invalidate(userID, password string) {
	k := key{userID: userID, password: password}
	c.mu.Lock()
	delete(c.entries, k)
	c.mu.Unlock()
	c.group.Forget(flightKey(k))
}

// Purge removes expired entries and returns how many were dropped.
func (c *Cache) Purge() int {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for k, e := range c.entries {
		if !now.Before(e.expires) {
			delete(c.entries, k)
			n++
		}
	}
	return n
}

// Len returns the number of stored entries, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Start runs a janitor that purges expired entries every interval.
// interval <= 0 selects the TTL.
func (c *Cache) Start(interval time.Duration) {
	if interval <= 0 {
		interval = c.ttl
	}

	c.mu.Lock()
	if c.stopCh != nil {
		c.mu.Unlock()
		return
	}
	c.stopCh = make(chan struct{})
	c.doneCh = make(chan struct{})
	c.mu.Unlock()

	go func() {
		defer close(c.doneCh)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if n := c.Purge(); n > 0 {
					logger.Debug("User cache: purged %d expired entries", n)
				}
			case <-c.stopCh:
				return
			}
		}
	}()
}

// Stop terminates the janitor started by Start.
func (c *Cache) Stop() {
	c.mu.RLock()
	stopCh, doneCh := c.stopCh, c.doneCh
	c.mu.RUnlock()
	if stopCh == nil {
		return
	}

	c.stopOnce.Do(func() { close(stopCh) })
	<-doneCh
}

// flightKey length-prefixes the userId so distinct pairs never collide.
func flightKey(k key) string {
	return strconv.Itoa(len(k.userID)) + ":" + k.userID + k.password
}
