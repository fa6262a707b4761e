package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/dittodir/internal/logger"
	"github.com/marmos91/dittodir/pkg/adapter"
)

// DefaultShutdownTimeout bounds adapter Stop() calls and shutdown hooks.
const DefaultShutdownTimeout = 30 * time.Second

// Server manages the lifecycle of the adapters of one process and the
// background components behind them.
//
// Lifecycle:
//  1. Creation: New() with the shutdown timeout
//  2. Registration: AddAdapter() for each front end, OnShutdown() for each
//     component to drain after the adapters stop (cleanup pool, caches)
//  3. Startup: Serve() starts all adapters concurrently
//  4. Shutdown: context cancellation, or the failure of any adapter, stops
//     every adapter in reverse order and then runs the hooks in reverse order
//
// Thread safety:
// Server is safe for concurrent use. AddAdapter() and OnShutdown() must not
// be called after Serve().
//
// Example usage:
//
//	srv := server.New(cfg.Server.ShutdownTimeout)
//	srv.AddAdapter(rest.NewDirectory(restCfg, dir, opts))
//	srv.OnShutdown("cleanup", pool.Stop)
//
//	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
//	defer cancel()
//	if err := srv.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
//	    log.Fatal(err)
//	}
type Server struct {
	shutdownTimeout time.Duration

	mu       sync.Mutex
	adapters []adapter.Adapter
	hooks    []hook
	served   bool
}

type hook struct {
	name string
	fn   func(ctx context.Context) error
}

// New creates a server with no adapters. A zero timeout selects
// DefaultShutdownTimeout.
func New(shutdownTimeout time.Duration) *Server {
	if shutdownTimeout <= 0 {
		shutdownTimeout = DefaultShutdownTimeout
	}
	return &Server{
		shutdownTimeout: shutdownTimeout,
		adapters:        make([]adapter.Adapter, 0, 4),
	}
}

// AddAdapter registers a front end.
//
// Returns an error if another adapter already serves the same protocol or
// listens on the same non-zero port.
//
// Panics if a is nil or Serve() has already been called.
func (s *Server) AddAdapter(a adapter.Adapter) error {
	if a == nil {
		panic("adapter cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.served {
		panic("cannot add adapter after Serve() has been called")
	}

	protocol, port := a.Protocol(), a.Port()
	for _, existing := range s.adapters {
		if existing.Protocol() == protocol {
			return fmt.Errorf("adapter for protocol %s already registered", protocol)
		}
		if port != 0 && existing.Port() == port {
			return fmt.Errorf("port %d already in use by %s adapter", port, existing.Protocol())
		}
	}

	s.adapters = append(s.adapters, a)
	logger.Info("Registered %s adapter on port %d", protocol, port)
	return nil
}

// OnShutdown registers fn to run once all adapters have stopped.
func (s *Server) OnShutdown(name string, fn func(ctx context.Context) error) {
	if fn == nil {
		panic("shutdown hook cannot be nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.served {
		panic("cannot add shutdown hook after Serve() has been called")
	}
	s.hooks = append(s.hooks, hook{name: name, fn: fn})
}

// Serve starts every adapter and blocks until ctx is cancelled or an
// adapter fails.
//
// Returns:
//   - ctx.Err() if shutdown was triggered by context cancellation
//   - the adapter error if an adapter failed
//
// Panics if called more than once.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	if s.served {
		s.mu.Unlock()
		panic("Serve() has already been called on this server instance")
	}
	s.served = true
	adapters := append([]adapter.Adapter(nil), s.adapters...)
	hooks := append([]hook(nil), s.hooks...)
	s.mu.Unlock()

	if len(adapters) == 0 {
		return fmt.Errorf("no adapters registered; call AddAdapter() before Serve()")
	}

	logger.Info("Starting server with %d adapter(s)", len(adapters))

	// Adapters watch serveCtx so a failing sibling brings them all down.
	serveCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Buffered so failing adapters never block.
	errChan := make(chan adapterError, len(adapters))

	var wg sync.WaitGroup
	for _, a := range adapters {
		wg.Add(1)
		go func(a adapter.Adapter) {
			defer wg.Done()

			protocol := a.Protocol()
			logger.Info("Starting %s adapter on port %d", protocol, a.Port())

			err := a.Serve(serveCtx)
			switch {
			case err == nil:
				logger.Info("%s adapter stopped", protocol)
			case serveCtx.Err() != nil:
				logger.Debug("%s adapter stopped: %v", protocol, err)
			default:
				logger.Error("%s adapter failed: %v", protocol, err)
				errChan <- adapterError{protocol: protocol, err: err}
			}
		}(a)
	}

	var shutdownErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received (reason: %v)", ctx.Err())
		shutdownErr = ctx.Err()
	case adapterErr := <-errChan:
		logger.Error("Adapter %s failed - initiating shutdown of all adapters", adapterErr.protocol)
		shutdownErr = fmt.Errorf("%s adapter error: %w", adapterErr.protocol, adapterErr.err)
	}

	cancel()
	stopCtx, stopCancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer stopCancel()

	s.stopAdapters(stopCtx, adapters)
	logger.Debug("Waiting for all adapters to complete shutdown")
	wg.Wait()

	if err := s.runHooks(stopCtx, hooks); err != nil {
		logger.Warn("Shutdown hooks reported errors: %v", err)
	}

	logger.Info("Server stopped")
	return shutdownErr
}

// adapterError pairs an adapter protocol name with its error.
type adapterError struct {
	protocol string
	err      error
}

// stopAdapters stops the adapters in reverse registration order.
func (s *Server) stopAdapters(ctx context.Context, adapters []adapter.Adapter) {
	logger.Info("Initiating graceful shutdown of %d adapter(s)", len(adapters))

	for i := len(adapters) - 1; i >= 0; i-- {
		a := adapters[i]
		if err := a.Stop(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Error stopping %s adapter: %v", a.Protocol(), err)
		}
	}
}

func (s *Server) runHooks(ctx context.Context, hooks []hook) error {
	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		h := hooks[i]
		logger.Debug("Running shutdown hook %s", h.name)
		if err := h.fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", h.name, err))
		}
	}
	return errors.Join(errs...)
}

// Adapters returns a snapshot of the registered adapters.
func (s *Server) Adapters() []adapter.Adapter {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]adapter.Adapter, len(s.adapters))
	copy(out, s.adapters)
	return out
}
