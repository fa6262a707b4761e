// Package rest exposes the Directory, Files and Users services over
// HTTP/JSON.
//
// Every adapter shares the same skeleton: a Go 1.22 pattern mux wrapped in
// request-id, logging, metrics and rate-limit middleware, served by an
// http.Server with graceful shutdown. Errors are answered with the status
// mapped from their service.ErrorCode and a {"code","message"} body.
package rest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/marmos91/dittodir/internal/logger"
	"github.com/marmos91/dittodir/internal/ratelimiter"
	"github.com/marmos91/dittodir/pkg/adapter"
	"github.com/marmos91/dittodir/pkg/metrics"
)

// Config holds the HTTP server parameters shared by all REST adapters.
//
// Default values (applied by the constructors if zero):
//   - ReadTimeout: 30s
//   - WriteTimeout: 60s
//   - IdleTimeout: 2m
//   - ShutdownTimeout: 30s
//   - MaxBodyBytes: 64MiB
type Config struct {
	// Port is the TCP port to listen on. 0 picks a free port.
	Port int `mapstructure:"port" validate:"min=0,max=65535"`

	ReadTimeout     time.Duration `mapstructure:"read_timeout" validate:"min=0"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" validate:"min=0"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" validate:"min=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=0"`

	// MaxBodyBytes bounds uploaded file content.
	MaxBodyBytes int64 `mapstructure:"max_body_bytes" validate:"min=0"`

	// RateLimit throttles requests per client address. A zero rate
	// disables limiting.
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig configures the per-client token bucket.
type RateLimitConfig struct {
	RequestsPerSecond uint `mapstructure:"requests_per_second"`
	Burst             uint `mapstructure:"burst"`
}

func (c *Config) applyDefaults() {
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 60 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 2 * time.Minute
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
	if c.MaxBodyBytes == 0 {
		c.MaxBodyBytes = 64 << 20
	}
	if c.RateLimit.RequestsPerSecond > 0 && c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = c.RateLimit.RequestsPerSecond * 2
	}
}

func (c *Config) validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d: must be 0-65535", c.Port)
	}
	if c.ReadTimeout < 0 || c.WriteTimeout < 0 || c.IdleTimeout < 0 || c.ShutdownTimeout < 0 {
		return fmt.Errorf("timeouts must be >= 0")
	}
	if c.MaxBodyBytes < 0 {
		return fmt.Errorf("invalid MaxBodyBytes %d: must be >= 0", c.MaxBodyBytes)
	}
	return nil
}

// Adapter serves one service's routes over HTTP.
type Adapter struct {
	name    string
	config  Config
	handler http.Handler
	server  *http.Server
	limiter *ratelimiter.PerClient

	mu       sync.Mutex
	listener net.Listener

	shutdownOnce sync.Once
	shutdownErr  error
}

var _ adapter.Adapter = (*Adapter)(nil)

// newAdapter applies defaults, validates config and wraps mux in the
// middleware chain. Invalid configuration panics.
func newAdapter(name string, config Config, mux *http.ServeMux, m metrics.HTTPMetrics) *Adapter {
	config.applyDefaults()
	if err := config.validate(); err != nil {
		panic(fmt.Sprintf("invalid REST %s config: %v", name, err))
	}
	if m == nil {
		m = metrics.NewNoopHTTPMetrics()
	}

	limiter := ratelimiter.NewPerClient(config.RateLimit.RequestsPerSecond, config.RateLimit.Burst, 0)

	var h http.Handler = mux
	h = rateLimit(name, limiter, m, h)
	h = observe(name, m, h)
	h = requestID(h)

	a := &Adapter{
		name:    name,
		config:  config,
		handler: h,
		limiter: limiter,
	}
	a.server = &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       config.ReadTimeout,
		WriteTimeout:      config.WriteTimeout,
		IdleTimeout:       config.IdleTimeout,
	}
	return a
}

// Handler returns the full middleware-wrapped handler.
func (a *Adapter) Handler() http.Handler {
	return a.handler
}

// Serve listens on the configured port and serves until ctx is cancelled.
func (a *Adapter) Serve(ctx context.Context) error {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", a.config.Port))
	if err != nil {
		return fmt.Errorf("failed to create %s listener on port %d: %w", a.Protocol(), a.config.Port, err)
	}
	return a.ServeListener(ctx, listener)
}

// ServeListener is Serve on an existing listener.
func (a *Adapter) ServeListener(ctx context.Context, listener net.Listener) error {
	a.mu.Lock()
	a.listener = listener
	a.mu.Unlock()

	logger.Info("%s server listening on %s", a.Protocol(), listener.Addr())

	go func() {
		<-ctx.Done()
		logger.Info("%s shutdown signal received: %v", a.Protocol(), ctx.Err())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.config.ShutdownTimeout)
		defer cancel()
		_ = a.Stop(shutdownCtx)
	}()

	if a.limiter.Enabled() {
		go a.sweepLimiter(ctx)
	}

	err := a.server.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (a *Adapter) sweepLimiter(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := a.limiter.Sweep(); n > 0 {
				logger.Debug("%s rate limiter: evicted %d idle client(s)", a.Protocol(), n)
			}
		}
	}
}

// Stop shuts the server down gracefully. It is safe to call multiple times.
func (a *Adapter) Stop(ctx context.Context) error {
	a.shutdownOnce.Do(func() {
		if err := a.server.Shutdown(ctx); err != nil {
			a.shutdownErr = fmt.Errorf("%s shutdown: %w", a.Protocol(), err)
			logger.Warn("%s shutdown did not complete: %v", a.Protocol(), err)
			return
		}
		logger.Info("%s server stopped gracefully", a.Protocol())
	})
	return a.shutdownErr
}

// Protocol returns "REST/<service>".
func (a *Adapter) Protocol() string {
	return "REST/" + a.name
}

// Port returns the bound port once serving, else the configured one.
func (a *Adapter) Port() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener != nil {
		if addr, ok := a.listener.Addr().(*net.TCPAddr); ok {
			return addr.Port
		}
	}
	return a.config.Port
}
