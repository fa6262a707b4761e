package adapter

import "context"

// Adapter is a network front end managed by server.Server.
//
// Each adapter exposes one service (Directory, Files or Users) over one
// protocol and owns its listener.
//
// Lifecycle:
//  1. Creation: the adapter is built with its configuration and service
//  2. Startup: Serve() starts listening and blocks until shutdown
//  3. Shutdown: Stop() initiates graceful shutdown with timeout
//
// Thread safety:
// Implementations must be safe for concurrent use. Stop() may be called
// concurrently with Serve().
type Adapter interface {
	// Serve starts the server and blocks until the context is cancelled
	// or an unrecoverable error occurs.
	//
	// When the context is cancelled, Serve must stop accepting requests,
	// let in-flight requests finish (bounded by the shutdown timeout) and
	// return nil.
	//
	// If Serve returns before context cancellation, the server treats it
	// as fatal and stops all other adapters.
	Serve(ctx context.Context) error

	// Stop initiates graceful shutdown. It must be idempotent, safe to
	// call concurrently with Serve(), and respect the context deadline.
	Stop(ctx context.Context) error

	// Protocol returns the human-readable name used in logs and metrics,
	// for example "REST/directory".
	Protocol() string

	// Port returns the TCP port the adapter listens on.
	Port() int
}
