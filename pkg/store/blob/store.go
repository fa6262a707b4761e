// Package blob defines the byte storage used by Files backends.
//
// A Store maps slash-separated keys to immutable byte slices. Keys are
// produced by the Files service as "<userId>/<filename>" with both parts
// path-escaped, so a user's blobs share the "<userId>/" prefix and can be
// removed together with DeletePrefix.
package blob

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound indicates the requested key does not exist.
	ErrNotFound = errors.New("blob not found")

	// ErrInvalidKey indicates the key cannot be stored safely.
	ErrInvalidKey = errors.New("invalid blob key")
)

// Store is a flat key/value byte store.
//
// Implementations must be safe for concurrent use. Put overwrites. Get
// returns a slice the caller owns. Delete returns ErrNotFound when the key
// does not exist.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes every key starting with prefix and returns how
	// many were removed. Removing nothing is not an error.
	DeletePrefix(ctx context.Context, prefix string) (int, error)

	Close() error
}

// ValidateKey rejects keys that could escape a filesystem root or that
// object stores handle inconsistently.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
	if strings.HasPrefix(key, "/") || strings.ContainsRune(key, 0) || strings.Contains(key, "\\") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return fmt.Errorf("%w: %q", ErrInvalidKey, key)
		}
	}
	return nil
}

// Metrics observes store operations.
type Metrics interface {
	ObserveOperation(store, operation string, duration time.Duration, bytes int, err error)
}

// Instrument wraps s so every call is reported to metrics under name. A nil
// metrics returns s unchanged.
func Instrument(s Store, name string, metrics Metrics) Store {
	if metrics == nil {
		return s
	}
	return &instrumented{Store: s, name: name, metrics: metrics}
}

type instrumented struct {
	Store
	name    string
	metrics Metrics
}

func (i *instrumented) Put(ctx context.Context, key string, data []byte) error {
	start := time.Now()
	err := i.Store.Put(ctx, key, data)
	i.metrics.ObserveOperation(i.name, "put", time.Since(start), len(data), err)
	return err
}

func (i *instrumented) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	data, err := i.Store.Get(ctx, key)
	i.metrics.ObserveOperation(i.name, "get", time.Since(start), len(data), err)
	return data, err
}

func (i *instrumented) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := i.Store.Delete(ctx, key)
	i.metrics.ObserveOperation(i.name, "delete", time.Since(start), 0, err)
	return err
}

func (i *instrumented) DeletePrefix(ctx context.Context, prefix string) (int, error) {
	start := time.Now()
	n, err := i.Store.DeletePrefix(ctx, prefix)
	i.metrics.ObserveOperation(i.name, "delete_prefix", time.Since(start), 0, err)
	return n, err
}
