// Package local implements the in-process transport variant: backends that
// live in the same process and are addressed as "local://<name>".
package local

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"sync"

	"github.com/marmos91/dittodir/pkg/service"
)

// Scheme is the URL scheme of in-process backends.
const Scheme = "local"

// Address returns the base URL of the in-process backend called name.
func Address(name string) string {
	return Scheme + "://" + name
}

// Hub holds the in-process Files backends of one process.
type Hub struct {
	mu    sync.RWMutex
	files map[string]service.Files
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{files: make(map[string]service.Files)}
}

// Register exposes f under name and returns its address.
func (h *Hub) Register(name string, f service.Files) (string, error) {
	if name == "" {
		return "", fmt.Errorf("cannot register local backend with empty name")
	}
	if f == nil {
		return "", fmt.Errorf("cannot register nil local backend %q", name)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.files[name]; exists {
		return "", fmt.Errorf("local backend %q already registered", name)
	}
	h.files[name] = f
	return Address(name), nil
}

// Unregister removes the backend called name. Calls through clients dialed
// earlier start failing as if the backend were unreachable.
func (h *Hub) Unregister(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.files, name)
}

// Names lists registered backends in sorted order.
func (h *Hub) Names() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	names := make([]string, 0, len(h.files))
	for n := range h.files {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Dial returns a client for the backend at address. The backend does not
// have to be registered yet; it is resolved on every call.
func (h *Hub) Dial(address string) (service.Files, error) {
	u, err := url.Parse(address)
	if err != nil {
		return nil, fmt.Errorf("parse local address %q: %w", address, err)
	}
	if u.Scheme != Scheme || u.Host == "" {
		return nil, fmt.Errorf("not a local address: %q", address)
	}
	return &Files{hub: h, name: u.Host}, nil
}

// ErrUnreachable is returned when the named backend is not registered.
type ErrUnreachable struct {
	Name string
}

func (e *ErrUnreachable) Error() string {
	return fmt.Sprintf("local backend %q is not registered", e.Name)
}

// Files forwards calls to a registered in-process backend. Data is copied
// on the way in and out so caller and backend never share a buffer.
type Files struct {
	hub  *Hub
	name string
}

var _ service.Files = (*Files)(nil)

func (f *Files) target() (service.Files, error) {
	f.hub.mu.RLock()
	defer f.hub.mu.RUnlock()

	t, ok := f.hub.files[f.name]
	if !ok {
		return nil, &ErrUnreachable{Name: f.name}
	}
	return t, nil
}

func (f *Files) WriteFile(ctx context.Context, fileID string, data []byte, token string) error {
	t, err := f.target()
	if err != nil {
		return err
	}
	return t.WriteFile(ctx, fileID, append([]byte(nil), data...), token)
}

func (f *Files) GetFile(ctx context.Context, fileID, token string) ([]byte, error) {
	t, err := f.target()
	if err != nil {
		return nil, err
	}
	data, err := t.GetFile(ctx, fileID, token)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), data...), nil
}

func (f *Files) DeleteFile(ctx context.Context, fileID, token string) error {
	t, err := f.target()
	if err != nil {
		return err
	}
	return t.DeleteFile(ctx, fileID, token)
}

func (f *Files) DeleteUserFiles(ctx context.Context, userID, token string) error {
	t, err := f.target()
	if err != nil {
		return err
	}
	return t.DeleteUserFiles(ctx, userID, token)
}
