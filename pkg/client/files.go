package client

import (
	"context"

	"github.com/marmos91/dittodir/pkg/service"
)

// Files decorates one Files backend instance with retries.
type Files struct {
	inner service.Files
	r     *retrier
}

var _ service.Files = (*Files)(nil)

// NewFiles wraps inner, which talks to the backend at address.
func NewFiles(address string, inner service.Files, policy Policy, metrics Metrics) *Files {
	return &Files{inner: inner, r: newRetrier(address, policy, metrics)}
}

// Address returns the backend base URL this client is bound to.
func (f *Files) Address() string {
	return f.r.address
}

func (f *Files) WriteFile(ctx context.Context, fileID string, data []byte, token string) error {
	_, err := do(ctx, f.r, "write", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, f.inner.WriteFile(ctx, fileID, data, token)
	})
	return err
}

func (f *Files) GetFile(ctx context.Context, fileID, token string) ([]byte, error) {
	return do(ctx, f.r, "read", func(ctx context.Context) ([]byte, error) {
		return f.inner.GetFile(ctx, fileID, token)
	})
}

func (f *Files) DeleteFile(ctx context.Context, fileID, token string) error {
	_, err := do(ctx, f.r, "delete", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, f.inner.DeleteFile(ctx, fileID, token)
	})
	return err
}

func (f *Files) DeleteUserFiles(ctx context.Context, userID, token string) error {
	_, err := do(ctx, f.r, "delete_user", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, f.inner.DeleteUserFiles(ctx, userID, token)
	})
	return err
}
