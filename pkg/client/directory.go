package client

import (
	"context"

	"github.com/marmos91/dittodir/pkg/service"
)

// RemoteDirectory is the Directory as other services reach it. GetFile
// returns the file content, fetched from whichever replica answers.
type RemoteDirectory interface {
	WriteFile(ctx context.Context, filename string, data []byte, userID, password string) (*service.FileInfo, error)
	DeleteFile(ctx context.Context, filename, userID, password string) error
	ShareFile(ctx context.Context, filename, userID, granteeID, password string) error
	UnshareFile(ctx context.Context, filename, userID, granteeID, password string) error
	GetFile(ctx context.Context, filename, ownerID, requesterID, password string) ([]byte, error)
	LsFile(ctx context.Context, userID, password string) ([]service.FileInfo, error)
	DeleteUserFiles(ctx context.Context, userID, password, token string) error
}

// Directory decorates one Directory instance with retries.
type Directory struct {
	inner RemoteDirectory
	r     *retrier
}

var _ RemoteDirectory = (*Directory)(nil)

// NewDirectory wraps inner, which talks to the Directory at address.
func NewDirectory(address string, inner RemoteDirectory, policy Policy, metrics Metrics) *Directory {
	return &Directory{inner: inner, r: newRetrier(address, policy, metrics)}
}

func (d *Directory) WriteFile(ctx context.Context, filename string, data []byte, userID, password string) (*service.FileInfo, error) {
	return do(ctx, d.r, "dir_write", func(ctx context.Context) (*service.FileInfo, error) {
		return d.inner.WriteFile(ctx, filename, data, userID, password)
	})
}

func (d *Directory) DeleteFile(ctx context.Context, filename, userID, password string) error {
	_, err := do(ctx, d.r, "dir_delete", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, d.inner.DeleteFile(ctx, filename, userID, password)
	})
	return err
}

func (d *Directory) ShareFile(ctx context.Context, filename, userID, granteeID, password string) error {
	_, err := do(ctx, d.r, "dir_share", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, d.inner.ShareFile(ctx, filename, userID, granteeID, password)
	})
	return err
}

func (d *Directory) UnshareFile(ctx context.Context, filename, userID, granteeID, password string) error {
	_, err := do(ctx, d.r, "dir_unshare", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, d.inner.UnshareFile(ctx, filename, userID, granteeID, password)
	})
	return err
}

func (d *Directory) GetFile(ctx context.Context, filename, ownerID, requesterID, password string) ([]byte, error) {
	return do(ctx, d.r, "dir_get", func(ctx context.Context) ([]byte, error) {
		return d.inner.GetFile(ctx, filename, ownerID, requesterID, password)
	})
}

func (d *Directory) LsFile(ctx context.Context, userID, password string) ([]service.FileInfo, error) {
	return do(ctx, d.r, "dir_list", func(ctx context.Context) ([]service.FileInfo, error) {
		return d.inner.LsFile(ctx, userID, password)
	})
}

func (d *Directory) DeleteUserFiles(ctx context.Context, userID, password, token string) error {
	_, err := do(ctx, d.r, "dir_delete_user", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, d.inner.DeleteUserFiles(ctx, userID, password, token)
	})
	return err
}
