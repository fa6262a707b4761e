// Package files implements a Files backend: a dumb byte store keyed by
// fileId that trusts only tokens minted with the shared secret.
//
// A fileId "<userId>$$$<filename>" is stored under the blob key
// "<userId>/<filename>" with both parts path-escaped, so all of a user's
// blobs can be removed in one prefix delete.
package files

import (
	"context"
	"errors"
	"net/url"

	"github.com/marmos91/dittodir/internal/logger"
	"github.com/marmos91/dittodir/pkg/service"
	"github.com/marmos91/dittodir/pkg/store/blob"
	"github.com/marmos91/dittodir/pkg/token"
)

// Service serves the Files operations over a blob store.
type Service struct {
	store  blob.Store
	tokens *token.Signer
}

var _ service.Files = (*Service)(nil)

// New returns a Files backend storing blobs in store.
func New(store blob.Store, tokens *token.Signer) *Service {
	if store == nil {
		panic("files: store cannot be nil")
	}
	if tokens == nil {
		panic("files: token signer cannot be nil")
	}
	return &Service{store: store, tokens: tokens}
}

// Key returns the blob key of fileID.
func Key(fileID string) (string, error) {
	userID, filename, ok := service.SplitFileID(fileID)
	if !ok {
		return "", service.Errorf(service.ErrBadRequest, "invalid file id %q", fileID)
	}
	return url.PathEscape(userID) + "/" + url.PathEscape(filename), nil
}

// UserPrefix returns the blob key prefix shared by all files of userID.
func UserPrefix(userID string) string {
	return url.PathEscape(userID) + "/"
}

func (s *Service) authorize(subject, tok string) error {
	if !s.tokens.Validate(subject, tok) {
		return service.Errorf(service.ErrForbidden, "invalid token for %s", subject)
	}
	return nil
}

// storeError maps blob errors to the service taxonomy.
func storeError(err error, fileID string) error {
	switch {
	case errors.Is(err, blob.ErrNotFound):
		return service.Errorf(service.ErrNotFound, "file %s", fileID)
	case errors.Is(err, blob.ErrInvalidKey):
		return service.Errorf(service.ErrBadRequest, "invalid file id %q", fileID)
	case errors.Is(err, context.DeadlineExceeded):
		return service.Errorf(service.ErrTimeout, "%s: %v", fileID, err)
	default:
		return service.Errorf(service.ErrInternal, "%s: %v", fileID, err)
	}
}

func (s *Service) WriteFile(ctx context.Context, fileID string, data []byte, tok string) error {
	key, err := Key(fileID)
	if err != nil {
		return err
	}
	if err := s.authorize(fileID, tok); err != nil {
		return err
	}
	if err := s.store.Put(ctx, key, data); err != nil {
		logger.Warn("Files: put %s failed: %v", key, err)
		return storeError(err, fileID)
	}
	logger.Debug("Files: stored %s (%d bytes)", key, len(data))
	return nil
}

func (s *Service) GetFile(ctx context.Context, fileID, tok string) ([]byte, error) {
	key, err := Key(fileID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(fileID, tok); err != nil {
		return nil, err
	}
	data, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, storeError(err, fileID)
	}
	return data, nil
}

func (s *Service) DeleteFile(ctx context.Context, fileID, tok string) error {
	key, err := Key(fileID)
	if err != nil {
		return err
	}
	if err := s.authorize(fileID, tok); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, key); err != nil {
		return storeError(err, fileID)
	}
	logger.Debug("Files: deleted %s", key)
	return nil
}

// DeleteUserFiles removes every blob of userID. Removing nothing succeeds.
func (s *Service) DeleteUserFiles(ctx context.Context, userID, tok string) error {
	if !service.ValidName(userID) {
		return service.Errorf(service.ErrBadRequest, "invalid user id %q", userID)
	}
	if err := s.authorize(userID, tok); err != nil {
		return err
	}
	n, err := s.store.DeletePrefix(ctx, UserPrefix(userID))
	if err != nil {
		return storeError(err, userID)
	}
	logger.Info("Files: removed %d blob(s) of %s", n, userID)
	return nil
}
