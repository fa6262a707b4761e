package rest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/marmos91/dittodir/pkg/service"
)

// Files talks to one Files backend over HTTP.
type Files struct {
	endpoint
}

var _ service.Files = (*Files)(nil)

// NewFiles returns a client for the Files backend at base. A nil
// httpClient selects NewHTTPClient().
func NewFiles(base string, httpClient *http.Client) *Files {
	return &Files{endpoint: newEndpoint(base, httpClient)}
}

func (f *Files) fileURL(fileID, token string) string {
	return f.url(service.FilesPath+url.PathEscape(fileID), url.Values{"token": {token}})
}

func (f *Files) WriteFile(ctx context.Context, fileID string, data []byte, token string) error {
	if data == nil {
		data = []byte{}
	}
	resp, err := f.do(ctx, http.MethodPut, f.fileURL(fileID, token), data, "application/octet-stream")
	if err != nil {
		return err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.Body.Close()
}

func (f *Files) GetFile(ctx context.Context, fileID, token string) ([]byte, error) {
	resp, err := f.do(ctx, http.MethodGet, f.fileURL(fileID, token), nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", fileID, err)
	}
	return data, nil
}

func (f *Files) DeleteFile(ctx context.Context, fileID, token string) error {
	return f.call(ctx, http.MethodDelete, f.fileURL(fileID, token), nil, nil)
}

func (f *Files) DeleteUserFiles(ctx context.Context, userID, token string) error {
	target := f.url("/files", url.Values{"userId": {userID}, "token": {token}})
	return f.call(ctx, http.MethodDelete, target, nil, nil)
}
