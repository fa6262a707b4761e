package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/marmos91/dittodir/internal/logger"
	"github.com/marmos91/dittodir/pkg/service"
)

// Directory talks to the Directory service over HTTP.
type Directory struct {
	endpoint
}

// NewDirectory returns a client for the Directory at base.
//
// Redirects are not followed by the transport: GetFile walks the replica
// queue itself so an unreachable first replica does not fail the read.
func NewDirectory(base string, httpClient *http.Client) *Directory {
	if httpClient == nil {
		httpClient = NewHTTPClient()
	}
	c := *httpClient
	c.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &Directory{endpoint: newEndpoint(base, &c)}
}

func (d *Directory) fileURL(userID, filename string, query url.Values) string {
	return d.url("/directory/"+url.PathEscape(userID)+"/"+url.PathEscape(filename), query)
}

func (d *Directory) WriteFile(ctx context.Context, filename string, data []byte, userID, password string) (*service.FileInfo, error) {
	if data == nil {
		data = []byte{}
	}
	resp, err := d.do(ctx, http.MethodPost, d.fileURL(userID, filename, url.Values{"password": {password}}),
		data, "application/octet-stream")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var info service.FileInfo
	if err := decodeJSON(resp.Body, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (d *Directory) DeleteFile(ctx context.Context, filename, userID, password string) error {
	return d.call(ctx, http.MethodDelete, d.fileURL(userID, filename, url.Values{"password": {password}}), nil, nil)
}

func (d *Directory) shareURL(filename, userID, granteeID, password string) string {
	return d.url("/directory/"+url.PathEscape(userID)+"/"+url.PathEscape(filename)+"/share/"+url.PathEscape(granteeID),
		url.Values{"password": {password}})
}

func (d *Directory) ShareFile(ctx context.Context, filename, userID, granteeID, password string) error {
	return d.call(ctx, http.MethodPost, d.shareURL(filename, userID, granteeID, password), nil, nil)
}

func (d *Directory) UnshareFile(ctx context.Context, filename, userID, granteeID, password string) error {
	return d.call(ctx, http.MethodDelete, d.shareURL(filename, userID, granteeID, password), nil, nil)
}

// GetFile returns the content of filename. When the Directory answers with
// a redirect, each replica location is tried in order until one answers.
func (d *Directory) GetFile(ctx context.Context, filename, ownerID, requesterID, password string) ([]byte, error) {
	target := d.fileURL(ownerID, filename, url.Values{"accUserId": {requesterID}, "password": {password}})
	resp, err := d.do(ctx, http.MethodGet, target, nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusTemporaryRedirect {
		return io.ReadAll(resp.Body)
	}

	locations := Locations(resp)
	if len(locations) == 0 {
		return nil, service.Errorf(service.ErrInternal, "redirect without location")
	}

	var lastErr error
	for _, loc := range locations {
		data, err := d.fetch(ctx, loc)
		if err == nil {
			return data, nil
		}
		logger.Debug("Directory client: replica %s failed: %v", loc, err)
		lastErr = err
	}
	return nil, lastErr
}

// Locations extracts the replica queue from a redirect response: the
// replica list header if present, else the Location header alone.
func Locations(resp *http.Response) []string {
	var out []string
	if h := resp.Header.Get(service.HeaderReplicaLocations); h != "" {
		for _, loc := range strings.Split(h, ",") {
			if loc = strings.TrimSpace(loc); loc != "" {
				out = append(out, loc)
			}
		}
	}
	if len(out) == 0 {
		if loc := resp.Header.Get("Location"); loc != "" {
			out = append(out, loc)
		}
	}
	return out
}

func (d *Directory) fetch(ctx context.Context, loc string) ([]byte, error) {
	resp, err := d.do(ctx, http.MethodGet, loc, nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, loc)
	}
	return io.ReadAll(resp.Body)
}

func (d *Directory) LsFile(ctx context.Context, userID, password string) ([]service.FileInfo, error) {
	var out []service.FileInfo
	target := d.url("/directory/"+url.PathEscape(userID), url.Values{"password": {password}})
	if err := d.call(ctx, http.MethodGet, target, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (d *Directory) DeleteUserFiles(ctx context.Context, userID, password, token string) error {
	target := d.url("/directory/"+url.PathEscape(userID), url.Values{"password": {password}, "token": {token}})
	return d.call(ctx, http.MethodDelete, target, nil, nil)
}

func decodeJSON(r io.Reader, out any) error {
	if err := json.NewDecoder(r).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return service.Errorf(service.ErrInternal, "empty response")
		}
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
