// Package rest implements the HTTP/JSON transport variant of the Files,
// Users and Directory clients.
//
// Every non-2xx answer whose body or status maps onto the service taxonomy
// becomes a *service.Error. Anything else (connection failures, undecodable
// bodies, unexpected statuses) is returned as a plain error so the retry
// decorator treats it as a transport fault.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/marmos91/dittodir/pkg/service"
)

const maxErrorBody = 64 << 10

// NewHTTPClient returns an http.Client with connection reuse tuned for
// service-to-service traffic. Per-call deadlines come from the context.
func NewHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 16,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

type endpoint struct {
	base string
	http *http.Client
}

func newEndpoint(base string, httpClient *http.Client) endpoint {
	if httpClient == nil {
		httpClient = NewHTTPClient()
	}
	return endpoint{base: strings.TrimSuffix(base, "/"), http: httpClient}
}

func (e endpoint) url(path string, query url.Values) string {
	u := e.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// do sends the request and returns the response for 2xx and 3xx statuses.
// The caller must close the body.
func (e endpoint) do(ctx context.Context, method, target string, body []byte, contentType string) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, rd)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := e.http.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, decodeError(resp)
	}
	return resp, nil
}

// call sends the request and decodes a JSON answer into out (if non-nil).
func (e endpoint) call(ctx context.Context, method, target string, in any, out any) error {
	var (
		body []byte
		ct   string
	)
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return service.Errorf(service.ErrBadRequest, "encode request: %v", err)
		}
		body, ct = b, "application/json"
	}

	resp, err := e.do(ctx, method, target, body, ct)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", target, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var body service.ErrorResponse
	if json.Unmarshal(raw, &body) == nil {
		if se, ok := body.Err(); ok {
			return se
		}
	}

	// 5xx without a declared body usually comes from a proxy or a crashed
	// handler; leave it retryable.
	if code, ok := service.CodeFromStatus(resp.StatusCode); ok && resp.StatusCode < 500 {
		return service.Errorf(code, "%s", strings.TrimSpace(string(raw)))
	}
	return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, resp.Request.URL.Redacted())
}
