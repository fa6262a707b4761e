package rest

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/marmos91/dittodir/internal/logger"
	"github.com/marmos91/dittodir/pkg/metrics"
	"github.com/marmos91/dittodir/pkg/service"
	"github.com/marmos91/dittodir/pkg/token"
)

// DirectoryService is the Directory surface served over HTTP.
type DirectoryService interface {
	WriteFile(ctx context.Context, filename string, data []byte, userID, password string) (*service.FileInfo, error)
	DeleteFile(ctx context.Context, filename, userID, password string) error
	ShareFile(ctx context.Context, filename, userID, granteeID, password string) error
	UnshareFile(ctx context.Context, filename, userID, granteeID, password string) error
	GetFile(ctx context.Context, filename, ownerID, requesterID, password string) ([]string, error)
	LsFile(ctx context.Context, userID, password string) ([]service.FileInfo, error)
	DeleteUserFiles(ctx context.Context, userID, password, token string) error
}

// Backends resolves a replica base URL to a Files client.
type Backends interface {
	Files(address string) (service.Files, error)
}

// DirectoryOptions are the collaborators of the Directory adapter.
type DirectoryOptions struct {
	// Backends and Tokens let GetFile serve replicas that HTTP clients
	// cannot reach (in-process backends) and sign redirect targets.
	Backends Backends
	Tokens   *token.Signer
	Metrics  metrics.HTTPMetrics
}

type directoryHandler struct {
	svc      DirectoryService
	backends Backends
	tokens   *token.Signer
	maxBody  int64
}

// NewDirectory returns the adapter serving the Directory routes.
func NewDirectory(config Config, svc DirectoryService, opts DirectoryOptions) *Adapter {
	if svc == nil || opts.Backends == nil || opts.Tokens == nil {
		panic("rest.NewDirectory: service, backends and tokens are required")
	}
	config.applyDefaults()
	h := &directoryHandler{
		svc:      svc,
		backends: opts.Backends,
		tokens:   opts.Tokens,
		maxBody:  config.MaxBodyBytes,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /directory/{userId}/{filename}", h.writeFile)
	mux.HandleFunc("DELETE /directory/{userId}/{filename}", h.deleteFile)
	mux.HandleFunc("GET /directory/{userId}/{filename}", h.getFile)
	mux.HandleFunc("POST /directory/{userId}/{filename}/share/{userIdShare}", h.shareFile)
	mux.HandleFunc("DELETE /directory/{userId}/{filename}/share/{userIdShare}", h.unshareFile)
	mux.HandleFunc("GET /directory/{userId}", h.lsFile)
	mux.HandleFunc("DELETE /directory/{userId}", h.deleteUserFiles)

	return newAdapter("directory", config, mux, opts.Metrics)
}

func (h *directoryHandler) writeFile(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(w, r, h.maxBody)
	if err != nil {
		writeError(w, err)
		return
	}
	info, err := h.svc.WriteFile(r.Context(), r.PathValue("filename"), data,
		r.PathValue("userId"), r.URL.Query().Get("password"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, info)
}

func (h *directoryHandler) deleteFile(w http.ResponseWriter, r *http.Request) {
	err := h.svc.DeleteFile(r.Context(), r.PathValue("filename"),
		r.PathValue("userId"), r.URL.Query().Get("password"))
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *directoryHandler) shareFile(w http.ResponseWriter, r *http.Request) {
	h.updateShare(w, r, h.svc.ShareFile)
}

func (h *directoryHandler) unshareFile(w http.ResponseWriter, r *http.Request) {
	h.updateShare(w, r, h.svc.UnshareFile)
}

func (h *directoryHandler) updateShare(w http.ResponseWriter, r *http.Request,
	op func(ctx context.Context, filename, userID, granteeID, password string) error) {
	err := op(r.Context(), r.PathValue("filename"), r.PathValue("userId"),
		r.PathValue("userIdShare"), r.URL.Query().Get("password"))
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// getFile answers with the content of the first reachable in-process
// replica, or redirects the caller to the HTTP replicas.
func (h *directoryHandler) getFile(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	locations, err := h.svc.GetFile(r.Context(), r.PathValue("filename"),
		r.PathValue("userId"), q.Get("accUserId"), q.Get("password"))
	if err != nil {
		writeError(w, err)
		return
	}

	var (
		remote  []string
		lastErr error
	)
	for _, loc := range locations {
		if isHTTP(loc) {
			remote = append(remote, loc)
			continue
		}
		data, err := h.fetchLocal(r.Context(), loc)
		if err == nil {
			writeBytes(w, data)
			return
		}
		logger.Debug("Directory: replica %s failed: %v", loc, err)
		lastErr = err
	}

	if len(remote) == 0 {
		if lastErr == nil {
			lastErr = service.Errorf(service.ErrNotFound, "no replica available")
		}
		writeError(w, lastErr)
		return
	}

	signed := make([]string, len(remote))
	for i, loc := range remote {
		signed[i] = h.sign(loc)
	}
	w.Header().Set("Location", signed[0])
	w.Header().Set(service.HeaderReplicaLocations, strings.Join(signed, ","))
	w.WriteHeader(http.StatusTemporaryRedirect)
}

func (h *directoryHandler) fetchLocal(ctx context.Context, loc string) ([]byte, error) {
	base, fileID, ok := service.ParseLocation(loc)
	if !ok {
		return nil, service.Errorf(service.ErrInternal, "malformed location %q", loc)
	}
	files, err := h.backends.Files(base)
	if err != nil {
		return nil, err
	}
	return files.GetFile(ctx, fileID, h.tokens.IssueNow(fileID))
}

// sign appends a fresh token for the location's fileId.
func (h *directoryHandler) sign(loc string) string {
	_, fileID, ok := service.ParseLocation(loc)
	if !ok {
		return loc
	}
	return loc + "?" + url.Values{"token": {h.tokens.IssueNow(fileID)}}.Encode()
}

func isHTTP(loc string) bool {
	u, err := url.Parse(loc)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

func (h *directoryHandler) lsFile(w http.ResponseWriter, r *http.Request) {
	files, err := h.svc.LsFile(r.Context(), r.PathValue("userId"), r.URL.Query().Get("password"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, files)
}

func (h *directoryHandler) deleteUserFiles(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if err := h.svc.DeleteUserFiles(r.Context(), r.PathValue("userId"), q.Get("password"), q.Get("token")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
