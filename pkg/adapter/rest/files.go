package rest

import (
	"net/http"

	"github.com/marmos91/dittodir/pkg/metrics"
	"github.com/marmos91/dittodir/pkg/service"
)

type filesHandler struct {
	svc     service.Files
	maxBody int64
}

// NewFiles returns the adapter serving one Files backend.
func NewFiles(config Config, svc service.Files, m metrics.HTTPMetrics) *Adapter {
	if svc == nil {
		panic("rest.NewFiles: service is required")
	}
	config.applyDefaults()
	h := &filesHandler{svc: svc, maxBody: config.MaxBodyBytes}

	mux := http.NewServeMux()
	mux.HandleFunc("PUT /files/{fileId}", h.write)
	mux.HandleFunc("GET /files/{fileId}", h.read)
	mux.HandleFunc("DELETE /files/{fileId}", h.delete)
	mux.HandleFunc("DELETE /files", h.deleteAllForUser)

	return newAdapter("files", config, mux, m)
}

func (h *filesHandler) write(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(w, r, h.maxBody)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.svc.WriteFile(r.Context(), r.PathValue("fileId"), data, r.URL.Query().Get("token")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *filesHandler) read(w http.ResponseWriter, r *http.Request) {
	data, err := h.svc.GetFile(r.Context(), r.PathValue("fileId"), r.URL.Query().Get("token"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeBytes(w, data)
}

func (h *filesHandler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteFile(r.Context(), r.PathValue("fileId"), r.URL.Query().Get("token")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *filesHandler) deleteAllForUser(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if err := h.svc.DeleteUserFiles(r.Context(), q.Get("userId"), q.Get("token")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
