package rest

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/marmos91/dittodir/internal/logger"
	"github.com/marmos91/dittodir/pkg/service"
)

func writeStatus(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Debug("REST: failed to encode response: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, body any) {
	writeStatus(w, http.StatusOK, body)
}

func writeBytes(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// writeError answers with the status mapped from err's code. Errors outside
// the service taxonomy become INTERNAL_ERROR.
func writeError(w http.ResponseWriter, err error) {
	se := service.AsError(err)
	if se.Code == service.ErrInternal {
		logger.Error("REST: internal error: %v", err)
	}
	writeStatus(w, se.Code.HTTPStatus(), se.Response())
}

// readBody reads at most limit bytes of the request body.
func readBody(w http.ResponseWriter, r *http.Request, limit int64) ([]byte, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, service.Errorf(service.ErrBadRequest, "body exceeds %d bytes", limit)
		}
		return nil, service.Errorf(service.ErrBadRequest, "read body: %v", err)
	}
	return data, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, limit int64, out any) error {
	data, err := readBody(w, r, limit)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return service.Errorf(service.ErrBadRequest, "invalid JSON body: %v", err)
	}
	return nil
}
