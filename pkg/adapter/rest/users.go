package rest

import (
	"net/http"

	"github.com/marmos91/dittodir/pkg/metrics"
	"github.com/marmos91/dittodir/pkg/service"
)

// maxUserBody bounds JSON account payloads.
const maxUserBody = 64 << 10

type usersHandler struct {
	svc service.Users
}

// NewUsers returns the adapter serving the Users backend.
func NewUsers(config Config, svc service.Users, m metrics.HTTPMetrics) *Adapter {
	if svc == nil {
		panic("rest.NewUsers: service is required")
	}
	h := &usersHandler{svc: svc}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /users", h.create)
	mux.HandleFunc("GET /users", h.search)
	mux.HandleFunc("GET /users/{userId}", h.get)
	mux.HandleFunc("PUT /users/{userId}", h.update)
	mux.HandleFunc("DELETE /users/{userId}", h.delete)

	return newAdapter("users", config, mux, m)
}

func (h *usersHandler) create(w http.ResponseWriter, r *http.Request) {
	var user service.User
	if err := decodeBody(w, r, maxUserBody, &user); err != nil {
		writeError(w, err)
		return
	}
	id, err := h.svc.CreateUser(r.Context(), &user)
	if err != nil {
		writeError(w, err)
		return
	}
	writeStatus(w, http.StatusCreated, id)
}

func (h *usersHandler) get(w http.ResponseWriter, r *http.Request) {
	user, err := h.svc.GetUser(r.Context(), r.PathValue("userId"), r.URL.Query().Get("password"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, user)
}

func (h *usersHandler) update(w http.ResponseWriter, r *http.Request) {
	var update service.User
	if err := decodeBody(w, r, maxUserBody, &update); err != nil {
		writeError(w, err)
		return
	}
	user, err := h.svc.UpdateUser(r.Context(), r.PathValue("userId"), r.URL.Query().Get("password"), &update)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, user)
}

func (h *usersHandler) delete(w http.ResponseWriter, r *http.Request) {
	user, err := h.svc.DeleteUser(r.Context(), r.PathValue("userId"), r.URL.Query().Get("password"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, user)
}

func (h *usersHandler) search(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.SearchUsers(r.Context(), r.URL.Query().Get("query"))
	if err != nil {
		writeError(w, err)
		return
	}
	if users == nil {
		users = []service.User{}
	}
	writeJSON(w, users)
}
