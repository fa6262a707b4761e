package rest

import (
	"context"
	"net/http"
	"net/url"

	"github.com/marmos91/dittodir/pkg/service"
)

// Users talks to the Users backend over HTTP.
type Users struct {
	endpoint
}

var _ service.Users = (*Users)(nil)

// NewUsers returns a client for the Users backend at base.
func NewUsers(base string, httpClient *http.Client) *Users {
	return &Users{endpoint: newEndpoint(base, httpClient)}
}

func (u *Users) userURL(userID, password string) string {
	return u.url("/users/"+url.PathEscape(userID), url.Values{"password": {password}})
}

func (u *Users) CreateUser(ctx context.Context, user *service.User) (string, error) {
	var id string
	if err := u.call(ctx, http.MethodPost, u.url("/users", nil), user, &id); err != nil {
		return "", err
	}
	return id, nil
}

func (u *Users) GetUser(ctx context.Context, userID, password string) (*service.User, error) {
	var out service.User
	if err := u.call(ctx, http.MethodGet, u.userURL(userID, password), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (u *Users) UpdateUser(ctx context.Context, userID, password string, user *service.User) (*service.User, error) {
	var out service.User
	if err := u.call(ctx, http.MethodPut, u.userURL(userID, password), user, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (u *Users) DeleteUser(ctx context.Context, userID, password string) (*service.User, error) {
	var out service.User
	if err := u.call(ctx, http.MethodDelete, u.userURL(userID, password), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (u *Users) SearchUsers(ctx context.Context, pattern string) ([]service.User, error) {
	var out []service.User
	if err := u.call(ctx, http.MethodGet, u.url("/users", url.Values{"query": {pattern}}), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
