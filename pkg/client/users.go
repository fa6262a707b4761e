package client

import (
	"context"

	"github.com/marmos91/dittodir/pkg/service"
)

// Users decorates one Users backend instance with retries.
type Users struct {
	inner service.Users
	r     *retrier
}

var _ service.Users = (*Users)(nil)

// NewUsers wraps inner, which talks to the backend at address.
func NewUsers(address string, inner service.Users, policy Policy, metrics Metrics) *Users {
	return &Users{inner: inner, r: newRetrier(address, policy, metrics)}
}

func (u *Users) CreateUser(ctx context.Context, user *service.User) (string, error) {
	return do(ctx, u.r, "create_user", func(ctx context.Context) (string, error) {
		return u.inner.CreateUser(ctx, user)
	})
}

func (u *Users) GetUser(ctx context.Context, userID, password string) (*service.User, error) {
	return do(ctx, u.r, "get_user", func(ctx context.Context) (*service.User, error) {
		return u.inner.GetUser(ctx, userID, password)
	})
}

func (u *Users) UpdateUser(ctx context.Context, userID, password string, user *service.User) (*service.User, error) {
	return do(ctx, u.r, "update_user", func(ctx context.Context) (*service.User, error) {
		return u.inner.UpdateUser(ctx, userID, password, user)
	})
}

func (u *Users) DeleteUser(ctx context.Context, userID, password string) (*service.User, error) {
	return do(ctx, u.r, "delete_user", func(ctx context.Context) (*service.User, error) {
		return u.inner.DeleteUser(ctx, userID, password)
	})
}

func (u *Users) SearchUsers(ctx context.Context, pattern string) ([]service.User, error) {
	return do(ctx, u.r, "search_users", func(ctx context.Context) ([]service.User, error) {
		return u.inner.SearchUsers(ctx, pattern)
	})
}
