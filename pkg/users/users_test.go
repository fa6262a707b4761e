package users

import (
	"context"
	"errors"
	"testing"

	"github.com/marmos91/dittodir/pkg/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newService(t *testing.T) *Service {
	t.Helper()
	s := New(bcrypt.MinCost)
	ctx := context.Background()
	for _, u := range []service.User{
		{UserID: "alice", FullName: "Alice Liddell", Email: "alice@example.com", Password: "pw-a"},
		{UserID: "bob", FullName: "Bob Builder", Password: "pw-b"},
	} {
		_, err := s.CreateUser(ctx, &u)
		require.NoError(t, err)
	}
	return s
}

func TestCreateUser(t *testing.T) {
	ctx := context.Background()
	s := newService(t)

	_, err := s.CreateUser(ctx, &service.User{UserID: "alice", Password: "x"})
	assert.Equal(t, service.ErrConflict, service.CodeOf(err))

	tests := []struct {
		name string
		user *service.User
	}{
		{"Nil", nil},
		{"EmptyID", &service.User{Password: "x"}},
		{"DelimiterInID", &service.User{UserID: "a$$$b", Password: "x"}},
		{"EmptyPassword", &service.User{UserID: "carol"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.CreateUser(ctx, tt.user)
			assert.Equal(t, service.ErrBadRequest, service.CodeOf(err))
		})
	}
}

func TestGetUser(t *testing.T) {
	ctx := context.Background()
	s := newService(t)

	u, err := s.GetUser(ctx, "alice", "pw-a")
	require.NoError(t, err)
	assert.Equal(t, "Alice Liddell", u.FullName)
	assert.Empty(t, u.Password)

	_, err = s.GetUser(ctx, "alice", "wrong")
	assert.Equal(t, service.ErrForbidden, service.CodeOf(err))

	_, err = s.GetUser(ctx, "alice", "")
	assert.Equal(t, service.ErrForbidden, service.CodeOf(err))

	_, err = s.GetUser(ctx, "ghost", "")
	assert.Equal(t, service.ErrNotFound, service.CodeOf(err))
}

func TestUpdateUser(t *testing.T) {
	ctx := context.Background()
	s := newService(t)

	u, err := s.UpdateUser(ctx, "alice", "pw-a", &service.User{Email: "new@example.com", Password: "pw-new"})
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", u.Email)
	assert.Equal(t, "Alice Liddell", u.FullName)

	_, err = s.GetUser(ctx, "alice", "pw-a")
	assert.Equal(t, service.ErrForbidden, service.CodeOf(err))
	_, err = s.GetUser(ctx, "alice", "pw-new")
	assert.NoError(t, err)

	_, err = s.UpdateUser(ctx, "alice", "pw-new", &service.User{UserID: "mallory"})
	assert.Equal(t, service.ErrBadRequest, service.CodeOf(err))
}

func TestDeleteUserRunsHook(t *testing.T) {
	ctx := context.Background()
	s := newService(t)

	var got []string
	s.OnDelete(func(ctx context.Context, user service.User, password string) error {
		got = append(got, user.UserID+":"+password)
		return errors.New("directory unreachable")
	})

	_, err := s.DeleteUser(ctx, "alice", "wrong")
	assert.Equal(t, service.ErrForbidden, service.CodeOf(err))
	assert.Empty(t, got)

	u, err := s.DeleteUser(ctx, "alice", "pw-a")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.UserID)
	assert.Equal(t, []string{"alice:pw-a"}, got)

	_, err = s.GetUser(ctx, "alice", "pw-a")
	assert.Equal(t, service.ErrNotFound, service.CodeOf(err))
}

func TestSearchUsers(t *testing.T) {
	ctx := context.Background()
	s := newService(t)

	all, err := s.SearchUsers(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "alice", all[0].UserID)

	found, err := s.SearchUsers(ctx, "BUILD")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "bob", found[0].UserID)

	none, err := s.SearchUsers(ctx, "zzz")
	require.NoError(t, err)
	assert.Empty(t, none)
}
