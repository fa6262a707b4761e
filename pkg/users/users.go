// Package users implements the Users backend: an in-memory account store
// with bcrypt-hashed passwords.
package users

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/marmos91/dittodir/internal/logger"
	"github.com/marmos91/dittodir/pkg/service"
	"golang.org/x/crypto/bcrypt"
)

// DeleteHook runs after a user is removed. password is the one the
// deletion was authorized with.
type DeleteHook func(ctx context.Context, user service.User, password string) error

type account struct {
	user service.User // Password always empty
	hash []byte
}

// Service is the Users backend.
//
// Thread safety:
// All methods are safe for concurrent use. Password hashing and comparison
// happen outside the lock.
type Service struct {
	mu       sync.RWMutex
	accounts map[string]*account

	cost     int
	onDelete DeleteHook
}

var _ service.Users = (*Service)(nil)

// New returns an empty Users backend. A cost of 0 selects
// bcrypt.DefaultCost.
func New(cost int) *Service {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &Service{
		accounts: make(map[string]*account),
		cost:     cost,
	}
}

// OnDelete installs the hook run after each successful DeleteUser.
func (s *Service) OnDelete(hook DeleteHook) {
	s.mu.Lock()
	s.onDelete = hook
	s.mu.Unlock()
}

func (s *Service) hash(password string) ([]byte, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, service.Errorf(service.ErrBadRequest, "password too long")
		}
		return nil, service.Errorf(service.ErrInternal, "hash password: %v", err)
	}
	return h, nil
}

// authenticate returns the account of userID if password matches.
func (s *Service) authenticate(userID, password string) (*account, error) {
	s.mu.RLock()
	acc, ok := s.accounts[userID]
	s.mu.RUnlock()
	if !ok {
		return nil, service.Errorf(service.ErrNotFound, "user %s", userID)
	}
	if password == "" || bcrypt.CompareHashAndPassword(acc.hash, []byte(password)) != nil {
		return nil, service.Errorf(service.ErrForbidden, "invalid password for %s", userID)
	}
	return acc, nil
}

func (s *Service) CreateUser(ctx context.Context, user *service.User) (string, error) {
	if user == nil || !service.ValidName(user.UserID) || user.Password == "" {
		return "", service.Errorf(service.ErrBadRequest, "user id and password are required")
	}

	h, err := s.hash(user.Password)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[user.UserID]; exists {
		return "", service.Errorf(service.ErrConflict, "user %s already exists", user.UserID)
	}
	stored := *user
	stored.Password = ""
	s.accounts[user.UserID] = &account{user: stored, hash: h}

	logger.Info("Users: created %s", user.UserID)
	return user.UserID, nil
}

func (s *Service) GetUser(ctx context.Context, userID, password string) (*service.User, error) {
	acc, err := s.authenticate(userID, password)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	u := acc.user
	s.mu.RUnlock()
	return &u, nil
}

// UpdateUser replaces the non-empty profile fields of userID. The user id
// itself cannot change.
func (s *Service) UpdateUser(ctx context.Context, userID, password string, update *service.User) (*service.User, error) {
	if update == nil {
		return nil, service.Errorf(service.ErrBadRequest, "missing user")
	}
	if update.UserID != "" && update.UserID != userID {
		return nil, service.Errorf(service.ErrBadRequest, "user id cannot change")
	}
	acc, err := s.authenticate(userID, password)
	if err != nil {
		return nil, err
	}

	var h []byte
	if update.Password != "" {
		if h, err = s.hash(update.Password); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.accounts[userID] != acc {
		return nil, service.Errorf(service.ErrNotFound, "user %s", userID)
	}
	next := &account{user: acc.user, hash: acc.hash}
	if update.FullName != "" {
		next.user.FullName = update.FullName
	}
	if update.Email != "" {
		next.user.Email = update.Email
	}
	if h != nil {
		next.hash = h
	}
	s.accounts[userID] = next

	u := next.user
	return &u, nil
}

// DeleteUser removes userID and then runs the delete hook. A hook failure
// is logged; the user stays deleted.
func (s *Service) DeleteUser(ctx context.Context, userID, password string) (*service.User, error) {
	acc, err := s.authenticate(userID, password)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.accounts[userID] != acc {
		s.mu.Unlock()
		return nil, service.Errorf(service.ErrNotFound, "user %s", userID)
	}
	delete(s.accounts, userID)
	hook := s.onDelete
	s.mu.Unlock()

	logger.Info("Users: deleted %s", userID)
	if hook != nil {
		if err := hook(ctx, acc.user, password); err != nil {
			logger.Warn("Users: delete hook for %s failed: %v", userID, err)
		}
	}

	u := acc.user
	return &u, nil
}

// SearchUsers returns the users whose id or full name contains pattern,
// ignoring case, ordered by id. An empty pattern matches everyone.
func (s *Service) SearchUsers(ctx context.Context, pattern string) ([]service.User, error) {
	pattern = strings.ToLower(pattern)

	s.mu.RLock()
	out := make([]service.User, 0, len(s.accounts))
	for _, acc := range s.accounts {
		if pattern == "" ||
			strings.Contains(strings.ToLower(acc.user.UserID), pattern) ||
			strings.Contains(strings.ToLower(acc.user.FullName), pattern) {
			out = append(out, acc.user)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}
