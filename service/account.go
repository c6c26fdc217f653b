package service

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	"storefront/auth"
	"storefront/store"
)

const (
	minUsernameLen = 3
	maxUsernameLen = 64
	minPasswordLen = 6
	// bcrypt ignores input past 72 bytes
	maxPasswordLen = 72
)

// Signup registers a user and provisions their cart. The first user ever registered
// becomes ADMIN.
func (s *Service) Signup(ctx context.Context, username, password string) (UserDTO, error) {
	username = strings.TrimSpace(username)
	if n := utf8.RuneCountInString(username); n < minUsernameLen || n > maxUsernameLen {
		return UserDTO{}, invalid("username must be %d to %d characters", minUsernameLen, maxUsernameLen)
	}
	if len(password) < minPasswordLen || len(password) > maxPasswordLen {
		return UserDTO{}, invalid("password must be %d to %d bytes", minPasswordLen, maxPasswordLen)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return UserDTO{}, err
	}
	u, err := s.store.CreateUser(ctx, username, hash)
	if err != nil {
		return UserDTO{}, err
	}
	// carts are also created on first use, so a failure here only costs a log line
	if _, err := s.store.GetOrCreateCart(ctx, u.Username); err != nil {
		s.log.Printf("service: cart for %s not provisioned: %v", u.Username, err)
	}
	return UserDTO{ID: u.ID, Username: u.Username, Roles: u.Roles}, nil
}

// Login checks the password and issues a bearer token.
func (s *Service) Login(ctx context.Context, username, password string) (LoginDTO, error) {
	if s.tokens == nil {
		return LoginDTO{}, errors.New("token issuer not configured")
	}
	u, err := s.store.GetUserByUsername(ctx, strings.TrimSpace(username))
	if errors.Is(err, store.ErrNotFound) {
		return LoginDTO{}, auth.ErrInvalidCredentials
	}
	if err != nil {
		return LoginDTO{}, err
	}
	if err := auth.CheckPassword(u.PasswordHash, password); err != nil {
		return LoginDTO{}, err
	}

	token, err := s.tokens.Issue(u.Username, u.Roles)
	if err != nil {
		return LoginDTO{}, err
	}
	return LoginDTO{Token: token, Roles: u.Roles}, nil
}
