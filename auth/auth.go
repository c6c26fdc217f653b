// Package auth hashes passwords, issues and verifies bearer tokens, and decides
// whether a set of roles may perform an action.
package auth

import (
	"context"
	"errors"
	"slices"

	"golang.org/x/crypto/bcrypt"

	models "storefront/model"
)

var (
	// ErrPermissionDenied is returned when the caller lacks the role an action requires.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrInvalidCredentials is returned for an unknown username or a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken is returned for malformed, forged or expired bearer tokens.
	ErrInvalidToken = errors.New("invalid token")
)

// Identity is the authenticated caller of a request.
type Identity struct {
	Username string
	Roles    []string
}

// Has reports whether the identity holds role.
func (id Identity) Has(role string) bool {
	return Permits(id.Roles, role)
}

// Permits is the authorization gate: it holds no state and is evaluated on every request.
func Permits(roles []string, required string) bool {
	return slices.Contains(roles, required)
}

// ActFor returns ErrPermissionDenied unless the identity is owner or an admin.
func (id Identity) ActFor(owner string) error {
	if id.Username == owner || id.Has(models.RoleAdmin) {
		return nil
	}
	return ErrPermissionDenied
}

type ctxKey struct{}

// WithIdentity attaches id to ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity stored by WithIdentity, if any.
func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	return id, ok
}

func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// CheckPassword returns ErrInvalidCredentials when password does not match hash.
func CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}
