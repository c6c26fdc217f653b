package auth

import (
	"crypto/rand"
	"fmt"
	"log"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// minSecretLen is the shortest HS256 secret accepted from configuration.
const minSecretLen = 32

type claims struct {
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

// Tokens issues and verifies HS256 bearer tokens.
type Tokens struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewTokens builds a token issuer. A secret shorter than 32 bytes is replaced by a random
// key, which means tokens do not survive a restart or work across instances.
func NewTokens(secret string, ttl time.Duration, logger *log.Logger) (*Tokens, error) {
	if logger == nil {
		logger = log.Default()
	}
	key := []byte(secret)
	if len(key) < minSecretLen {
		key = make([]byte, minSecretLen)
		if _, err := rand.Read(key); err != nil {
			return nil, fmt.Errorf("generate signing key: %w", err)
		}
		logger.Printf("WARNING: JWT secret missing or shorter than %d bytes; using an ephemeral signing key", minSecretLen)
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Tokens{key: key, ttl: ttl, now: time.Now}, nil
}

// Issue signs a token for username carrying roles.
func (t *Tokens) Issue(username string, roles []string) (string, error) {
	now := t.now()
	c := claims{
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(t.key)
}

// Verify parses a token and returns the identity it carries.
func (t *Tokens) Verify(raw string) (Identity, error) {
	var c claims
	_, err := jwt.ParseWithClaims(raw, &c, func(*jwt.Token) (any, error) {
		return t.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if c.Subject == "" {
		return Identity{}, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return Identity{Username: c.Subject, Roles: c.Roles}, nil
}
