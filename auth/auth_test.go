package auth

import (
	"bytes"
	"context"
	"log"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestPermits(t *testing.T) {
	assert.True(t, Permits([]string{"USER", "ADMIN"}, "ADMIN"))
	assert.False(t, Permits([]string{"USER"}, "ADMIN"))
	assert.False(t, Permits(nil, "ADMIN"))
	assert.True(t, Identity{Roles: []string{"USER"}}.Has("USER"))
}

func TestIdentityContext(t *testing.T) {
	_, ok := FromContext(context.Background())
	assert.False(t, ok)

	ctx := WithIdentity(context.Background(), Identity{Username: "anish", Roles: []string{"ADMIN"}})
	id, ok := FromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "anish", id.Username)
}

func TestActFor(t *testing.T) {
	bob := Identity{Username: "bob", Roles: []string{"USER"}}
	assert.NoError(t, bob.ActFor("bob"))
	assert.ErrorIs(t, bob.ActFor("eve"), ErrPermissionDenied)

	admin := Identity{Username: "anish", Roles: []string{"USER", "ADMIN"}}
	assert.NoError(t, admin.ActFor("bob"))
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("secret1")
	require.NoError(t, err)
	assert.NotEqual(t, "secret1", hash)

	assert.NoError(t, CheckPassword(hash, "secret1"))
	assert.ErrorIs(t, CheckPassword(hash, "wrong"), ErrInvalidCredentials)
}

func TestTokens_RoundTrip(t *testing.T) {
	tokens, err := NewTokens(testSecret, time.Hour, nil)
	require.NoError(t, err)

	raw, err := tokens.Issue("anish", []string{"ADMIN"})
	require.NoError(t, err)

	id, err := tokens.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, Identity{Username: "anish", Roles: []string{"ADMIN"}}, id)
}

func TestTokens_Expired(t *testing.T) {
	tokens, err := NewTokens(testSecret, time.Minute, nil)
	require.NoError(t, err)
	issued := time.Now()
	tokens.now = func() time.Time { return issued }

	raw, err := tokens.Issue("bob", []string{"USER"})
	require.NoError(t, err)

	tokens.now = func() time.Time { return issued.Add(2 * time.Minute) }
	_, err = tokens.Verify(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokens_WrongKey(t *testing.T) {
	a, err := NewTokens(testSecret, time.Hour, nil)
	require.NoError(t, err)
	b, err := NewTokens(strings.Repeat("z", 32), time.Hour, nil)
	require.NoError(t, err)

	raw, err := a.Issue("bob", nil)
	require.NoError(t, err)
	_, err = b.Verify(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = a.Verify("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokens_ShortSecretWarns(t *testing.T) {
	var buf bytes.Buffer
	tokens, err := NewTokens("short", time.Hour, log.New(&buf, "", 0))
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "ephemeral signing key")

	raw, err := tokens.Issue("bob", nil)
	require.NoError(t, err)
	_, err = tokens.Verify(raw)
	assert.NoError(t, err)
}
