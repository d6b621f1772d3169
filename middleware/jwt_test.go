package middleware

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sessionSecret = "arise-session-secret-0123456789ab"

func TestSessionToken_RoundTrip(t *testing.T) {
	tok, err := GenerateToken(7, sessionSecret, 72*time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, tok)

	claims, err := ParseToken(tok, sessionSecret)
	require.NoError(t, err)
	assert.Equal(t, int64(7), claims.AccountID)
}

func TestSessionToken_WrongSecretRejected(t *testing.T) {
	tok, err := GenerateToken(7, sessionSecret, time.Hour)
	require.NoError(t, err)

	_, err = ParseToken(tok, "some-other-secret")
	assert.Error(t, err)
}

func TestSessionToken_ExpiredRejected(t *testing.T) {
	tok, err := GenerateToken(7, sessionSecret, -time.Minute)
	require.NoError(t, err)

	_, err = ParseToken(tok, sessionSecret)
	assert.Error(t, err)
}

func TestSessionToken_GarbageRejected(t *testing.T) {
	for _, tok := range []string{"", "garbage", "a.b.c"} {
		_, err := ParseToken(tok, sessionSecret)
		assert.Error(t, err, "token %q", tok)
	}
}

func TestSessionToken_CarriesAccountIdentity(t *testing.T) {
	tokA, err := GenerateToken(1, sessionSecret, time.Hour)
	require.NoError(t, err)
	tokB, err := GenerateToken(2, sessionSecret, time.Hour)
	require.NoError(t, err)
	require.NotEqual(t, tokA, tokB)

	a, err := ParseToken(tokA, sessionSecret)
	require.NoError(t, err)
	b, err := ParseToken(tokB, sessionSecret)
	require.NoError(t, err)
	assert.Equal(t, int64(1), a.AccountID)
	assert.Equal(t, int64(2), b.AccountID)
}
