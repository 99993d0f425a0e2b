package token_test

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/seva-trust/donorportal/token"
	"github.com/stretchr/testify/require"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()

	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return raw
}

func TestExpiresAt(t *testing.T) {
	exp := time.Now().Add(30 * time.Minute).Truncate(time.Second)
	raw := signedToken(t, jwt.MapClaims{"exp": exp.Unix(), "sub": "42"})

	got, err := token.ExpiresAt(raw)
	require.NoError(t, err)
	require.True(t, got.Equal(exp))
}

func TestExpiresAtMissingClaim(t *testing.T) {
	raw := signedToken(t, jwt.MapClaims{"sub": "42"})

	_, err := token.ExpiresAt(raw)
	require.Error(t, err)
}

func TestExpiresAtGarbage(t *testing.T) {
	_, err := token.ExpiresAt("not-a-jwt")
	require.Error(t, err)
}

func TestExpired(t *testing.T) {
	now := time.Now()

	live := signedToken(t, jwt.MapClaims{"exp": now.Add(time.Hour).Unix()})
	stale := signedToken(t, jwt.MapClaims{"exp": now.Add(-time.Hour).Unix()})
	noExp := signedToken(t, jwt.MapClaims{"sub": "42"})

	require.False(t, token.Expired(live, now))
	require.True(t, token.Expired(stale, now))
	require.True(t, token.Expired(noExp, now))
	require.True(t, token.Expired("garbage", now))
}
