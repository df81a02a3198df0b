package engine

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenIssuer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "signing.pem")
	iss := NewTokenIssuer(path)

	// Happy path
	signed, err := iss.Sign(&jwt.RegisteredClaims{
		Subject:   "booking-123",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	require.NoError(t, err)

	claims, err := iss.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, "booking-123", claims.Subject)

	// Garbage
	_, err = iss.Verify("not-a-token")
	assert.Error(t, err)

	// Expired
	expired, err := iss.Sign(&jwt.RegisteredClaims{
		Subject:   "booking-123",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	})
	require.NoError(t, err)
	_, err = iss.Verify(expired)
	assert.Error(t, err)

	// Key reload across restarts
	again := NewTokenIssuer(path)
	claims, err = again.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, "booking-123", claims.Subject)

	// A different key rejects tokens from the first
	other := NewTokenIssuer(filepath.Join(t.TempDir(), "signing.pem"))
	_, err = other.Verify(signed)
	assert.Error(t, err)
}
