package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIssuer() *TokenIssuer {
	return NewTokenIssuer("test-secret", time.Hour, 7*24*time.Hour)
}

func TestAccessTokenRoundTrip(t *testing.T) {
	issuer := newTestIssuer()
	userID := uuid.New()

	token, err := issuer.CreateAccessToken(userID, "dev@example.com", "user")
	require.NoError(t, err)

	claims, err := issuer.VerifyAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID.String(), claims.Subject)
	assert.Equal(t, "dev@example.com", claims.Email)
	assert.Equal(t, "user", claims.Role)
	assert.NotEmpty(t, claims.ID)
}

func TestRefreshTokenRoundTrip(t *testing.T) {
	issuer := newTestIssuer()
	userID := uuid.New()

	token, err := issuer.CreateRefreshToken(userID)
	require.NoError(t, err)

	got, err := issuer.VerifyRefreshToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, got)
}

func TestAccessTokenRejectsRefreshToken(t *testing.T) {
	issuer := newTestIssuer()

	token, err := issuer.CreateRefreshToken(uuid.New())
	require.NoError(t, err)

	_, err = issuer.VerifyAccessToken(token)
	assert.ErrorIs(t, err, ErrWrongType)
}

func TestRefreshTokenRejectsAccessToken(t *testing.T) {
	issuer := newTestIssuer()

	token, err := issuer.CreateAccessToken(uuid.New(), "dev@example.com", "user")
	require.NoError(t, err)

	_, err = issuer.VerifyRefreshToken(token)
	assert.ErrorIs(t, err, ErrWrongType)
}

func TestExpiredToken(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", -time.Minute, -time.Minute)

	token, err := issuer.CreateAccessToken(uuid.New(), "dev@example.com", "user")
	require.NoError(t, err)

	_, err = issuer.VerifyAccessToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestWrongSecret(t *testing.T) {
	token, err := newTestIssuer().CreateAccessToken(uuid.New(), "dev@example.com", "user")
	require.NoError(t, err)

	other := NewTokenIssuer("different-secret", time.Hour, time.Hour)
	_, err = other.VerifyAccessToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("hunter2hunter2")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter2hunter2", hash)

	assert.True(t, VerifyPassword(hash, "hunter2hunter2"))
	assert.False(t, VerifyPassword(hash, "wrong"))
}
