// internal/auth/auth_test.go
package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *TokenConfig {
	return &TokenConfig{Secret: []byte("test-secret"), Expiration: time.Minute, Issuer: "drawatale"}
}

func TestTokenRoundTrip(t *testing.T) {
	cfg := testConfig()
	signed, err := GenerateToken("user-1", "kid@example.com", cfg)
	require.NoError(t, err)

	tok, err := ParseToken(signed, cfg)
	require.NoError(t, err)
	assert.Equal(t, "user-1", tok.UserID)
	assert.Equal(t, "kid@example.com", tok.Email)
	assert.True(t, tok.ExpiresAt.After(time.Now()))
}

func TestParseTokenRejectsWrongSecret(t *testing.T) {
	signed, err := GenerateToken("user-1", "", testConfig())
	require.NoError(t, err)

	_, err = ParseToken(signed, &TokenConfig{Secret: []byte("other")})
	assert.True(t, errors.Is(err, ErrInvalidToken))
}

func TestParseTokenExpired(t *testing.T) {
	cfg := testConfig()
	cfg.Expiration = -time.Minute
	signed, err := GenerateToken("user-1", "", cfg)
	require.NoError(t, err)

	_, err = ParseToken(signed, cfg)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestGenerateTokenRequiresSecret(t *testing.T) {
	_, err := GenerateToken("user-1", "", &TokenConfig{})
	assert.Error(t, err)
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("rainbow123")
	require.NoError(t, err)
	assert.NotEqual(t, "rainbow123", hash)
	assert.True(t, CheckPassword(hash, "rainbow123"))
	assert.False(t, CheckPassword(hash, "wrong"))
}

func TestGenerateSecureKeyDefaultLength(t *testing.T) {
	key, err := GenerateSecureKey(0)
	require.NoError(t, err)
	assert.Len(t, key, 32)
}
