package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/verag/internal/core/domain"
)

func sign(t *testing.T, method jwt.SigningMethod, secret string, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestVerifier_Subject(t *testing.T) {
	v := NewVerifier("secret")
	exp := time.Now().Add(time.Hour).Unix()

	caller, err := v.Verify(sign(t, jwt.SigningMethodHS256, "secret", jwt.MapClaims{"sub": "user-1", "exp": exp}))
	require.NoError(t, err)
	assert.Equal(t, "user-1", caller.UserID)
	assert.Equal(t, exp, caller.ExpiresAt)
}

func TestVerifier_UserIDClaimWins(t *testing.T) {
	v := NewVerifier("secret")
	token := sign(t, jwt.SigningMethodHS256, "secret", jwt.MapClaims{
		"sub": "ignored", "user_id": "user-2", "exp": time.Now().Add(time.Hour).Unix(),
	})

	caller, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-2", caller.UserID)
}

func TestVerifier_Rejects(t *testing.T) {
	v := NewVerifier("secret")
	future := time.Now().Add(time.Hour).Unix()

	tests := []struct {
		name  string
		token string
	}{
		{"wrong secret", sign(t, jwt.SigningMethodHS256, "other", jwt.MapClaims{"sub": "u", "exp": future})},
		{"expired", sign(t, jwt.SigningMethodHS256, "secret", jwt.MapClaims{"sub": "u", "exp": time.Now().Add(-time.Hour).Unix()})},
		{"no expiry", sign(t, jwt.SigningMethodHS256, "secret", jwt.MapClaims{"sub": "u"})},
		{"no subject", sign(t, jwt.SigningMethodHS256, "secret", jwt.MapClaims{"exp": future})},
		{"garbage", "not.a.token"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(tt.token)
			assert.ErrorIs(t, err, domain.ErrTokenInvalid)
		})
	}
}

func TestVerifier_RejectsNoneAlgorithm(t *testing.T) {
	v := NewVerifier("secret")
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "u", "exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = v.Verify(token)
	assert.ErrorIs(t, err, domain.ErrTokenInvalid)
}
