package auth

import (
	"testing"
	"time"

	"github.com/cloud-wave-best-zizon/storefront-service/internal/domain"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignAndVerify(t *testing.T) {
	v, err := NewVerifier([]string{"s3cret"}, "storefront")
	require.NoError(t, err)

	token, err := v.Sign(domain.Actor{UserID: "u1", Role: domain.RoleAdmin}, time.Minute)
	require.NoError(t, err)

	actor, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, domain.Actor{UserID: "u1", Role: domain.RoleAdmin}, actor)
}

func TestVerify_RotatedSecrets(t *testing.T) {
	old, err := NewVerifier([]string{"old"}, "storefront")
	require.NoError(t, err)
	token, err := old.Sign(domain.Actor{UserID: "u1", Role: domain.RoleUser}, time.Minute)
	require.NoError(t, err)

	rotated, err := NewVerifier([]string{"new", "old"}, "storefront")
	require.NoError(t, err)
	_, err = rotated.Verify(token)
	assert.NoError(t, err)

	retired, err := NewVerifier([]string{"new"}, "storefront")
	require.NoError(t, err)
	_, err = retired.Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerify_Rejects(t *testing.T) {
	v, err := NewVerifier([]string{"k"}, "storefront")
	require.NoError(t, err)

	sign := func(method jwt.SigningMethod, key any, claims jwt.Claims) string {
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)
		return s
	}
	future := jwt.NewNumericDate(time.Now().Add(time.Hour))
	past := jwt.NewNumericDate(time.Now().Add(-time.Hour))

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not.a.token"},
		{"expired", sign(jwt.SigningMethodHS256, []byte("k"), Claims{UserID: "u1", RegisteredClaims: jwt.RegisteredClaims{Issuer: "storefront", ExpiresAt: past}})},
		{"no expiry", sign(jwt.SigningMethodHS256, []byte("k"), Claims{UserID: "u1", RegisteredClaims: jwt.RegisteredClaims{Issuer: "storefront"}})},
		{"wrong issuer", sign(jwt.SigningMethodHS256, []byte("k"), Claims{UserID: "u1", RegisteredClaims: jwt.RegisteredClaims{Issuer: "elsewhere", ExpiresAt: future}})},
		{"wrong algorithm", sign(jwt.SigningMethodHS512, []byte("k"), Claims{UserID: "u1", RegisteredClaims: jwt.RegisteredClaims{Issuer: "storefront", ExpiresAt: future}})},
		{"no user", sign(jwt.SigningMethodHS256, []byte("k"), Claims{RegisteredClaims: jwt.RegisteredClaims{Issuer: "storefront", ExpiresAt: future}})},
		{"unknown role", sign(jwt.SigningMethodHS256, []byte("k"), Claims{UserID: "u1", Role: "root", RegisteredClaims: jwt.RegisteredClaims{Issuer: "storefront", ExpiresAt: future}})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(tt.token)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestVerify_DefaultsToUserRole(t *testing.T) {
	v, err := NewVerifier([]string{"k"}, "")
	require.NoError(t, err)
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "u9",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("k"))
	require.NoError(t, err)

	actor, err := v.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, domain.Actor{UserID: "u9", Role: domain.RoleUser}, actor)
}

func TestNewVerifier_RequiresSecret(t *testing.T) {
	_, err := NewVerifier(nil, "")
	assert.ErrorIs(t, err, ErrNoSecrets)
	_, err = NewVerifier([]string{""}, "")
	assert.ErrorIs(t, err, ErrNoSecrets)
}
