package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignerRoundTrip(t *testing.T) {
	s := NewSigner([]byte("secret"), time.Hour)

	token, err := s.GenerateToken("user-1")
	require.NoError(t, err)

	claims, err := s.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "user-1", claims.Subject)
}

func TestValidateTokenWrongKey(t *testing.T) {
	token, err := NewSigner([]byte("a"), time.Hour).GenerateToken("user-1")
	require.NoError(t, err)

	_, err = NewSigner([]byte("b"), time.Hour).ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenExpired(t *testing.T) {
	claims := &Claims{
		UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("k"))
	require.NoError(t, err)

	_, err = NewSigner([]byte("k"), time.Hour).ValidateToken(token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestParseUnverified(t *testing.T) {
	token, err := NewSigner([]byte("server-only"), time.Hour).GenerateToken("user-7")
	require.NoError(t, err)

	claims, err := ParseUnverified(token)
	require.NoError(t, err)
	assert.Equal(t, "user-7", claims.UserID)

	subOnly, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "user-8"}).
		SignedString([]byte("x"))
	require.NoError(t, err)
	claims, err = ParseUnverified(subOnly)
	require.NoError(t, err)
	assert.Equal(t, "user-8", claims.UserID)

	_, err = ParseUnverified("not-a-jwt")
	assert.Error(t, err)
}
