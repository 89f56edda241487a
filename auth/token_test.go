package auth

import (
	"match-chat/errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

var secret = []byte("test-secret-of-a-decent-length")

func TestToken_RoundTrip(t *testing.T) {
	req := require.New(t)

	token, err := GenerateToken(secret, "matching", time.Minute)
	req.NoError(err)

	claims, err := ValidateToken(secret, token)
	req.NoError(err)
	req.Equal("matching", claims.Service)
	req.Equal(Issuer, claims.Issuer)
}

func TestValidateToken_Rejects(t *testing.T) {
	expired, err := GenerateToken(secret, "matching", -time.Minute)
	require.NoError(t, err)
	foreign, err := GenerateToken([]byte("another-secret"), "matching", time.Minute)
	require.NoError(t, err)
	anonymous, err := GenerateToken(secret, "", time.Minute)
	require.NoError(t, err)
	otherIssuer, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &ServiceClaims{
		Service: "matching",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}).SignedString(secret)
	require.NoError(t, err)
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, &ServiceClaims{Service: "matching"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	tests := []struct {
		description string
		token       string
	}{
		{"Should reject an expired token", expired},
		{"Should reject a token signed with another secret", foreign},
		{"Should reject a token without service", anonymous},
		{"Should reject another issuer", otherIssuer},
		{"Should reject an unsigned token", unsigned},
		{"Should reject garbage", "not.a.token"},
	}
	for _, tt := range tests {
		t.Run(tt.description, func(t *testing.T) {
			_, err := ValidateToken(secret, tt.token)

			require.ErrorIs(t, err, errors.ErrInvalidToken)
		})
	}
}
