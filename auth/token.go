// Package auth signs and checks the service tokens accepted by the internal API.
package auth

import (
	"fmt"
	"match-chat/errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const Issuer = "match-chat"

// ServiceClaims identifies the application service calling the internal API.
type ServiceClaims struct {
	Service string `json:"service"`
	jwt.RegisteredClaims
}

// GenerateToken creates an HS256 token for service, valid for duration.
func GenerateToken(secret []byte, service string, duration time.Duration) (string, error) {
	now := time.Now()
	claims := &ServiceClaims{
		Service: service,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   service,
			ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    Issuer,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ValidateToken checks the signature, the algorithm, the issuer and the expiration.
// Every failure wraps errors.ErrInvalidToken.
func ValidateToken(secret []byte, tokenString string) (*ServiceClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ServiceClaims{}, func(*jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(*ServiceClaims)
	if !ok || !token.Valid || claims.Service == "" {
		return nil, errors.ErrInvalidToken
	}
	return claims, nil
}
