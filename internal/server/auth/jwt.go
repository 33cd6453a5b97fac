// Package auth implements the bearer-token issuer: HS256 JWTs with fixed
// issuer/audience claims, plus opaque refresh-token generation.
package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/codementor-ai/auth-service/internal/common"
)

// Fixed token identity. Tokens with a different issuer or audience are
// rejected during verification.
const (
	Issuer   = "codementor-ai"
	Audience = "codementor-users"
)

// RefreshTokenBytes is the entropy of an opaque refresh token; hex-encoded
// this yields a 64-character string.
const RefreshTokenBytes = 32

// Claims carries the registered claims plus the user identity asserted by
// a bearer token.
type Claims struct {
	jwt.RegisteredClaims
	UserID   string `json:"userId"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

// GenerateToken signs a bearer token for the given user identity, valid for
// validityDuration from now.
func GenerateToken(userID, email, username string, secretKey []byte, validityDuration time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Audience:  jwt.ClaimStrings{Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(validityDuration)),
		},
		UserID:   userID,
		Email:    email,
		Username: username,
	})

	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		return "", err
	}

	return tokenString, nil
}

// ParseToken verifies signature, expiry, issuer and audience, and returns
// the token's claims.
func ParseToken(tokenString string, secretKey []byte) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) {
			return secretKey, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithAudience(Audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidBearerToken
	}

	if !token.Valid {
		return nil, common.ErrInvalidBearerToken
	}

	return claims, nil
}

// NewRefreshToken returns a fresh 64-character opaque refresh token.
func NewRefreshToken() (string, error) {
	return common.MakeRandHexString(RefreshTokenBytes)
}
