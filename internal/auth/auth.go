package auth

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"story-app/internal/apperr"

	"github.com/golang-jwt/jwt/v5"
)

// TokenTTL is the lifetime of tokens issued by GenerateToken
const TokenTTL = 24 * time.Hour

// Claims identifies the user in the token subject
type Claims struct {
	jwt.RegisteredClaims
}

// GenerateToken issues an HS256 token whose subject is userID
func GenerateToken(userID string, secret []byte, ttl time.Duration) (string, error) {
	if len(secret) == 0 {
		return "", apperr.NotConfigured("JWT_SECRET")
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// ValidateToken parses tokenString and returns its claims
func ValidateToken(tokenString string, secret []byte) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, jwt.ErrSignatureInvalid
}

// ResolveUserID returns the caller's identity. With a secret configured and a
// bearer token present the token subject wins; otherwise fallbackID is used.
func ResolveUserID(r *http.Request, fallbackID string, secret []byte) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" && len(secret) > 0 {
		bearerToken := strings.Split(authHeader, " ")
		if len(bearerToken) != 2 || bearerToken[0] != "Bearer" {
			return "", fmt.Errorf("%w: invalid authorization header format", apperr.ErrUnauthorized)
		}

		claims, err := ValidateToken(bearerToken[1], secret)
		if err != nil {
			return "", fmt.Errorf("%w: invalid token: %v", apperr.ErrUnauthorized, err)
		}
		if claims.Subject == "" {
			return "", fmt.Errorf("%w: token has no subject", apperr.ErrUnauthorized)
		}
		return claims.Subject, nil
	}

	fallbackID = strings.TrimSpace(fallbackID)
	if fallbackID == "" {
		return "", fmt.Errorf("%w: userId is required", apperr.ErrUnauthorized)
	}
	return fallbackID, nil
}
