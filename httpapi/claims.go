package httpapi

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AdminClaims is the JWT payload an nfig admin token carries, trimmed to
// what the single-role admin surface needs.
type AdminClaims struct {
	jwt.RegisteredClaims
	User string `json:"user"`
}

var errInvalidToken = errors.New("httpapi: invalid or expired token")

// issueToken signs an AdminClaims token for user, valid for ttl.
func issueToken(secret []byte, user string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := AdminClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "admin",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		User: user,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

// verifyToken parses and validates raw against secret.
func verifyToken(secret []byte, raw string) (*AdminClaims, error) {
	token, err := jwt.ParseWithClaims(raw, &AdminClaims{}, func(t *jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		return nil, errInvalidToken
	}
	if !token.Valid {
		return nil, errInvalidToken
	}
	claims, ok := token.Claims.(*AdminClaims)
	if !ok || claims.Subject != "admin" {
		return nil, errInvalidToken
	}
	return claims, nil
}
