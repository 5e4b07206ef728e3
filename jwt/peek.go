package jwt

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNotJWT is returned by [Peek] for opaque tokens.
var ErrNotJWT = errors.New("token is not a jwt")

// Peek decodes the claims of tokenStr without checking its signature or expiry.
func Peek(tokenStr string) (*IdentityClaims, error) {
	if strings.Count(tokenStr, ".") != 2 {
		return nil, ErrNotJWT
	}
	claims := &IdentityClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
		return nil, ErrNotJWT
	}
	return claims, nil
}

// ExpiresAt returns the exp claim of a JWT-shaped bearer token. ok is false for opaque
// tokens and for JWTs without exp.
func ExpiresAt(tokenStr string) (time.Time, bool) {
	claims, err := Peek(tokenStr)
	if err != nil || claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// Expired reports whether tokenStr visibly expired before now-leeway. Opaque tokens are
// never reported expired.
func Expired(tokenStr string, now time.Time, leeway time.Duration) bool {
	exp, ok := ExpiresAt(tokenStr)
	if !ok {
		return false
	}
	return exp.Before(now.Add(-leeway))
}
