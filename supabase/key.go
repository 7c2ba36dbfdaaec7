package supabase

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// ErrOpaqueKey is returned by KeyRole when the access key is not a JWT, as is
// the case for publishable keys.
var ErrOpaqueKey = errors.New("supabase: access key is not a jwt")

// KeyInfo describes the claims of a JWT access key.
type KeyInfo struct {
	Role      string
	Issuer    string
	ExpiresAt time.Time
}

// Expired reports whether the key carries an expiry that has passed at now.
func (k KeyInfo) Expired(now time.Time) bool {
	return !k.ExpiresAt.IsZero() && now.After(k.ExpiresAt)
}

// KeyRole reads the claims of a JWT access key without verifying the
// signature. The key is only inspected for logging; PostgREST verifies it.
func KeyRole(key string) (KeyInfo, error) {
	key = strings.TrimSpace(key)
	if strings.Count(key, ".") != 2 {
		return KeyInfo{}, ErrOpaqueKey
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(key, claims); err != nil {
		return KeyInfo{}, err
	}
	info := KeyInfo{}
	if role, ok := claims["role"].(string); ok {
		info.Role = role
	}
	if iss, ok := claims["iss"].(string); ok {
		info.Issuer = iss
	}
	if exp, ok := claims["exp"].(float64); ok {
		info.ExpiresAt = time.Unix(int64(exp), 0)
	}
	return info, nil
}
