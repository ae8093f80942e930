package session

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mr-tron/base58"
)

// Fingerprint identifies a credential without revealing it: the
// Base58-encoded SHA256 of the token.
func Fingerprint(token string) string {
	if token == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(token))
	return base58.Encode(hash[:])
}

// AccessClaims is what the client can read from an access token for display.
type AccessClaims struct {
	UserID    string
	ExpiresAt time.Time
}

// Expired reports whether the token's advertised expiry has passed.
func (c AccessClaims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

type accessTokenClaims struct {
	jwt.RegisteredClaims
	UserID any `json:"user_id"`
}

// ParseAccessClaims decodes the access token without verifying its
// signature. The result is informational only, validity is decided by the
// server.
func ParseAccessClaims(token string) (AccessClaims, error) {
	var claims accessTokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return AccessClaims{}, fmt.Errorf("failed to decode access token: %w", err)
	}

	out := AccessClaims{}
	if claims.UserID != nil {
		out.UserID = fmt.Sprint(claims.UserID)
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}
