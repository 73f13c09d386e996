package jwtx

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Kind discriminates what a token may be used for. A valid signature of the
// wrong kind must never be accepted in the other slot.
type Kind string

const (
	KindAccess  Kind = "access"
	KindRefresh Kind = "refresh"
)

// Default token lifetimes. Short access tokens limit the damage of a leaked
// token; the refresh token carries the long-lived session.
const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// Claims are the claims carried by both token kinds. Access tokens fill in
// Role; refresh tokens fill in the registered ID (jti) so individual tokens
// can be revoked server-side.
type Claims struct {
	jwt.RegisteredClaims

	// Kind marks the token as access or refresh.
	Kind Kind `json:"kind"`

	// Role is the subject's application role ("admin", "auditor", ...).
	// Access tokens only.
	Role string `json:"role,omitempty"`
}

func newClaims(issuer, subject string, ttl time.Duration, now time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}
