package domain

import "time"

// TokenPair is what a successful login or refresh produces: the short-lived
// access JWT and the long-lived refresh JWT.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration // access token lifetime
}

// RefreshToken models the stored refresh-token record. The raw token never
// touches the database; only its fingerprint is kept, keyed by the jti claim.
type RefreshToken struct {
	ID        string // matches the token's jti claim
	UserID    string
	TokenHash string // base64url SHA-256 fingerprint of the raw token
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}
