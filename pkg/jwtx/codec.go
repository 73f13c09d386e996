package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrTokenInvalid covers malformed tokens and signature mismatches.
	ErrTokenInvalid = errors.New("jwtx: invalid token")

	// ErrTokenExpired is returned for structurally valid tokens past exp.
	ErrTokenExpired = errors.New("jwtx: token expired")

	// ErrKindMismatch is returned when a valid token of the wrong kind is
	// presented (e.g. a refresh token where an access token is required).
	ErrKindMismatch = errors.New("jwtx: token kind mismatch")

	// ErrMissingSecret reports codec misconfiguration at construction time.
	ErrMissingSecret = errors.New("jwtx: signing secret is not set")
)

// CodecConfig carries the process-wide signing configuration. Secrets are
// read once at startup and never change afterwards.
type CodecConfig struct {
	Issuer        string
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration // defaults to DefaultAccessTTL
	RefreshTTL    time.Duration // defaults to DefaultRefreshTTL
}

// Codec issues and verifies HS256-signed access and refresh tokens. The two
// kinds are signed with independent secrets so a leaked access secret cannot
// be used to forge refresh tokens.
type Codec struct {
	issuer        string
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration

	now func() time.Time // test hook
}

// NewCodec validates the configuration and returns a ready codec. A missing
// secret is a startup failure, never a per-request one.
func NewCodec(cfg CodecConfig) (*Codec, error) {
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
		return nil, ErrMissingSecret
	}

	c := &Codec{
		issuer:        cfg.Issuer,
		accessSecret:  cfg.AccessSecret,
		refreshSecret: cfg.RefreshSecret,
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		now:           time.Now,
	}
	if c.accessTTL <= 0 {
		c.accessTTL = DefaultAccessTTL
	}
	if c.refreshTTL <= 0 {
		c.refreshTTL = DefaultRefreshTTL
	}

	return c, nil
}

// AccessTTL reports the configured access token lifetime.
func (c *Codec) AccessTTL() time.Duration { return c.accessTTL }

// RefreshTTL reports the configured refresh token lifetime.
func (c *Codec) RefreshTTL() time.Duration { return c.refreshTTL }

// IssueAccess signs a short-lived access token for the subject.
func (c *Codec) IssueAccess(subjectID, role string) (string, error) {
	claims := Claims{
		RegisteredClaims: newClaims(c.issuer, subjectID, c.accessTTL, c.now().UTC()),
		Kind:             KindAccess,
		Role:             role,
	}
	return c.sign(claims, c.accessSecret)
}

// IssueRefresh signs a long-lived refresh token. tokenID becomes the jti
// claim and identifies the individual token for server-side revocation.
func (c *Codec) IssueRefresh(subjectID, tokenID string) (string, error) {
	claims := Claims{
		RegisteredClaims: newClaims(c.issuer, subjectID, c.refreshTTL, c.now().UTC()),
		Kind:             KindRefresh,
	}
	claims.ID = tokenID
	return c.sign(claims, c.refreshSecret)
}

// VerifyAccess parses and validates an access token: signature, expiry and
// kind, in that order of reporting.
func (c *Codec) VerifyAccess(token string) (Claims, error) {
	return c.verify(token, c.accessSecret, KindAccess)
}

// VerifyRefresh is the refresh-side counterpart of VerifyAccess.
func (c *Codec) VerifyRefresh(token string) (Claims, error) {
	return c.verify(token, c.refreshSecret, KindRefresh)
}

func (c *Codec) sign(claims Claims, secret []byte) (string, error) {
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("jwtx: sign: %w", err)
	}
	return signed, nil
}

func (c *Codec) verify(token string, secret []byte, want Kind) (Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %q", t.Header["alg"])
			}
			return secret, nil
		},
		jwt.WithTimeFunc(c.now),
		jwt.WithIssuedAt(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrTokenExpired
		}
		return Claims{}, ErrTokenInvalid
	}

	if claims.Kind != want {
		return Claims{}, ErrKindMismatch
	}
	if c.issuer != "" && claims.Issuer != c.issuer {
		return Claims{}, ErrTokenInvalid
	}

	return claims, nil
}
