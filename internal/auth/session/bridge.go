// Package session bridges stateless JWT verification and browser cookies.
// Nothing here keeps server-side session state: every read re-verifies the
// token, so a restarted process trusts exactly the same sessions it did
// before.
package session

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ligarius/ams-sub001/internal/auth/domain"
	"github.com/ligarius/ams-sub001/internal/auth/store"
	"github.com/ligarius/ams-sub001/pkg/cryptox"
	"github.com/ligarius/ams-sub001/pkg/jwtx"
	"github.com/ligarius/ams-sub001/pkg/slogx"
)

const (
	// AccessCookie carries the short-lived access JWT.
	AccessCookie = "ligarius_session"

	// RefreshCookie carries the refresh JWT. Both cookies share the
	// refresh lifetime so the browser keeps the access cookie around
	// even after the embedded token expires, which is what lets Ensure
	// renew in place.
	RefreshCookie = "ligarius_refresh"
)

// Config controls the cookie attributes the bridge emits.
type Config struct {
	// Secure marks cookies Secure. Leave false only for plain-HTTP dev
	// setups.
	Secure bool

	// TTL is the cookie Max-Age, normally the refresh-token lifetime.
	TTL time.Duration
}

// Bridge reads and writes the session cookies and re-verifies their
// contents on every request.
type Bridge struct {
	Codec  *jwtx.Codec
	Store  store.Store
	Config Config
}

// Establish sets both session cookies from a freshly issued token pair.
func (b *Bridge) Establish(w http.ResponseWriter, pair domain.TokenPair) {
	b.setCookie(w, AccessCookie, pair.AccessToken)
	b.setCookie(w, RefreshCookie, pair.RefreshToken)
}

// Read verifies the access cookie and returns the session it describes.
// Any failure, from a missing cookie to a bad signature, reads as no
// session. A Clear earlier in the same request wins over whatever the
// request's Cookie header still carries.
func (b *Bridge) Read(w http.ResponseWriter, r *http.Request) (domain.Session, bool) {
	if clearedOn(w) {
		return domain.Session{}, false
	}

	c, err := r.Cookie(AccessCookie)
	if err != nil || c.Value == "" {
		return domain.Session{}, false
	}

	claims, err := b.Codec.VerifyAccess(c.Value)
	if err != nil {
		return domain.Session{}, false
	}

	return domain.Session{
		UserID:   claims.Subject,
		Role:     claims.Role,
		IssuedAt: claims.IssuedAt.Time,
	}, true
}

// RefreshTokenFrom extracts the raw refresh token from the request, or ""
// when the cookie is absent.
func (b *Bridge) RefreshTokenFrom(r *http.Request) string {
	c, err := r.Cookie(RefreshCookie)
	if err != nil {
		return ""
	}
	return c.Value
}

// Clear expires both cookies. Safe to call whether or not a session
// exists.
func (b *Bridge) Clear(w http.ResponseWriter) {
	for _, name := range []string{AccessCookie, RefreshCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   b.Config.Secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}

// clearedOn reports whether Clear already ran against this response: an
// expiring Set-Cookie for the access cookie marks the session as torn down
// for the rest of the request.
func clearedOn(w http.ResponseWriter) bool {
	for _, v := range w.Header().Values("Set-Cookie") {
		if strings.HasPrefix(v, AccessCookie+"=") && strings.Contains(v, "Max-Age=0") {
			return true
		}
	}
	return false
}

// Ensure resolves the current session, renewing the access cookie from the
// refresh cookie when the access token has expired, and confirms the
// principal still exists. When the principal is gone, both cookies are
// cleared and no session is returned, so a deleted account cannot ride out
// its token lifetime.
func (b *Bridge) Ensure(ctx context.Context, w http.ResponseWriter, r *http.Request) (domain.Session, domain.User, bool) {
	if clearedOn(w) {
		return domain.Session{}, domain.User{}, false
	}

	sess, ok := b.Read(w, r)
	if !ok {
		sess, ok = b.renew(ctx, w, r)
		if !ok {
			return domain.Session{}, domain.User{}, false
		}
	}

	user, err := b.Store.Users().GetUserByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			b.Clear(w)
		} else {
			slogx.FromContext(ctx).Error("resolving session principal", "error", err)
		}
		return domain.Session{}, domain.User{}, false
	}

	// The token carries the role it was issued with; the store is the
	// source of truth for the current one.
	sess.Role = user.Role
	return sess, user, true
}

// renew mints a replacement access token from a valid refresh cookie. The
// refresh token itself is not rotated here; rotation happens only on the
// explicit refresh endpoint.
func (b *Bridge) renew(ctx context.Context, w http.ResponseWriter, r *http.Request) (domain.Session, bool) {
	raw := b.RefreshTokenFrom(r)
	if raw == "" {
		return domain.Session{}, false
	}

	claims, err := b.Codec.VerifyRefresh(raw)
	if err != nil {
		return domain.Session{}, false
	}

	rt, err := b.Store.RefreshTokens().GetRefreshTokenByID(ctx, claims.ID)
	if err != nil {
		return domain.Session{}, false
	}
	if rt.Revoked || time.Now().After(rt.ExpiresAt) {
		return domain.Session{}, false
	}
	if rt.TokenHash != cryptox.FingerprintToken(raw) {
		return domain.Session{}, false
	}

	user, err := b.Store.Users().GetUserByID(ctx, rt.UserID)
	if err != nil {
		return domain.Session{}, false
	}

	access, err := b.Codec.IssueAccess(user.ID, user.Role)
	if err != nil {
		slogx.FromContext(ctx).Error("renewing access token", "error", err)
		return domain.Session{}, false
	}
	b.setCookie(w, AccessCookie, access)

	return domain.Session{
		UserID:   user.ID,
		Role:     user.Role,
		IssuedAt: time.Now(),
	}, true
}

func (b *Bridge) setCookie(w http.ResponseWriter, name, value string) {
	ttl := b.Config.TTL
	if ttl <= 0 {
		ttl = jwtx.DefaultRefreshTTL
	}
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		Secure:   b.Config.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}
