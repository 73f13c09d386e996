package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/ligarius/ams-sub001/internal/auth/domain"
	"github.com/ligarius/ams-sub001/internal/auth/store"
	"github.com/ligarius/ams-sub001/internal/auth/throttle"
	"github.com/ligarius/ams-sub001/pkg/cryptox"
	"github.com/ligarius/ams-sub001/pkg/idx"
	"github.com/ligarius/ams-sub001/pkg/jwtx"
	"github.com/ligarius/ams-sub001/pkg/slogx"
)

var (
	// ErrInvalidCredentials covers unknown email and wrong password alike,
	// so responses cannot be used to enumerate accounts.
	ErrInvalidCredentials = errors.New("invalid_credentials")

	// ErrTooManyAttempts means the throttle locked this email+IP out.
	ErrTooManyAttempts = errors.New("too_many_attempts")

	// ErrInvalidRefresh covers every way a refresh token can be unusable:
	// bad signature, expired, wrong kind, revoked, or unknown.
	ErrInvalidRefresh = errors.New("invalid_refresh_token")

	// ErrPrincipalMissing means a verified token references a user that no
	// longer exists. Callers should tear the session down.
	ErrPrincipalMissing = errors.New("principal_missing")
)

// AuthService orchestrates login, logout, and refresh-token rotation. It is
// the only component that talks to the throttle, the codec, and the store
// together.
type AuthService struct {
	Store    store.Store
	Codec    *jwtx.Codec
	Throttle throttle.Throttle
}

// LoginResult is what a successful login produces.
type LoginResult struct {
	User domain.User
	Pair domain.TokenPair
}

// ThrottleKey builds the lockout discriminator from the submitted email and
// client IP. Scoping by both means an attacker spraying one account from one
// address locks only that pairing, not the legitimate user everywhere.
func ThrottleKey(email, ip string) string {
	return strings.ToLower(strings.TrimSpace(email)) + "|" + ip
}

// Login runs the authentication flow: throttle check, credential
// verification, token issuance. The throttle check comes first, so a locked
// key is rejected without consulting credential storage at all; the correct
// password does not bypass an active lockout.
func (s *AuthService) Login(ctx context.Context, email, password, ip string) (*LoginResult, error) {
	log := slogx.FromContext(ctx)
	key := ThrottleKey(email, ip)

	locked, err := s.Throttle.IsLocked(ctx, key)
	if err != nil {
		// Fail closed: an unreachable throttle backend must not open the
		// door to unlimited attempts.
		return nil, err
	}
	if locked {
		log.Warn("login rejected: key locked out", "ip", ip)
		return nil, ErrTooManyAttempts
	}

	user, err := s.Store.Users().GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, s.recordFailure(ctx, key)
		}
		return nil, err
	}

	if err := cryptox.VerifyPassword(password, user.PasswordHash); err != nil {
		if errors.Is(err, cryptox.ErrPasswordMismatch) {
			return nil, s.recordFailure(ctx, key)
		}
		return nil, err
	}

	if err := s.Throttle.Reset(ctx, key); err != nil {
		// Losing the reset only means stale failure counts; not worth
		// failing a correct login over.
		log.Warn("throttle reset failed", "error", err)
	}

	pair, err := s.issuePair(ctx, user)
	if err != nil {
		return nil, err
	}

	log.Info("login succeeded", "user_id", user.ID, "role", user.Role)
	return &LoginResult{User: user, Pair: pair}, nil
}

// Refresh validates a refresh token and rotates it: the old record is
// revoked and a new pair issued in one transaction, so a refresh token is
// single-use.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*LoginResult, error) {
	claims, err := s.Codec.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, ErrInvalidRefresh
	}
	// jti values are always ULIDs we minted; anything else never hits
	// storage.
	if _, err := idx.Parse(claims.ID); err != nil {
		return nil, ErrInvalidRefresh
	}

	rt, err := s.Store.RefreshTokens().GetRefreshTokenByID(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidRefresh
		}
		return nil, err
	}

	if rt.Revoked || time.Now().After(rt.ExpiresAt) {
		return nil, ErrInvalidRefresh
	}
	if rt.TokenHash != cryptox.FingerprintToken(refreshToken) {
		return nil, ErrInvalidRefresh
	}

	user, err := s.Store.Users().GetUserByID(ctx, rt.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrPrincipalMissing
		}
		return nil, err
	}

	jti := idx.New().String()
	newRefresh, err := s.Codec.IssueRefresh(user.ID, jti)
	if err != nil {
		return nil, err
	}
	access, err := s.Codec.IssueAccess(user.ID, user.Role)
	if err != nil {
		return nil, err
	}

	newRecord := domain.RefreshToken{
		ID:        jti,
		UserID:    user.ID,
		TokenHash: cryptox.FingerprintToken(newRefresh),
		ExpiresAt: time.Now().Add(s.Codec.RefreshTTL()),
	}

	// Revoke old and create new atomically so a crash cannot leave two
	// live tokens for the same rotation.
	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.RefreshTokens().RevokeRefreshToken(ctx, rt.ID); err != nil {
			return err
		}
		return tx.RefreshTokens().CreateRefreshToken(ctx, newRecord)
	})
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		User: user,
		Pair: domain.TokenPair{
			AccessToken:  access,
			RefreshToken: newRefresh,
			ExpiresIn:    s.Codec.AccessTTL(),
		},
	}, nil
}

// Logout revokes the refresh-token record referenced by the presented
// token. It is best-effort: an invalid or already-revoked token is not an
// error, because the HTTP layer clears cookies unconditionally either way.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}

	claims, err := s.Codec.VerifyRefresh(refreshToken)
	if err != nil {
		return nil
	}

	err = s.Store.RefreshTokens().RevokeRefreshToken(ctx, claims.ID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return nil
}

// Identify loads the principal behind a verified session.
func (s *AuthService) Identify(ctx context.Context, userID string) (domain.User, error) {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.User{}, ErrPrincipalMissing
		}
		return domain.User{}, err
	}
	return user, nil
}

// ChangePassword updates the hash and revokes every outstanding refresh
// token for the user, forcing re-login everywhere.
func (s *AuthService) ChangePassword(ctx context.Context, userID, current, next string) error {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrPrincipalMissing
		}
		return err
	}

	if err := cryptox.VerifyPassword(current, user.PasswordHash); err != nil {
		if errors.Is(err, cryptox.ErrPasswordMismatch) {
			return ErrInvalidCredentials
		}
		return err
	}

	hash, err := cryptox.HashPassword(next)
	if err != nil {
		return err
	}

	return s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Users().UpdatePasswordHash(ctx, userID, hash); err != nil {
			return err
		}
		return tx.RefreshTokens().RevokeAllUserRefreshTokens(ctx, userID)
	})
}

// recordFailure counts a failed attempt and maps the outcome to the
// user-facing error. The attempt that crosses the threshold still reads as
// invalid credentials; the lockout message starts on the next attempt.
func (s *AuthService) recordFailure(ctx context.Context, key string) error {
	if _, err := s.Throttle.RecordFailure(ctx, key); err != nil {
		slogx.FromContext(ctx).Error("recording failed login attempt", slog.Any("error", err))
	}
	return ErrInvalidCredentials
}

// issuePair mints an access+refresh pair and persists the refresh record.
func (s *AuthService) issuePair(ctx context.Context, user domain.User) (domain.TokenPair, error) {
	jti := idx.New().String()

	refresh, err := s.Codec.IssueRefresh(user.ID, jti)
	if err != nil {
		return domain.TokenPair{}, err
	}
	access, err := s.Codec.IssueAccess(user.ID, user.Role)
	if err != nil {
		return domain.TokenPair{}, err
	}

	record := domain.RefreshToken{
		ID:        jti,
		UserID:    user.ID,
		TokenHash: cryptox.FingerprintToken(refresh),
		ExpiresAt: time.Now().Add(s.Codec.RefreshTTL()),
	}
	if err := s.Store.RefreshTokens().CreateRefreshToken(ctx, record); err != nil {
		return domain.TokenPair{}, err
	}

	return domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    s.Codec.AccessTTL(),
	}, nil
}
