package service

import (
	"context"
	"log/slog"

	"github.com/ligarius/ams-sub001/internal/auth/domain"
	"github.com/ligarius/ams-sub001/internal/auth/store"
	"github.com/ligarius/ams-sub001/pkg/cryptox"
	"github.com/ligarius/ams-sub001/pkg/idx"
	"github.com/ligarius/ams-sub001/pkg/slogx"
)

// BootstrapService seeds the first admin account on an empty database so a
// fresh deployment is usable without manual SQL.
type BootstrapService struct {
	Store store.Store

	// Email for the seeded admin. Empty disables seeding.
	Email string
}

// EnsureAdmin creates the admin user if no users exist yet. The generated
// password is returned so the caller can surface it exactly once; it is
// never stored in plaintext.
func (s *BootstrapService) EnsureAdmin(ctx context.Context) (string, error) {
	l := slogx.FromContext(ctx)

	if s.Email == "" {
		return "", nil
	}

	empty, err := s.Store.Users().IsEmpty(ctx)
	if err != nil {
		return "", err
	}
	if !empty {
		return "", nil
	}

	password, err := cryptox.GeneratePassword()
	if err != nil {
		return "", err
	}
	hash, err := cryptox.HashPassword(password)
	if err != nil {
		return "", err
	}

	admin := domain.User{
		ID:           idx.New().String(),
		Email:        s.Email,
		Name:         "Administrator",
		PasswordHash: hash,
		Role:         domain.RoleAdmin,
	}
	if err := s.Store.Users().CreateUser(ctx, admin); err != nil {
		return "", err
	}

	l.Info("seeded initial admin account",
		slog.String("user_id", admin.ID),
		slog.String("email", admin.Email),
	)
	return password, nil
}
