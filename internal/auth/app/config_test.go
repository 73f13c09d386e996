package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func setRequiredSecrets(t *testing.T) {
	t.Helper()
	t.Setenv("AUTH_ACCESS_SECRET", "access-secret")
	t.Setenv("AUTH_REFRESH_SECRET", "refresh-secret")
}

func TestLoadConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		setRequiredSecrets(t)

		cfg, err := LoadConfig()
		require.NoError(t, err)
		require.Equal(t, "ligarius-auth", cfg.Issuer)
		require.Equal(t, 15*time.Minute, cfg.AccessTTL)
		require.Equal(t, 7*24*time.Hour, cfg.RefreshTTL)
		require.Equal(t, 5, cfg.MaxLoginAttempts)
		require.Equal(t, 15*time.Minute, cfg.LockoutWindow)
		require.Equal(t, "memory", cfg.ThrottleBackend)
		require.Equal(t, "auth.db", cfg.DatabaseFile)
		require.Equal(t, 8080, cfg.Port)
	})

	t.Run("missing access secret", func(t *testing.T) {
		t.Setenv("AUTH_ACCESS_SECRET", "")
		t.Setenv("AUTH_REFRESH_SECRET", "refresh-secret")

		_, err := LoadConfig()
		var cfgErr *ConfigError
		require.ErrorAs(t, err, &cfgErr)
		require.Equal(t, "AUTH_ACCESS_SECRET", cfgErr.Key)
	})

	t.Run("missing refresh secret", func(t *testing.T) {
		t.Setenv("AUTH_ACCESS_SECRET", "access-secret")
		t.Setenv("AUTH_REFRESH_SECRET", "")

		_, err := LoadConfig()
		var cfgErr *ConfigError
		require.ErrorAs(t, err, &cfgErr)
		require.Equal(t, "AUTH_REFRESH_SECRET", cfgErr.Key)
	})

	t.Run("identical secrets are rejected", func(t *testing.T) {
		t.Setenv("AUTH_ACCESS_SECRET", "same")
		t.Setenv("AUTH_REFRESH_SECRET", "same")

		_, err := LoadConfig()
		var cfgErr *ConfigError
		require.ErrorAs(t, err, &cfgErr)
	})

	t.Run("redis backend requires an address", func(t *testing.T) {
		setRequiredSecrets(t)
		t.Setenv("AUTH_THROTTLE_BACKEND", "redis")

		_, err := LoadConfig()
		var cfgErr *ConfigError
		require.ErrorAs(t, err, &cfgErr)
		require.Equal(t, "AUTH_REDIS_ADDR", cfgErr.Key)

		t.Setenv("AUTH_REDIS_ADDR", "localhost:6379")
		cfg, err := LoadConfig()
		require.NoError(t, err)
		require.Equal(t, "redis", cfg.ThrottleBackend)
	})

	t.Run("unknown throttle backend is rejected", func(t *testing.T) {
		setRequiredSecrets(t)
		t.Setenv("AUTH_THROTTLE_BACKEND", "memcached")

		_, err := LoadConfig()
		var cfgErr *ConfigError
		require.ErrorAs(t, err, &cfgErr)
	})

	t.Run("duration overrides", func(t *testing.T) {
		setRequiredSecrets(t)
		t.Setenv("AUTH_LOCKOUT_WINDOW", "5m")
		t.Setenv("AUTH_ACCESS_TTL", "30")

		cfg, err := LoadConfig()
		require.NoError(t, err)
		require.Equal(t, 5*time.Minute, cfg.LockoutWindow)
		// Bare integers are minutes.
		require.Equal(t, 30*time.Minute, cfg.AccessTTL)
	})
}
