package app

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/ligarius/ams-sub001/internal/auth/throttle"
	"github.com/ligarius/ams-sub001/pkg/jwtx"
)

// ConfigError reports a missing or unusable configuration value. It is
// returned from LoadConfig and fails startup; secrets are never defaulted.
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Key, e.Reason)
}

type Config struct {
	Issuer        string // Issuer claim for tokens (default: ligarius-auth)
	AccessSecret  []byte // Required: HMAC secret for access tokens
	RefreshSecret []byte // Required: HMAC secret for refresh tokens, independent of AccessSecret
	AccessTTL     time.Duration
	RefreshTTL    time.Duration

	MaxLoginAttempts int           // Failed attempts before lockout (default: 5)
	LockoutWindow    time.Duration // Sliding window for the attempt count (default: 15m)
	ThrottleBackend  string        // memory or redis (default: memory)
	RedisAddr        string        // Required when ThrottleBackend is redis

	DatabaseFile   string // Path to SQLite database file (default: ./auth.db)
	BootstrapEmail string // Optional: seed an admin with this email on an empty database

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Housekeeping interval (default: 1h)
}

func LoadConfig() (Config, error) {
	cfg := Config{
		Issuer:        getEnvOrDefault("AUTH_ISSUER", "ligarius-auth"),
		AccessSecret:  []byte(os.Getenv("AUTH_ACCESS_SECRET")),
		RefreshSecret: []byte(os.Getenv("AUTH_REFRESH_SECRET")),
		AccessTTL:     getEnvDurationOrDefault("AUTH_ACCESS_TTL", jwtx.DefaultAccessTTL),
		RefreshTTL:    getEnvDurationOrDefault("AUTH_REFRESH_TTL", jwtx.DefaultRefreshTTL),

		MaxLoginAttempts: getEnvIntOrDefault("AUTH_MAX_LOGIN_ATTEMPTS", throttle.DefaultConfig.MaxAttempts),
		LockoutWindow:    getEnvDurationOrDefault("AUTH_LOCKOUT_WINDOW", throttle.DefaultConfig.Window),
		ThrottleBackend:  getEnvOrDefault("AUTH_THROTTLE_BACKEND", "memory"),
		RedisAddr:        os.Getenv("AUTH_REDIS_ADDR"),

		DatabaseFile:   getEnvOrDefault("AUTH_DATABASE_FILE", "auth.db"),
		BootstrapEmail: os.Getenv("AUTH_BOOTSTRAP_EMAIL"),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
	}

	if len(cfg.AccessSecret) == 0 {
		return Config{}, &ConfigError{Key: "AUTH_ACCESS_SECRET", Reason: "must be set"}
	}
	if len(cfg.RefreshSecret) == 0 {
		return Config{}, &ConfigError{Key: "AUTH_REFRESH_SECRET", Reason: "must be set"}
	}
	if string(cfg.AccessSecret) == string(cfg.RefreshSecret) {
		return Config{}, &ConfigError{
			Key:    "AUTH_REFRESH_SECRET",
			Reason: "must differ from AUTH_ACCESS_SECRET",
		}
	}

	switch cfg.ThrottleBackend {
	case "memory":
	case "redis":
		if cfg.RedisAddr == "" {
			return Config{}, &ConfigError{
				Key:    "AUTH_REDIS_ADDR",
				Reason: "must be set when AUTH_THROTTLE_BACKEND=redis",
			}
		}
	default:
		return Config{}, &ConfigError{
			Key:    "AUTH_THROTTLE_BACKEND",
			Reason: fmt.Sprintf("unknown backend %q, expected memory or redis", cfg.ThrottleBackend),
		}
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Durations like "1h", "30m", "90s"
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Bare integers are read as minutes
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
