// Package throttle tracks failed login attempts per discriminator key and
// locks the key out once a threshold of failures lands inside a sliding
// window. The window starts at the first recorded failure and the elapsed
// check happens inside the same critical section as the increment, so
// concurrent failures cannot race past the threshold or reset the window
// early.
package throttle

import (
	"context"
	"errors"
	"time"
)

// Config holds the lockout policy.
type Config struct {
	// MaxAttempts is the number of failures within Window that locks the key.
	MaxAttempts int
	// Window is how long failures accumulate, measured from the first one.
	Window time.Duration
}

// DefaultConfig matches the service defaults: 5 attempts per 15 minutes.
var DefaultConfig = Config{MaxAttempts: 5, Window: 15 * time.Minute}

// ErrUnavailable indicates the throttle backend is unreachable. Callers
// should fail closed on login when this happens.
var ErrUnavailable = errors.New("throttle: backend unavailable")

// Throttle is the failed-attempt counter. Keys are opaque discriminators,
// typically lowercased email plus client IP.
type Throttle interface {
	// RecordFailure counts a failed attempt for key and reports whether the
	// key is now locked. The first failure of a fresh window resets the
	// window start to now and the count to one.
	RecordFailure(ctx context.Context, key string) (locked bool, err error)

	// IsLocked reports whether key has reached MaxAttempts failures within
	// the current window.
	IsLocked(ctx context.Context, key string) (bool, error)

	// Reset clears the record for key. Called on successful authentication
	// so a legitimate login after failures is not penalized.
	Reset(ctx context.Context, key string) error
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultConfig.MaxAttempts
	}
	if c.Window <= 0 {
		c.Window = DefaultConfig.Window
	}
	return c
}
