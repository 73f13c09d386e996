package httpx

import (
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ligarius/ams-sub001/pkg/slogx"
	"golang.org/x/time/rate"
)

// RateLimitConfig defines a per-key request budget.
type RateLimitConfig struct {
	RequestsPerWindow int
	Window            time.Duration
	// Burst allows short spikes above the sustained rate.
	Burst int
}

// Endpoint profiles. Overridable via RATELIMIT_{NAME}_{REQUESTS,WINDOW_SEC,BURST}
// environment variables, mostly so tests can tighten or relax them.
var (
	// StrictLimit guards credential-bearing endpoints.
	StrictLimit = RateLimitConfig{RequestsPerWindow: 10, Window: time.Minute, Burst: 10}

	// ModerateLimit suits authenticated session operations.
	ModerateLimit = RateLimitConfig{RequestsPerWindow: 60, Window: time.Minute, Burst: 60}

	// PublicLimit suits health and other unauthenticated read endpoints.
	PublicLimit = RateLimitConfig{RequestsPerWindow: 600, Window: time.Minute, Burst: 600}
)

func init() {
	StrictLimit = rateLimitFromEnv("STRICT", StrictLimit)
	ModerateLimit = rateLimitFromEnv("MODERATE", ModerateLimit)
	PublicLimit = rateLimitFromEnv("PUBLIC", PublicLimit)
}

func rateLimitFromEnv(name string, def RateLimitConfig) RateLimitConfig {
	cfg := def

	if v := os.Getenv("RATELIMIT_" + name + "_REQUESTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RequestsPerWindow = n
		}
	}
	if v := os.Getenv("RATELIMIT_" + name + "_WINDOW_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Window = time.Duration(n) * time.Second
		}
	}
	if v := os.Getenv("RATELIMIT_" + name + "_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Burst = n
		}
	}

	return cfg
}

// KeyExtractor derives the grouping key for rate limiting from a request.
type KeyExtractor func(*http.Request) string

// IPKey groups requests by originating client IP.
func IPKey(r *http.Request) string { return ClientIP(r) }

// FormFieldKey groups requests by a form or query field value, e.g. the
// submitted email on a login endpoint.
func FormFieldKey(field string) KeyExtractor {
	return func(r *http.Request) string {
		if err := r.ParseForm(); err != nil {
			return ""
		}
		return strings.ToLower(strings.TrimSpace(r.FormValue(field)))
	}
}

// CompositeKey joins several extractors into one key.
func CompositeKey(sep string, extractors ...KeyExtractor) KeyExtractor {
	return func(r *http.Request) string {
		parts := make([]string, 0, len(extractors))
		for _, extract := range extractors {
			if k := extract(r); k != "" {
				parts = append(parts, k)
			}
		}
		return strings.Join(parts, sep)
	}
}

// keyedLimiter holds one token bucket per key.
type keyedLimiter struct {
	limiters sync.Map // map[string]*rate.Limiter
	rate     rate.Limit
	burst    int

	mu          sync.Mutex
	lastCleanup time.Time
}

func (kl *keyedLimiter) get(key string) *rate.Limiter {
	if v, ok := kl.limiters.Load(key); ok {
		return v.(*rate.Limiter)
	}

	created := rate.NewLimiter(kl.rate, kl.burst)
	actual, _ := kl.limiters.LoadOrStore(key, created)

	kl.maybeCleanup()

	return actual.(*rate.Limiter)
}

// maybeCleanup drops idle limiters so ephemeral keys (one-off IPs) don't
// accumulate forever. A full bucket means the key has been idle for at least
// one window.
func (kl *keyedLimiter) maybeCleanup() {
	kl.mu.Lock()
	defer kl.mu.Unlock()

	if time.Since(kl.lastCleanup) < 5*time.Minute {
		return
	}
	kl.lastCleanup = time.Now()

	kl.limiters.Range(func(key, value any) bool {
		if value.(*rate.Limiter).Tokens() >= float64(kl.burst) {
			kl.limiters.Delete(key)
		}
		return true
	})
}

// RateLimit builds a middleware enforcing cfg per extracted key. Requests
// with an empty key are allowed through (and logged) rather than sharing a
// single global bucket.
func RateLimit(cfg RateLimitConfig, extract KeyExtractor) Middleware {
	kl := &keyedLimiter{
		rate:        rate.Limit(float64(cfg.RequestsPerWindow) / cfg.Window.Seconds()),
		burst:       cfg.Burst,
		lastCleanup: time.Now(),
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log := slogx.FromContext(r.Context())

			key := extract(r)
			if key == "" {
				log.Warn("rate limit: no key extracted, allowing request")
				next.ServeHTTP(w, r)
				return
			}

			limiter := kl.get(key)
			if !limiter.Allow() {
				reservation := limiter.Reserve()
				delay := reservation.Delay()
				reservation.Cancel()

				retryAfter := max(int(delay.Seconds()), 1)
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.RequestsPerWindow))

				log.Warn("rate limit exceeded",
					"key", key,
					"endpoint", r.URL.Path,
					"retry_after", retryAfter,
				)

				WriteJSON(w, http.StatusTooManyRequests, map[string]string{
					"error":   "rate_limit_exceeded",
					"message": "Too many requests. Please try again later.",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitByIP limits by client IP only.
func RateLimitByIP(cfg RateLimitConfig) Middleware {
	return RateLimit(cfg, IPKey)
}

// RateLimitByIPAndFormField limits by IP plus a form field, e.g. IP+email on
// the login endpoint so one address cannot spray many accounts.
func RateLimitByIPAndFormField(cfg RateLimitConfig, field string) Middleware {
	return RateLimit(cfg, CompositeKey(":", IPKey, FormFieldKey(field)))
}
