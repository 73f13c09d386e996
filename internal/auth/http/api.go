package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ligarius/ams-sub001/pkg/httpx"
)

const (
	ErrorCodeInvalidRequest     = "invalid_request"
	ErrorCodeInvalidCredentials = "invalid_credentials"
	ErrorCodeTooManyAttempts    = "too_many_attempts"
	ErrorCodeInvalidToken       = "invalid_token"
	ErrorCodeServerError        = "server_error"
)

// APIError is the JSON error shape every endpoint returns. It implements
// the error interface so handlers can pass it around before writing it.
type APIError struct {
	StatusCode int `json:"-"`

	Code        string `json:"error"`
	Description string `json:"error_description"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Description)
}

// WriteError writes this APIError to an HTTP response writer.
func (e *APIError) WriteError(w http.ResponseWriter) {
	httpx.NoCache(w)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.StatusCode)
	_ = json.NewEncoder(w).Encode(e)
}

var (
	ErrInvalidFormBody = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidRequest,
		Description: "the request body could not be parsed",
	}

	ErrMissingCredentials = &APIError{
		StatusCode:  http.StatusBadRequest,
		Code:        ErrorCodeInvalidRequest,
		Description: "email and password are required",
	}

	// ErrInvalidCredentials deliberately does not say which of the two
	// was wrong.
	ErrInvalidCredentials = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidCredentials,
		Description: "email or password is incorrect",
	}

	ErrTooManyAttempts = &APIError{
		StatusCode:  http.StatusTooManyRequests,
		Code:        ErrorCodeTooManyAttempts,
		Description: "too many failed login attempts, try again later",
	}

	ErrInvalidRefreshToken = &APIError{
		StatusCode:  http.StatusUnauthorized,
		Code:        ErrorCodeInvalidToken,
		Description: "the refresh token is missing, expired, or revoked",
	}

	ErrInternal = &APIError{
		StatusCode:  http.StatusInternalServerError,
		Code:        ErrorCodeServerError,
		Description: "an internal error occurred",
	}
)

// SessionStateResponse is the body of GET /v1/session: authenticated plus
// the user when a session exists, authenticated false otherwise.
type SessionStateResponse struct {
	Authenticated bool             `json:"authenticated"`
	User          *SessionResponse `json:"user,omitempty"`
}

// SessionResponse describes the authenticated principal. It is the success
// body of POST /v1/login and /v1/refresh, and nests under "user" in
// SessionStateResponse.
type SessionResponse struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresIn int64     `json:"expires_in"`
}

// HealthResponse is the body of the liveness and readiness probes.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

type HealthChecks struct {
	Database string `json:"database"`
	Throttle string `json:"throttle"`
}
