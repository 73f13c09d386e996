package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ligarius/ams-sub001/internal/auth/service"
	"github.com/ligarius/ams-sub001/internal/auth/session"
	"github.com/ligarius/ams-sub001/internal/auth/throttle"
	"github.com/ligarius/ams-sub001/pkg/httpx"
	"github.com/ligarius/ams-sub001/pkg/slogx"
)

// LoginHandler serves POST /v1/login.
// Accepts application/x-www-form-urlencoded with email and password fields.
type LoginHandler struct {
	AuthService *service.AuthService
	Sessions    *session.Bridge
}

func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	if ct := r.Header.Get("Content-Type"); ct != "" &&
		!strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		ErrInvalidFormBody.WriteError(w)
		return
	}
	if err := r.ParseForm(); err != nil {
		ErrInvalidFormBody.WriteError(w)
		return
	}

	email := strings.TrimSpace(r.Form.Get("email"))
	password := r.Form.Get("password")
	if email == "" || password == "" {
		ErrMissingCredentials.WriteError(w)
		return
	}

	res, err := h.AuthService.Login(ctx, email, password, httpx.ClientIP(r))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			ErrInvalidCredentials.WriteError(w)
		case errors.Is(err, service.ErrTooManyAttempts):
			ErrTooManyAttempts.WriteError(w)
		case errors.Is(err, throttle.ErrUnavailable):
			log.Error("throttle backend unavailable", "error", err)
			ErrInternal.WriteError(w)
		default:
			log.Error("login failed", "error", err)
			ErrInternal.WriteError(w)
		}
		return
	}

	h.Sessions.Establish(w, res.Pair)
	httpx.WriteJSON(w, http.StatusOK, SessionResponse{
		UserID:    res.User.ID,
		Email:     res.User.Email,
		Name:      res.User.Name,
		Role:      res.User.Role,
		IssuedAt:  time.Now().UTC(),
		ExpiresIn: int64(res.Pair.ExpiresIn.Seconds()),
	})
}
