package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/ligarius/ams-sub001/internal/auth/service"
	"github.com/ligarius/ams-sub001/internal/auth/session"
	"github.com/ligarius/ams-sub001/pkg/httpx"
	"github.com/ligarius/ams-sub001/pkg/slogx"
)

// RefreshHandler serves POST /v1/refresh: it rotates the refresh token and
// re-establishes both cookies. The old refresh token is dead afterwards.
type RefreshHandler struct {
	AuthService *service.AuthService
	Sessions    *session.Bridge
}

func (h *RefreshHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Cookie first; non-browser clients may send the token as a form field.
	refresh := h.Sessions.RefreshTokenFrom(r)
	if refresh == "" {
		if err := r.ParseForm(); err == nil {
			refresh = r.Form.Get("refresh_token")
		}
	}
	if refresh == "" {
		ErrInvalidRefreshToken.WriteError(w)
		return
	}

	res, err := h.AuthService.Refresh(ctx, refresh)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRefresh),
			errors.Is(err, service.ErrPrincipalMissing):
			h.Sessions.Clear(w)
			ErrInvalidRefreshToken.WriteError(w)
		default:
			slogx.FromContext(ctx).Error("rotating refresh token", "error", err)
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
