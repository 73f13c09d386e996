package http

import (
	"net/http"

	"github.com/ligarius/ams-sub001/internal/auth/service"
	"github.com/ligarius/ams-sub001/internal/auth/session"
	"github.com/ligarius/ams-sub001/pkg/httpx"
	"github.com/ligarius/ams-sub001/pkg/slogx"
)

// LogoutHandler serves POST /v1/logout.
// Cookies are cleared no matter what; revocation of the refresh record is
// best-effort on top of that.
type LogoutHandler struct {
	AuthService *service.AuthService
	Sessions    *session.Bridge
}

func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	refresh := h.Sessions.RefreshTokenFrom(r)
	if err := h.AuthService.Logout(ctx, refresh); err != nil {
		// Still clear the cookies: the browser forgets the session even
		// when the revocation write failed.
		slogx.FromContext(ctx).Error("revoking refresh token on logout", "error", err)
	}

	h.Sessions.Clear(w)
	httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}
