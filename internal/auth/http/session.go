package http

import (
	"net/http"

	"github.com/ligarius/ams-sub001/internal/auth/session"
	"github.com/ligarius/ams-sub001/pkg/httpx"
	"github.com/ligarius/ams-sub001/pkg/jwtx"
)

// SessionHandler serves GET /v1/session: it reports who the caller is,
// renewing the access cookie from the refresh cookie when possible.
type SessionHandler struct {
	Sessions *session.Bridge
	Codec    *jwtx.Codec
}

func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sess, user, ok := h.Sessions.Ensure(r.Context(), w, r)
	if !ok {
		httpx.WriteJSON(w, http.StatusUnauthorized, SessionStateResponse{Authenticated: false})
		return
	}

	httpx.WriteJSON(w, http.StatusOK, SessionStateResponse{
		Authenticated: true,
		User: &SessionResponse{
			UserID:    user.ID,
			Email:     user.Email,
			Name:      user.Name,
			Role:      sess.Role,
			IssuedAt:  sess.IssuedAt.UTC(),
			ExpiresIn: int64(h.Codec.AccessTTL().Seconds()),
		},
	})
}
