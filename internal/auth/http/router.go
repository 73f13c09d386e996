package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/ligarius/ams-sub001/internal/auth/service"
	"github.com/ligarius/ams-sub001/internal/auth/session"
	"github.com/ligarius/ams-sub001/internal/auth/store"
	"github.com/ligarius/ams-sub001/internal/auth/throttle"
	"github.com/ligarius/ams-sub001/pkg/httpx"
	"github.com/ligarius/ams-sub001/pkg/jwtx"
	"github.com/ligarius/ams-sub001/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	codec        *jwtx.Codec
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store    store.Store
	throttle throttle.Throttle

	AuthService *service.AuthService
	Sessions    *session.Bridge
}

func NewRouter(
	codec *jwtx.Codec,
	buildVersion string,
	st store.Store,
	tl throttle.Throttle,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		codec:        codec,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		throttle:     tl,
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	// POST /v1/login - strict limit keyed by address and submitted email,
	// so one address cannot spray accounts and one account cannot be
	// sprayed from many forms behind the same proxy.
	r.Mux.Handle("POST /v1/login",
		httpx.Chain(&LoginHandler{AuthService: r.AuthService, Sessions: r.Sessions},
			httpx.RateLimitByIPAndFormField(httpx.StrictLimit, "email"),
		),
	)

	r.Mux.Handle("POST /v1/logout",
		httpx.Chain(&LogoutHandler{AuthService: r.AuthService, Sessions: r.Sessions},
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	r.Mux.Handle("POST /v1/refresh",
		httpx.Chain(&RefreshHandler{AuthService: r.AuthService, Sessions: r.Sessions},
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	// GET /v1/session - polled by frontends, so the loosest limit.
	r.Mux.Handle("GET /v1/session",
		httpx.Chain(&SessionHandler{Sessions: r.Sessions, Codec: r.codec},
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.store, r.throttle))
}
