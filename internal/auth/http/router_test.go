package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ligarius/ams-sub001/internal/auth/domain"
	"github.com/ligarius/ams-sub001/internal/auth/service"
	"github.com/ligarius/ams-sub001/internal/auth/session"
	"github.com/ligarius/ams-sub001/internal/auth/store"
	"github.com/ligarius/ams-sub001/internal/auth/store/drivers/sqlite"
	"github.com/ligarius/ams-sub001/internal/auth/throttle"
	"github.com/ligarius/ams-sub001/pkg/cryptox"
	"github.com/ligarius/ams-sub001/pkg/idx"
	"github.com/ligarius/ams-sub001/pkg/jwtx"
	"github.com/ligarius/ams-sub001/pkg/slogx"
)

type testEnv struct {
	server *httptest.Server
	client *http.Client
	store  store.Store
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "api.db")
	st, err := sqlite.NewStore(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	codec, err := jwtx.NewCodec(jwtx.CodecConfig{
		Issuer:        "test",
		AccessSecret:  []byte("access-secret"),
		RefreshSecret: []byte("refresh-secret"),
	})
	require.NoError(t, err)

	tl := throttle.NewMemory(throttle.DefaultConfig)
	svc := &service.AuthService{Store: st, Codec: codec, Throttle: tl}
	bridge := &session.Bridge{Codec: codec, Store: st}

	router := NewRouter(codec, "test", st, tl, slogx.Discard())
	router.AuthService = svc
	router.Sessions = bridge
	router.ApplyRoutes()

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	jar := newCookieJar(t)
	return &testEnv{
		server: srv,
		client: &http.Client{Jar: jar},
		store:  st,
	}
}

func newCookieJar(t *testing.T) http.CookieJar {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return jar
}

func (e *testEnv) seedUser(t *testing.T, email, password, role string) domain.User {
	t.Helper()

	hash, err := cryptox.HashPassword(password)
	require.NoError(t, err)

	user := domain.User{
		ID:           idx.New().String(),
		Email:        email,
		Name:         "Test User",
		PasswordHash: hash,
		Role:         role,
	}
	require.NoError(t, e.store.Users().CreateUser(context.Background(), user))
	return user
}

func (e *testEnv) postForm(t *testing.T, path string, form url.Values) *http.Response {
	t.Helper()
	resp, err := e.client.Post(
		e.server.URL+path,
		"application/x-www-form-urlencoded",
		strings.NewReader(form.Encode()),
	)
	require.NoError(t, err)
	return resp
}

func (e *testEnv) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := e.client.Get(e.server.URL + path)
	require.NoError(t, err)
	return resp
}

func (e *testEnv) login(t *testing.T, email, password string) *http.Response {
	t.Helper()
	return e.postForm(t, "/v1/login", url.Values{
		"email":    {email},
		"password": {password},
	})
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestLoginEndpoint(t *testing.T) {
	t.Parallel()

	t.Run("valid credentials set both cookies", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		user := env.seedUser(t, "alice@example.com", "correct horse", domain.RoleAuditor)

		resp := env.login(t, "alice@example.com", "correct horse")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		names := map[string]bool{}
		for _, c := range resp.Cookies() {
			names[c.Name] = true
			require.True(t, c.HttpOnly)
		}
		require.True(t, names[session.AccessCookie])
		require.True(t, names[session.RefreshCookie])

		body := decodeBody[SessionResponse](t, resp)
		require.Equal(t, user.ID, body.UserID)
		require.Equal(t, domain.RoleAuditor, body.Role)
		require.Positive(t, body.ExpiresIn)
	})

	t.Run("wrong password is a generic 401", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		env.seedUser(t, "alice@example.com", "correct horse", domain.RoleViewer)

		resp := env.login(t, "alice@example.com", "wrong")
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		body := decodeBody[APIError](t, resp)
		require.Equal(t, ErrorCodeInvalidCredentials, body.Code)
	})

	t.Run("unknown email matches the wrong-password response", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		env.seedUser(t, "alice@example.com", "correct horse", domain.RoleViewer)

		wrongPass := env.login(t, "alice@example.com", "wrong")
		unknown := env.login(t, "nobody@example.com", "wrong")

		require.Equal(t, wrongPass.StatusCode, unknown.StatusCode)
		require.Equal(t,
			decodeBody[APIError](t, wrongPass),
			decodeBody[APIError](t, unknown),
		)
	})

	t.Run("missing fields are a 400", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)

		resp := env.postForm(t, "/v1/login", url.Values{"email": {"alice@example.com"}})
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("lockout yields 429 even with the right password", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		env.seedUser(t, "alice@example.com", "correct horse", domain.RoleViewer)

		for i := 0; i < throttle.DefaultConfig.MaxAttempts; i++ {
			resp := env.login(t, "alice@example.com", "wrong")
			require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			resp.Body.Close()
		}

		resp := env.login(t, "alice@example.com", "correct horse")
		require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

		body := decodeBody[APIError](t, resp)
		require.Equal(t, ErrorCodeTooManyAttempts, body.Code)
	})
}

func TestSessionEndpoint(t *testing.T) {
	t.Parallel()

	t.Run("login then session", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		user := env.seedUser(t, "alice@example.com", "correct horse", domain.RoleAdmin)

		resp := env.login(t, "alice@example.com", "correct horse")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()

		resp = env.get(t, "/v1/session")
		require.Equal(t, http.StatusOK, resp.StatusCode)

		body := decodeBody[SessionStateResponse](t, resp)
		require.True(t, body.Authenticated)
		require.NotNil(t, body.User)
		require.Equal(t, user.ID, body.User.UserID)
		require.Equal(t, user.Email, body.User.Email)
		require.Equal(t, domain.RoleAdmin, body.User.Role)
	})

	t.Run("no cookies is a 401", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)

		resp := env.get(t, "/v1/session")
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		body := decodeBody[SessionStateResponse](t, resp)
		require.False(t, body.Authenticated)
		require.Nil(t, body.User)
	})

	t.Run("deleted user loses the session", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		user := env.seedUser(t, "alice@example.com", "correct horse", domain.RoleViewer)

		resp := env.login(t, "alice@example.com", "correct horse")
		resp.Body.Close()

		require.NoError(t, env.store.Users().DeleteUser(context.Background(), user.ID))

		resp = env.get(t, "/v1/session")
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		resp.Body.Close()
	})
}

func TestLogoutEndpoint(t *testing.T) {
	t.Parallel()

	t.Run("full cycle: login, logout, session gone", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		env.seedUser(t, "alice@example.com", "correct horse", domain.RoleViewer)

		resp := env.login(t, "alice@example.com", "correct horse")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()

		resp = env.postForm(t, "/v1/logout", url.Values{})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		for _, c := range resp.Cookies() {
			require.Empty(t, c.Value)
		}
		resp.Body.Close()

		resp = env.get(t, "/v1/session")
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("logout without a session still succeeds", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)

		resp := env.postForm(t, "/v1/logout", url.Values{})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	})
}

func TestRefreshEndpoint(t *testing.T) {
	t.Parallel()

	t.Run("rotates cookies and keeps the session alive", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		user := env.seedUser(t, "alice@example.com", "correct horse", domain.RoleViewer)

		resp := env.login(t, "alice@example.com", "correct horse")
		resp.Body.Close()

		var before string
		for _, c := range resp.Cookies() {
			if c.Name == session.RefreshCookie {
				before = c.Value
			}
		}
		require.NotEmpty(t, before)

		resp = env.postForm(t, "/v1/refresh", url.Values{})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var after string
		for _, c := range resp.Cookies() {
			if c.Name == session.RefreshCookie {
				after = c.Value
			}
		}
		require.NotEmpty(t, after)
		require.NotEqual(t, before, after)

		body := decodeBody[SessionResponse](t, resp)
		require.Equal(t, user.ID, body.UserID)

		resp = env.get(t, "/v1/session")
		require.Equal(t, http.StatusOK, resp.StatusCode)
		resp.Body.Close()
	})

	t.Run("accepts the token as a form field without cookies", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		user := env.seedUser(t, "alice@example.com", "correct horse", domain.RoleViewer)

		resp := env.login(t, "alice@example.com", "correct horse")
		resp.Body.Close()

		var refresh string
		for _, c := range resp.Cookies() {
			if c.Name == session.RefreshCookie {
				refresh = c.Value
			}
		}
		require.NotEmpty(t, refresh)

		// A bare client with no cookie jar, as an API consumer would be.
		bare := &http.Client{}
		raw, err := bare.PostForm(env.server.URL+"/v1/refresh", url.Values{
			"refresh_token": {refresh},
		})
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, raw.StatusCode)

		body := decodeBody[SessionResponse](t, raw)
		require.Equal(t, user.ID, body.UserID)
	})

	t.Run("without a refresh cookie is a 401", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)

		resp := env.postForm(t, "/v1/refresh", url.Values{})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		body := decodeBody[APIError](t, resp)
		require.Equal(t, ErrorCodeInvalidToken, body.Code)
	})

	t.Run("revoked token is a 401 and clears cookies", func(t *testing.T) {
		t.Parallel()
		env := newTestEnv(t)
		user := env.seedUser(t, "alice@example.com", "correct horse", domain.RoleViewer)

		resp := env.login(t, "alice@example.com", "correct horse")
		resp.Body.Close()

		ctx := context.Background()
		require.NoError(t, env.store.RefreshTokens().RevokeAllUserRefreshTokens(ctx, user.ID))

		resp = env.postForm(t, "/v1/refresh", url.Values{})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		resp.Body.Close()
	})
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	resp := env.get(t, "/livez")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody[HealthResponse](t, resp)
	require.Equal(t, "ok", body.Status)

	resp = env.get(t, "/readyz")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ready := decodeBody[HealthResponse](t, resp)
	require.Equal(t, "ok", ready.Status)
	require.NotNil(t, ready.Checks)
	require.Equal(t, "ok", ready.Checks.Database)
	require.Equal(t, "ok", ready.Checks.Throttle)
}

func TestRateLimitHeaders(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.seedUser(t, "alice@example.com", "correct horse", domain.RoleViewer)

	// Hammer the login endpoint until the HTTP limiter fires. The account
	// throttle answers 429 first but without rate-limit headers; once the
	// request budget is gone the limiter responds before the handler.
	var last *http.Response
	for i := 0; i < 25; i++ {
		resp := env.login(t, "alice@example.com", "wrong")
		if last != nil {
			last.Body.Close()
		}
		last = resp
		if resp.StatusCode == http.StatusTooManyRequests &&
			resp.Header.Get("Retry-After") != "" {
			break
		}
	}
	require.NotNil(t, last)
	require.Equal(t, http.StatusTooManyRequests, last.StatusCode)
	require.NotEmpty(t, last.Header.Get("Retry-After"))
	require.NotEmpty(t, last.Header.Get("X-RateLimit-Limit"))
	last.Body.Close()
}
