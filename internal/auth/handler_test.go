package auth_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leavedesk/leavedesk/internal/auth"
	"github.com/leavedesk/leavedesk/internal/shared"
)

type authFixture struct {
	router   http.Handler
	sessions *shared.SessionManager
	repo     *stubRepo
	tokens   *auth.TokenIssuer
}

func newAuthFixture(t *testing.T, landing auth.LandingFunc) *authFixture {
	t.Helper()
	_, client := newRedis(t)
	repo := newStubRepo()
	sessions := shared.NewSessionManager(client, shared.SessionConfig{CookieName: "test_session", TTL: time.Hour})
	tokens := auth.NewTokenIssuer("secret", time.Hour, client)
	if landing == nil {
		landing = func(context.Context, auth.Principal) (string, error) { return "/dashboard/staff", nil }
	}
	handler := auth.NewHandler(auth.HandlerConfig{
		Service:  auth.NewService(repo, tokens),
		Sessions: sessions,
		CSRF:     shared.NewCSRFManager("csrfsecret"),
		Landing:  landing,
	})

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			sess, err := sessions.Load(req.Context(), req)
			require.NoError(t, err)
			ctx := shared.ContextWithSession(req.Context(), sess)
			rec := httptest.NewRecorder()
			next.ServeHTTP(rec, req.WithContext(ctx))
			require.NoError(t, sessions.Commit(ctx, w, req, sess))
			for k, v := range rec.Header() {
				w.Header()[k] = v
			}
			w.WriteHeader(rec.Code)
			_, _ = w.Write(rec.Body.Bytes())
		})
	})
	r.Route("/auth", handler.MountRoutes)
	return &authFixture{router: r, sessions: sessions, repo: repo, tokens: tokens}
}

func (f *authFixture) postForm(path string, values url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	res := httptest.NewRecorder()
	f.router.ServeHTTP(res, req)
	return res
}

func sessionCookie(t *testing.T, res *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range res.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("cookie %s not set", name)
	return nil
}

func TestLoginPageIssuesCSRFToken(t *testing.T) {
	f := newAuthFixture(t, nil)
	res := httptest.NewRecorder()
	f.router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/auth/login", nil))

	require.Equal(t, http.StatusOK, res.Code)
	var body struct {
		CSRFToken string `json:"csrfToken"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &body))
	assert.NotEmpty(t, body.CSRFToken)
}

func TestLoginInvalidCredentials(t *testing.T) {
	f := newAuthFixture(t, nil)
	f.repo.addUser(t, staffID, "user@test.local", "correctpass", true)

	res := f.postForm("/auth/login", url.Values{"email": {"user@test.local"}, "password": {"wrongpass"}})
	require.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), "Invalid email or password")
}

func TestLoginValidationErrors(t *testing.T) {
	f := newAuthFixture(t, nil)
	res := f.postForm("/auth/login", url.Values{"email": {"not-an-email"}, "password": {"short"}})
	require.Equal(t, http.StatusBadRequest, res.Code)
	assert.Contains(t, res.Body.String(), `"Email"`)
	assert.Contains(t, res.Body.String(), `"Password"`)
}

func TestLoginRedirectsToLanding(t *testing.T) {
	f := newAuthFixture(t, func(_ context.Context, p auth.Principal) (string, error) {
		if p.ID == staffID {
			return "/dashboard/admin", nil
		}
		return "", errors.New("unexpected principal")
	})
	f.repo.addUser(t, staffID, "admin@test.local", "correctpass", true)

	anon := httptest.NewRecorder()
	f.router.ServeHTTP(anon, httptest.NewRequest(http.MethodGet, "/auth/login", nil))
	before := sessionCookie(t, anon, "test_session")

	res := f.postForm("/auth/login", url.Values{"email": {"admin@test.local"}, "password": {"correctpass"}}, before)
	require.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/dashboard/admin", res.Header().Get("Location"))

	after := sessionCookie(t, res, "test_session")
	assert.NotEqual(t, before.Value, after.Value, "session id rotates on login")
	assert.Equal(t, staffID, f.repo.sessions[after.Value])

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(after)
	sess, err := f.sessions.Load(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, staffID, sess.User())
}

func TestLoginWithoutProfileIsRejected(t *testing.T) {
	f := newAuthFixture(t, func(context.Context, auth.Principal) (string, error) {
		return "", errors.New("profile missing")
	})
	f.repo.addUser(t, staffID, "ghost@test.local", "correctpass", true)

	res := f.postForm("/auth/login", url.Values{"email": {"ghost@test.local"}, "password": {"correctpass"}})
	require.Equal(t, http.StatusForbidden, res.Code)
}

func TestSignupThenDuplicate(t *testing.T) {
	f := newAuthFixture(t, nil)
	form := url.Values{"email": {"new@test.local"}, "password": {"longenough"}}

	res := f.postForm("/auth/signup", form)
	require.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, auth.LoginPath, res.Header().Get("Location"))

	res = f.postForm("/auth/signup", form)
	require.Equal(t, http.StatusConflict, res.Code)
}

func TestTokenEndpointAndLogoutRevocation(t *testing.T) {
	f := newAuthFixture(t, nil)
	f.repo.addUser(t, staffID, "api@test.local", "correctpass", true)

	req := httptest.NewRequest(http.MethodPost, "/auth/token", strings.NewReader(`{"email":"api@test.local","password":"correctpass"}`))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	f.router.ServeHTTP(res, req)
	require.Equal(t, http.StatusOK, res.Code)

	var token auth.Token
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &token))
	_, err := f.tokens.Verify(context.Background(), token.Value)
	require.NoError(t, err)

	logout := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	logout.Header.Set("Authorization", "Bearer "+token.Value)
	res = httptest.NewRecorder()
	f.router.ServeHTTP(res, logout)
	require.Equal(t, http.StatusSeeOther, res.Code)

	_, err = f.tokens.Verify(context.Background(), token.Value)
	require.ErrorIs(t, err, auth.ErrUnauthenticated)
}

func TestTokenEndpointRejectsBadCredentials(t *testing.T) {
	f := newAuthFixture(t, nil)
	f.repo.addUser(t, staffID, "api@test.local", "correctpass", true)

	req := httptest.NewRequest(http.MethodPost, "/auth/token", strings.NewReader(`{"email":"api@test.local","password":"wrongpass"}`))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	f.router.ServeHTTP(res, req)
	require.Equal(t, http.StatusUnauthorized, res.Code)
}
