package gate_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leavedesk/leavedesk/internal/auth"
	"github.com/leavedesk/leavedesk/internal/gate"
	"github.com/leavedesk/leavedesk/internal/profiles"
)

type stubIdentity struct {
	principal auth.Principal
	err       error
}

func (s stubIdentity) Resolve(context.Context, *http.Request) (auth.Principal, error) {
	return s.principal, s.err
}

type stubRoles struct {
	roles map[string]profiles.Role
	err   error
}

func (s stubRoles) ResolveRole(_ context.Context, p auth.Principal) (profiles.Role, error) {
	if s.err != nil {
		return "", s.err
	}
	role, ok := s.roles[p.ID]
	if !ok {
		return "", profiles.ErrProfileMissing
	}
	return role, nil
}

func guardedRouter(g *gate.Guard) http.Handler {
	r := chi.NewRouter()
	r.Get("/dashboard", g.Landing)
	r.With(g.Require(gate.AdminArea)).Get("/dashboard/admin", func(w http.ResponseWriter, r *http.Request) {
		actor, ok := gate.ActorFromContext(r.Context())
		if !ok || !actor.IsAdmin() {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		_, _ = w.Write([]byte("admin content"))
	})
	r.With(g.Require(gate.StaffArea)).Get("/dashboard/staff", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("staff content"))
	})
	return r
}

func TestGuardRedirects(t *testing.T) {
	roles := stubRoles{roles: map[string]profiles.Role{"a": profiles.RoleAdmin, "s": profiles.RoleStaff}}
	cases := []struct {
		name     string
		identity stubIdentity
		path     string
		status   int
		location string
	}{
		{"admin in admin area", stubIdentity{principal: auth.Principal{ID: "a"}}, "/dashboard/admin", http.StatusOK, ""},
		{"admin in staff area", stubIdentity{principal: auth.Principal{ID: "a"}}, "/dashboard/staff", http.StatusSeeOther, gate.AdminHome},
		{"staff in admin area", stubIdentity{principal: auth.Principal{ID: "s"}}, "/dashboard/admin", http.StatusSeeOther, gate.StaffHome},
		{"staff in staff area", stubIdentity{principal: auth.Principal{ID: "s"}}, "/dashboard/staff", http.StatusOK, ""},
		{"anonymous", stubIdentity{err: auth.ErrUnauthenticated}, "/dashboard/admin", http.StatusSeeOther, gate.LoginPage},
		{"profile missing", stubIdentity{principal: auth.Principal{ID: "ghost"}}, "/dashboard/staff", http.StatusSeeOther, gate.LoginPage},
		{"landing admin", stubIdentity{principal: auth.Principal{ID: "a"}}, "/dashboard", http.StatusSeeOther, gate.AdminHome},
		{"landing anonymous", stubIdentity{err: auth.ErrUnauthenticated}, "/dashboard", http.StatusSeeOther, gate.LoginPage},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := guardedRouter(gate.NewGuard(tc.identity, roles, nil))
			res := httptest.NewRecorder()
			router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, tc.path, nil))

			require.Equal(t, tc.status, res.Code)
			assert.Equal(t, tc.location, res.Header().Get("Location"))
			if tc.status == http.StatusSeeOther {
				assert.Empty(t, res.Body.String(), "redirects never carry partition content")
			}
		})
	}
}

func TestGuardInfrastructureFailure(t *testing.T) {
	g := gate.NewGuard(stubIdentity{principal: auth.Principal{ID: "a"}}, stubRoles{err: errors.New("db down")}, nil)
	res := httptest.NewRecorder()
	guardedRouter(g).ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/dashboard/admin", nil))
	assert.Equal(t, http.StatusInternalServerError, res.Code)
	assert.NotContains(t, res.Body.String(), "admin content")
}

func TestGuardObservesDecisions(t *testing.T) {
	roles := stubRoles{roles: map[string]profiles.Role{"s": profiles.RoleStaff}}
	g := gate.NewGuard(stubIdentity{principal: auth.Principal{ID: "s"}}, roles, nil)
	var seen []gate.Decision
	g.OnDecision(func(_ gate.Resource, d gate.Decision) { seen = append(seen, d) })

	guardedRouter(g).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/dashboard/admin", nil))
	require.Len(t, seen, 1)
	assert.Equal(t, gate.StaffHome, seen[0].Target)
}

func TestLandingFor(t *testing.T) {
	roles := stubRoles{roles: map[string]profiles.Role{"s": profiles.RoleStaff}}
	g := gate.NewGuard(stubIdentity{}, roles, nil)

	target, err := g.LandingFor(context.Background(), auth.Principal{ID: "s"})
	require.NoError(t, err)
	assert.Equal(t, gate.StaffHome, target)

	_, err = g.LandingFor(context.Background(), auth.Principal{ID: "nobody"})
	require.ErrorIs(t, err, profiles.ErrProfileMissing)
}
