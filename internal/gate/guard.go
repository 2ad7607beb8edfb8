package gate

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/leavedesk/leavedesk/internal/auth"
	"github.com/leavedesk/leavedesk/internal/profiles"
)

// IdentityResolver resolves the principal behind a request.
type IdentityResolver interface {
	Resolve(ctx context.Context, r *http.Request) (auth.Principal, error)
}

// RoleResolver resolves the role of a principal.
type RoleResolver interface {
	ResolveRole(ctx context.Context, principal auth.Principal) (profiles.Role, error)
}

// Actor is the authorised caller handed to workflow operations.
type Actor struct {
	Principal auth.Principal
	Role      profiles.Role
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool { return a.Role == profiles.RoleAdmin }

type actorContextKey struct{}

// ContextWithActor stores actor in ctx.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext returns the actor placed by Guard.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}

// Guard runs identity and role resolution in front of partitioned routes.
type Guard struct {
	identity IdentityResolver
	roles    RoleResolver
	logger   *slog.Logger
	observe  func(res Resource, d Decision)
}

// NewGuard constructs a Guard.
func NewGuard(identity IdentityResolver, roles RoleResolver, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{identity: identity, roles: roles, logger: logger}
}

// OnDecision registers a hook invoked for every decision, typically metrics.
func (g *Guard) OnDecision(fn func(res Resource, d Decision)) {
	g.observe = fn
}

// Resolve returns the caller's actor. Unauthenticated callers and callers
// without a usable profile yield an actor with an empty role and no error.
func (g *Guard) Resolve(ctx context.Context, r *http.Request) (Actor, error) {
	principal, err := g.identity.Resolve(ctx, r)
	if err != nil {
		if errors.Is(err, auth.ErrUnauthenticated) {
			return Actor{}, nil
		}
		return Actor{}, err
	}
	role, err := g.roles.ResolveRole(ctx, principal)
	if err != nil {
		if errors.Is(err, profiles.ErrProfileMissing) {
			return Actor{}, nil
		}
		return Actor{}, err
	}
	return Actor{Principal: principal, Role: role}, nil
}

// Require admits only callers the policy allows into res. Everyone else is
// redirected with 303 and no body.
func (g *Guard) Require(res Resource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, err := g.Resolve(r.Context(), r)
			if err != nil {
				g.logger.Error("gate resolve", slog.String("path", r.URL.Path), slog.Any("error", err))
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			decision := Authorize(actor.Role, res)
			if g.observe != nil {
				g.observe(res, decision)
			}
			if decision.Redirect() {
				redirect(w, decision.Target)
				return
			}
			next.ServeHTTP(w, r.WithContext(ContextWithActor(r.Context(), actor)))
		})
	}
}

// RequireAuthenticated admits any caller with a resolved role.
func (g *Guard) RequireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, err := g.Resolve(r.Context(), r)
		if err != nil {
			g.logger.Error("gate resolve", slog.String("path", r.URL.Path), slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		if !actor.Role.Valid() {
			redirect(w, LoginPage)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithActor(r.Context(), actor)))
	})
}

// Landing redirects the caller to its own partition.
func (g *Guard) Landing(w http.ResponseWriter, r *http.Request) {
	actor, err := g.Resolve(r.Context(), r)
	if err != nil {
		g.logger.Error("gate landing", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	redirect(w, Home(actor.Role))
}

// LandingFor resolves the post-login target of an already authenticated
// principal. A principal without a usable profile gets ErrProfileMissing.
func (g *Guard) LandingFor(ctx context.Context, principal auth.Principal) (string, error) {
	role, err := g.roles.ResolveRole(ctx, principal)
	if err != nil {
		return "", err
	}
	return Home(role), nil
}

func redirect(w http.ResponseWriter, target string) {
	w.Header().Set("Location", target)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusSeeOther)
}
