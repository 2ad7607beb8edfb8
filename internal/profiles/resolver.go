package profiles

import (
	"context"
	"errors"
	"log/slog"

	"github.com/leavedesk/leavedesk/internal/auth"
)

// Resolver maps an authenticated principal to its role. It reads the
// profile table on every call and never looks at credential claims.
type Resolver struct {
	repo   Repository
	logger *slog.Logger
}

// NewResolver constructs a Resolver.
func NewResolver(repo Repository, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{repo: repo, logger: logger}
}

// ResolveRole returns the role stored for principal.
func (r *Resolver) ResolveRole(ctx context.Context, principal auth.Principal) (Role, error) {
	profile, err := r.Profile(ctx, principal)
	if err != nil {
		return "", err
	}
	return profile.Role, nil
}

// Profile returns the full profile for principal.
func (r *Resolver) Profile(ctx context.Context, principal auth.Principal) (Profile, error) {
	if principal.ID == "" {
		return Profile{}, ErrProfileMissing
	}
	profile, err := r.repo.FindByID(ctx, principal.ID)
	if err != nil {
		if !errors.Is(err, ErrProfileMissing) {
			r.logger.Error("resolve role", slog.String("principal", principal.ID), slog.Any("error", err))
		}
		return Profile{}, err
	}
	if !profile.Role.Valid() {
		return Profile{}, ErrProfileMissing
	}
	return profile, nil
}
