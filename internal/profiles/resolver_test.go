package profiles_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leavedesk/leavedesk/internal/auth"
	"github.com/leavedesk/leavedesk/internal/profiles"
	_ "github.com/leavedesk/leavedesk/testing"
)

type stubRepo struct {
	profiles map[string]profiles.Profile
	err      error
}

func (s *stubRepo) FindByID(_ context.Context, id string) (profiles.Profile, error) {
	if s.err != nil {
		return profiles.Profile{}, s.err
	}
	p, ok := s.profiles[id]
	if !ok {
		return profiles.Profile{}, profiles.ErrProfileMissing
	}
	return p, nil
}

func (s *stubRepo) FindByEmail(context.Context, string) (profiles.Profile, error) {
	return profiles.Profile{}, profiles.ErrProfileMissing
}

func (s *stubRepo) Create(_ context.Context, p profiles.Profile) error {
	s.profiles[p.ID] = p
	return nil
}

func (s *stubRepo) SetRole(_ context.Context, id string, role profiles.Role) error {
	p, ok := s.profiles[id]
	if !ok {
		return profiles.ErrProfileMissing
	}
	p.Role = role
	s.profiles[id] = p
	return nil
}

func TestResolveRoleReadsProfileOnly(t *testing.T) {
	repo := &stubRepo{profiles: map[string]profiles.Profile{
		"u1": {ID: "u1", Role: profiles.RoleAdmin},
		"u2": {ID: "u2", Role: profiles.Role("owner")},
	}}
	resolver := profiles.NewResolver(repo, nil)

	role, err := resolver.ResolveRole(context.Background(), auth.Principal{ID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, profiles.RoleAdmin, role)

	_, err = resolver.ResolveRole(context.Background(), auth.Principal{ID: "u2"})
	require.ErrorIs(t, err, profiles.ErrProfileMissing)

	_, err = resolver.ResolveRole(context.Background(), auth.Principal{ID: "u3"})
	require.ErrorIs(t, err, profiles.ErrProfileMissing)

	_, err = resolver.ResolveRole(context.Background(), auth.Principal{})
	require.ErrorIs(t, err, profiles.ErrProfileMissing)
}

func TestResolveRoleFollowsProfileChanges(t *testing.T) {
	repo := &stubRepo{profiles: map[string]profiles.Profile{"u1": {ID: "u1", Role: profiles.RoleStaff}}}
	resolver := profiles.NewResolver(repo, nil)

	require.NoError(t, repo.SetRole(context.Background(), "u1", profiles.RoleAdmin))
	role, err := resolver.ResolveRole(context.Background(), auth.Principal{ID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, profiles.RoleAdmin, role)
}

func TestResolveRoleSurfacesStoreErrors(t *testing.T) {
	boom := errors.New("connection refused")
	resolver := profiles.NewResolver(&stubRepo{err: boom}, nil)
	_, err := resolver.ResolveRole(context.Background(), auth.Principal{ID: "u1"})
	require.ErrorIs(t, err, boom)
}

func TestParseRole(t *testing.T) {
	role, err := profiles.ParseRole(" Admin ")
	require.NoError(t, err)
	assert.Equal(t, profiles.RoleAdmin, role)

	_, err = profiles.ParseRole("root")
	require.ErrorIs(t, err, profiles.ErrInvalidRole)
}
