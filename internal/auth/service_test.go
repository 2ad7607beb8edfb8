package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leavedesk/leavedesk/internal/auth"
	"github.com/leavedesk/leavedesk/internal/shared"
)

func TestSignupCreatesStaffAccount(t *testing.T) {
	_, client := newRedis(t)
	repo := newStubRepo()
	svc := auth.NewService(repo, auth.NewTokenIssuer("secret", time.Hour, client))

	user, err := svc.Signup(context.Background(), auth.SignupInput{Email: " Jane.Doe@Example.com ", Password: "password1"})
	require.NoError(t, err)
	assert.Equal(t, "jane.doe@example.com", user.Email)
	assert.True(t, user.IsActive)
	assert.Equal(t, "jane.doe", repo.names[user.ID])

	_, err = svc.Signup(context.Background(), auth.SignupInput{Email: "jane.doe@example.com", Password: "password2"})
	require.ErrorIs(t, err, auth.ErrEmailTaken)

	got, err := svc.Authenticate(context.Background(), "jane.doe@example.com", "password1")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
}

func TestAuthenticateRejects(t *testing.T) {
	_, client := newRedis(t)
	repo := newStubRepo()
	repo.addUser(t, staffID, "s@x.io", "password1", false)
	svc := auth.NewService(repo, auth.NewTokenIssuer("secret", time.Hour, client))

	_, err := svc.Authenticate(context.Background(), "s@x.io", "password1")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
	_, err = svc.Authenticate(context.Background(), "missing@x.io", "password1")
	require.ErrorIs(t, err, shared.ErrInvalidCredentials)
}

func TestDisplayName(t *testing.T) {
	assert.Equal(t, "Jane", auth.DisplayName("  Jane ", "j@x.io"))
	assert.Equal(t, "j", auth.DisplayName("", "j@x.io"))
	assert.Equal(t, "@x.io", auth.DisplayName("", "@x.io"))
}
