package auth_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leavedesk/leavedesk/internal/auth"
)

const staffID = "3f0d8c1e-7a52-4c36-9b9b-1d2f4b1e0a01"

func TestTokenIssueVerify(t *testing.T) {
	_, client := newRedis(t)
	issuer := auth.NewTokenIssuer("secret", time.Hour, client)

	token, err := issuer.Issue(auth.Principal{ID: staffID, Email: "s@x.io"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer", token.Type)
	assert.WithinDuration(t, time.Now().Add(time.Hour), token.ExpiresAt, 5*time.Second)

	principal, err := issuer.Verify(context.Background(), token.Value)
	require.NoError(t, err)
	assert.Equal(t, staffID, principal.ID)
	assert.Equal(t, "s@x.io", principal.Email)
}

func TestTokenRejectsForeignSecret(t *testing.T) {
	_, client := newRedis(t)
	token, err := auth.NewTokenIssuer("other", time.Hour, client).Issue(auth.Principal{ID: staffID})
	require.NoError(t, err)

	_, err = auth.NewTokenIssuer("secret", time.Hour, client).Verify(context.Background(), token.Value)
	require.ErrorIs(t, err, auth.ErrUnauthenticated)
}

func TestTokenRejectsUnsignedAlgorithm(t *testing.T) {
	_, client := newRedis(t)
	claims := jwt.MapClaims{
		"iss": "leavedesk",
		"sub": staffID,
		"jti": "abc",
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = auth.NewTokenIssuer("secret", time.Hour, client).Verify(context.Background(), raw)
	require.ErrorIs(t, err, auth.ErrUnauthenticated)
}

func TestTokenExpiry(t *testing.T) {
	_, client := newRedis(t)
	issuer := auth.NewTokenIssuer("secret", time.Millisecond, client)
	token, err := issuer.Issue(auth.Principal{ID: staffID})
	require.NoError(t, err)

	time.Sleep(1100 * time.Millisecond)
	_, err = issuer.Verify(context.Background(), token.Value)
	require.ErrorIs(t, err, auth.ErrUnauthenticated)
}

func TestTokenRevoke(t *testing.T) {
	mr, client := newRedis(t)
	issuer := auth.NewTokenIssuer("secret", time.Hour, client)
	token, err := issuer.Issue(auth.Principal{ID: staffID})
	require.NoError(t, err)

	require.NoError(t, issuer.Revoke(context.Background(), token.Value))
	_, err = issuer.Verify(context.Background(), token.Value)
	require.ErrorIs(t, err, auth.ErrUnauthenticated)

	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.Greater(t, mr.TTL(keys[0]), 59*time.Minute)

	require.NoError(t, issuer.Revoke(context.Background(), "garbage"))
}

func TestBearerToken(t *testing.T) {
	cases := map[string]struct {
		header string
		want   string
		ok     bool
	}{
		"missing":      {header: "", ok: false},
		"basic scheme": {header: "Basic abc", ok: false},
		"empty value":  {header: "Bearer   ", ok: false},
		"bearer":       {header: "Bearer abc.def", want: "abc.def", ok: true},
		"lower case":   {header: "bearer xyz", want: "xyz", ok: true},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			got, ok := auth.BearerToken(req)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}
