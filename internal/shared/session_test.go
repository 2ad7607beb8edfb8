package shared_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leavedesk/leavedesk/internal/shared"
	_ "github.com/leavedesk/leavedesk/testing"
)

func newManager(t *testing.T) (*shared.SessionManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return shared.NewSessionManager(client, shared.SessionConfig{TTL: time.Hour}), mr
}

func commit(t *testing.T, sm *shared.SessionManager, sess *shared.Session) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(context.Background(), rec, httptest.NewRequest(http.MethodGet, "/", nil), sess))
	cookies := rec.Result().Cookies()
	if len(cookies) == 0 {
		return nil
	}
	return cookies[0]
}

func load(t *testing.T, sm *shared.SessionManager, c *http.Cookie) *shared.Session {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if c != nil {
		req.AddCookie(c)
	}
	sess, err := sm.Load(context.Background(), req)
	require.NoError(t, err)
	return sess
}

func TestSessionRoundTrip(t *testing.T) {
	sm, mr := newManager(t)
	sess := load(t, sm, nil)
	sess.SetUser("user-1")
	sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "hi"})
	cookie := commit(t, sm, sess)
	require.NotNil(t, cookie)
	assert.Equal(t, sess.ID, cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.Greater(t, mr.TTL("leavedesk:session:"+sess.ID), 59*time.Minute)

	again := load(t, sm, cookie)
	assert.Equal(t, sess.ID, again.ID)
	assert.Equal(t, "user-1", again.User())
	assert.False(t, again.SignedIn.IsZero())
	assert.Equal(t, "hi", again.PopFlash().Message)
	assert.Nil(t, again.PopFlash())

	// An unchanged session sets no cookie.
	untouched := load(t, sm, cookie)
	assert.Nil(t, commit(t, sm, untouched))
}

func TestSessionUnknownCookieStartsFresh(t *testing.T) {
	sm, _ := newManager(t)
	for _, value := range []string{"not-a-uuid", "2b1d7c1e-9a55-4a4b-9d1e-5f0f4a0d9e11"} {
		sess := load(t, sm, &http.Cookie{Name: "leavedesk_session", Value: value})
		assert.NotEqual(t, value, sess.ID)
		assert.Empty(t, sess.User())
	}
}

func TestSessionRotateDropsOldRecord(t *testing.T) {
	sm, mr := newManager(t)
	sess := load(t, sm, nil)
	cookie := commit(t, sm, sess)
	oldID := sess.ID

	sess = load(t, sm, cookie)
	sm.Rotate(sess)
	sess.SetUser("user-1")
	rotated := commit(t, sm, sess)

	require.NotNil(t, rotated)
	assert.NotEqual(t, oldID, rotated.Value)
	assert.False(t, mr.Exists("leavedesk:session:"+oldID))
	assert.True(t, mr.Exists("leavedesk:session:"+rotated.Value))
}

func TestSessionDestroyExpiresCookie(t *testing.T) {
	sm, mr := newManager(t)
	sess := load(t, sm, nil)
	sess.SetUser("user-1")
	cookie := commit(t, sm, sess)

	sess = load(t, sm, cookie)
	sm.Destroy(sess)
	assert.True(t, sess.Destroyed())
	assert.Empty(t, sess.User())
	cleared := commit(t, sm, sess)
	require.NotNil(t, cleared)
	assert.Negative(t, cleared.MaxAge)
	assert.False(t, mr.Exists("leavedesk:session:"+sess.ID))
}

func TestCSRFTokenBoundToSession(t *testing.T) {
	sm, _ := newManager(t)
	csrf := shared.NewCSRFManager("csrf-secret")
	ctx := context.Background()

	sess := load(t, sm, nil)
	token, err := csrf.EnsureToken(ctx, sess)
	require.NoError(t, err)
	again, err := csrf.EnsureToken(ctx, sess)
	require.NoError(t, err)
	assert.Equal(t, token, again)

	require.NoError(t, csrf.VerifyToken(ctx, sess, token))
	assert.ErrorIs(t, csrf.VerifyToken(ctx, sess, ""), shared.ErrCSRFTokenMissing)
	assert.ErrorIs(t, csrf.VerifyToken(ctx, sess, token+"x"), shared.ErrCSRFTokenMismatch)

	sm.Rotate(sess)
	assert.ErrorIs(t, csrf.VerifyToken(ctx, sess, token), shared.ErrCSRFTokenMissing)
	fresh, err := csrf.EnsureToken(ctx, sess)
	require.NoError(t, err)
	assert.NotEqual(t, token, fresh)

	other := shared.NewCSRFManager("other-secret")
	assert.ErrorIs(t, other.VerifyToken(ctx, sess, fresh), shared.ErrCSRFTokenMismatch)
}
