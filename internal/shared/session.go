package shared

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// FlashMessage is a one-shot notice shown on the next rendered page.
type FlashMessage struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// SessionConfig configures cookie sessions.
type SessionConfig struct {
	CookieName string
	TTL        time.Duration
	Secure     bool
	KeyPrefix  string
}

// SessionManager keeps browser sessions in Redis keyed by an opaque cookie.
// The record only names the signed-in user; the role is always looked up
// fresh from the profile.
type SessionManager struct {
	client *redis.Client
	cfg    SessionConfig
}

// sessionRecord is the JSON document stored under the session key.
type sessionRecord struct {
	UserID   string         `json:"user_id,omitempty"`
	SignedIn time.Time      `json:"signed_in,omitempty"`
	CSRF     string         `json:"csrf,omitempty"`
	Flashes  []FlashMessage `json:"flashes,omitempty"`
}

// Session is the per-request view of a session record.
type Session struct {
	ID string
	sessionRecord

	rotatedFrom string
	fresh       bool
	dirty       bool
	destroyed   bool
}

// NewSessionManager constructs a SessionManager.
func NewSessionManager(client *redis.Client, cfg SessionConfig) *SessionManager {
	if cfg.CookieName == "" {
		cfg.CookieName = "leavedesk_session"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "leavedesk:session:"
	}
	return &SessionManager{client: client, cfg: cfg}
}

// Load returns the session named by the request cookie, or a fresh one.
// An unknown or expired cookie never resurrects the old identifier.
func (sm *SessionManager) Load(ctx context.Context, r *http.Request) (*Session, error) {
	cookie, err := r.Cookie(sm.cfg.CookieName)
	if errors.Is(err, http.ErrNoCookie) {
		return sm.fresh(), nil
	}
	if err != nil {
		return nil, err
	}
	if _, err := uuid.Parse(cookie.Value); err != nil {
		return sm.fresh(), nil
	}

	raw, err := sm.client.Get(ctx, sm.key(cookie.Value)).Bytes()
	if errors.Is(err, redis.Nil) {
		return sm.fresh(), nil
	}
	if err != nil {
		return nil, err
	}
	sess := &Session{ID: cookie.Value}
	if err := json.Unmarshal(raw, &sess.sessionRecord); err != nil {
		return nil, err
	}
	return sess, nil
}

// Commit writes pending changes to Redis and sets or clears the cookie.
func (sm *SessionManager) Commit(ctx context.Context, w http.ResponseWriter, r *http.Request, sess *Session) error {
	if sess == nil {
		return nil
	}
	if sess.rotatedFrom != "" {
		if err := sm.client.Del(ctx, sm.key(sess.rotatedFrom)).Err(); err != nil {
			return err
		}
		sess.rotatedFrom = ""
	}

	if sess.destroyed {
		if err := sm.client.Del(ctx, sm.key(sess.ID)).Err(); err != nil {
			return err
		}
		http.SetCookie(w, sm.cookie("", -1))
		return nil
	}
	if !sess.dirty {
		return nil
	}

	data, err := json.Marshal(sess.sessionRecord)
	if err != nil {
		return err
	}
	if err := sm.client.Set(ctx, sm.key(sess.ID), data, sm.cfg.TTL).Err(); err != nil {
		return err
	}
	sess.dirty, sess.fresh = false, false
	http.SetCookie(w, sm.cookie(sess.ID, int(sm.cfg.TTL/time.Second)))
	return nil
}

// Destroy clears the session; Commit deletes the record and expires the cookie.
func (sm *SessionManager) Destroy(sess *Session) {
	if sess == nil {
		return
	}
	sess.sessionRecord = sessionRecord{}
	sess.destroyed = true
}

// Rotate assigns a new identifier so a pre-login cookie cannot be replayed
// after sign-in. The old record is dropped on Commit.
func (sm *SessionManager) Rotate(sess *Session) {
	if sess == nil {
		return
	}
	if !sess.fresh {
		sess.rotatedFrom = sess.ID
	}
	sess.ID = uuid.NewString()
	// The CSRF token is bound to the old identifier.
	sess.CSRF = ""
	sess.dirty = true
}

// TTL is the configured session lifetime.
func (sm *SessionManager) TTL() time.Duration {
	return sm.cfg.TTL
}

func (sm *SessionManager) fresh() *Session {
	return &Session{ID: uuid.NewString(), fresh: true, dirty: true}
}

func (sm *SessionManager) key(id string) string {
	return sm.cfg.KeyPrefix + id
}

func (sm *SessionManager) cookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     sm.cfg.CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   sm.cfg.Secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// SetUser marks the session as signed in by id.
func (s *Session) SetUser(id string) {
	s.UserID = id
	s.SignedIn = time.Now().UTC()
	s.dirty = true
}

// User returns the signed-in user id, or "".
func (s *Session) User() string {
	return s.UserID
}

// Destroyed reports whether Destroy was called during this request.
func (s *Session) Destroyed() bool {
	return s.destroyed
}

// AddFlash queues msg for the next page.
func (s *Session) AddFlash(msg FlashMessage) {
	s.Flashes = append(s.Flashes, msg)
	s.dirty = true
}

// PopFlash removes and returns the oldest queued flash.
func (s *Session) PopFlash() *FlashMessage {
	if len(s.Flashes) == 0 {
		return nil
	}
	msg := s.Flashes[0]
	s.Flashes = s.Flashes[1:]
	s.dirty = true
	return &msg
}

type sessionContextKey struct{}

// ContextWithSession stores the session in context.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, sess)
}

// SessionFromContext extracts the session from context.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionContextKey{}).(*Session)
	return sess
}
