package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	tokenIssuer     = "leavedesk"
	revokedKeyspace = "leavedesk:revoked:"
)

// tokenClaims deliberately has no role field: roles come from profiles.
type tokenClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// TokenIssuer mints and verifies HS256 bearer tokens. Revoked token ids are
// kept in Redis until the token would have expired anyway.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	client *redis.Client
	now    func() time.Time
}

// NewTokenIssuer constructs a TokenIssuer.
func NewTokenIssuer(secret string, ttl time.Duration, client *redis.Client) *TokenIssuer {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, client: client, now: time.Now}
}

// Issue signs a token for principal.
func (t *TokenIssuer) Issue(principal Principal) (Token, error) {
	now := t.now()
	expires := now.Add(t.ttl)
	claims := tokenClaims{
		Email: principal.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   principal.ID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return Token{}, fmt.Errorf("auth: sign token: %w", err)
	}
	return Token{Value: signed, Type: "Bearer", ExpiresAt: expires.UTC()}, nil
}

// Verify checks signature, expiry and revocation and returns the subject.
func (t *TokenIssuer) Verify(ctx context.Context, raw string) (Principal, error) {
	claims, err := t.parse(raw)
	if err != nil {
		return Principal{}, ErrUnauthenticated
	}
	revoked, err := t.client.Exists(ctx, revokedKeyspace+claims.ID).Result()
	if err != nil {
		return Principal{}, fmt.Errorf("auth: revocation lookup: %w", err)
	}
	if revoked > 0 {
		return Principal{}, ErrUnauthenticated
	}
	return Principal{ID: claims.Subject, Email: claims.Email}, nil
}

// Revoke invalidates raw for the rest of its lifetime. Tokens that no longer
// verify are already unusable and are ignored.
func (t *TokenIssuer) Revoke(ctx context.Context, raw string) error {
	claims, err := t.parse(raw)
	if err != nil {
		return nil
	}
	remaining := claims.ExpiresAt.Time.Sub(t.now())
	if remaining <= 0 {
		return nil
	}
	return t.client.Set(ctx, revokedKeyspace+claims.ID, "1", remaining).Err()
}

func (t *TokenIssuer) parse(raw string) (*tokenClaims, error) {
	claims := &tokenClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, errors.New("auth: token missing subject or id")
	}
	return claims, nil
}

// BearerToken extracts the credential from an Authorization header.
func BearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", false
	}
	scheme, value, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}
