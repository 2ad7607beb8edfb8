package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/leavedesk/leavedesk/internal/shared"
)

// UserLookup is the slice of Repository the resolver needs.
type UserLookup interface {
	FindByID(ctx context.Context, id string) (*User, error)
}

// Resolver turns request credentials into a Principal. A bearer token takes
// precedence over the session cookie; an invalid bearer token never falls
// back to the cookie.
type Resolver struct {
	users  UserLookup
	tokens *TokenIssuer
	logger *slog.Logger
}

// NewResolver constructs a Resolver.
func NewResolver(users UserLookup, tokens *TokenIssuer, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{users: users, tokens: tokens, logger: logger}
}

// Resolve returns the principal behind r or ErrUnauthenticated. Other errors
// signal infrastructure failures.
func (res *Resolver) Resolve(ctx context.Context, r *http.Request) (Principal, error) {
	var subject string
	if raw, ok := BearerToken(r); ok {
		if res.tokens == nil {
			return Principal{}, ErrUnauthenticated
		}
		principal, err := res.tokens.Verify(ctx, raw)
		if err != nil {
			return Principal{}, err
		}
		subject = principal.ID
	} else {
		sess := shared.SessionFromContext(ctx)
		if sess == nil || sess.Destroyed() || sess.User() == "" {
			return Principal{}, ErrUnauthenticated
		}
		subject = sess.User()
	}

	if _, err := uuid.Parse(subject); err != nil {
		return Principal{}, ErrUnauthenticated
	}
	user, err := res.users.FindByID(ctx, subject)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Principal{}, ErrUnauthenticated
		}
		res.logger.Error("resolve principal", slog.String("subject", subject), slog.Any("error", err))
		return Principal{}, err
	}
	if !user.IsActive {
		return Principal{}, ErrUnauthenticated
	}
	return Principal{ID: user.ID, Email: user.Email}, nil
}
