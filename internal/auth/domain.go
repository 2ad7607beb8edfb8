package auth

import (
	"errors"
	"time"
)

// User represents an account able to authenticate.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Principal is the authenticated identity attached to a request. It lives
// for the lifetime of the session or token that produced it.
type Principal struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Token is a bearer credential handed to API clients.
type Token struct {
	Value     string    `json:"token"`
	Type      string    `json:"tokenType"`
	ExpiresAt time.Time `json:"expiresAt"`
}

var (
	// ErrUnauthenticated means no valid, unexpired credential was presented.
	ErrUnauthenticated = errors.New("auth: unauthenticated")
	// ErrEmailTaken rejects a signup for an existing account.
	ErrEmailTaken = errors.New("auth: email already registered")
)
