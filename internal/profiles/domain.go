// Package profiles owns the durable profile record, the only source of a
// principal's role.
package profiles

import (
	"errors"
	"strings"
	"time"
)

// Role is the coarse permission class of a principal.
type Role string

const (
	RoleStaff Role = "staff"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleStaff || r == RoleAdmin
}

// ParseRole normalises a stored or user supplied role name.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	if !role.Valid() {
		return "", ErrInvalidRole
	}
	return role, nil
}

// Profile is the 1:1 companion of a user account.
type Profile struct {
	ID        string
	Email     string
	Name      string
	Role      Role
	CreatedAt time.Time
}

var (
	// ErrProfileMissing means no usable profile row exists for the principal.
	ErrProfileMissing = errors.New("profiles: profile missing")
	// ErrInvalidRole rejects role names outside the known set.
	ErrInvalidRole = errors.New("profiles: invalid role")
)
