package shared

import "errors"

// Sentinel errors shared by the auth, leave and transport layers.
var (
	ErrNotFound            = errors.New("shared: not found")
	ErrInvalidCredentials  = errors.New("shared: invalid email or password")
	ErrCSRFTokenMissing    = errors.New("shared: csrf token missing")
	ErrCSRFTokenMismatch   = errors.New("shared: csrf token mismatch")
	ErrIdempotencyConflict = errors.New("shared: idempotency key already used")
)
