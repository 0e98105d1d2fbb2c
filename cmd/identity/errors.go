package identity

import "errors"

// Public, stable errors for callers.
var (
	// ErrNotFound is returned when a user lookup misses.
	ErrNotFound = errors.New("user not found")

	// ErrEmailTaken is returned when registration collides with an
	// existing account.
	ErrEmailTaken = errors.New("email already registered")

	// ErrInvalidInput is returned for malformed directory input.
	ErrInvalidInput = errors.New("invalid input")
)

// IsNotFound reports whether err represents ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsEmailTaken reports whether err represents ErrEmailTaken.
func IsEmailTaken(err error) bool { return errors.Is(err, ErrEmailTaken) }
