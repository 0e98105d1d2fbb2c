package session

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidToken is returned when an access token fails verification.
	// Bad signature, malformed token, and wrong issuer are deliberately
	// indistinguishable to callers.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired is returned for an access token that verified but is
	// past its expiry. It wraps ErrInvalidToken so callers that do not care
	// about the distinction can match ErrInvalidToken alone. The client
	// interceptor uses it to decide that a refresh is likely to help.
	ErrTokenExpired = fmt.Errorf("%w: expired", ErrInvalidToken)

	// ErrSessionNotFound is returned when a refresh token does not match any
	// stored session.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExpired is returned when the matching session is past its
	// expiry. The record is deleted as a side effect.
	ErrSessionExpired = errors.New("session expired")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid config")
)
