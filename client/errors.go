package client

import (
	"errors"
	"fmt"
)

var (
	// ErrLoggedOut is returned for authenticated calls when no session is
	// held, or after a refresh attempt found the session revoked.
	ErrLoggedOut = errors.New("logged out")

	// ErrInvalidCredentials is returned by Login for a wrong email or
	// password.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrSessionNotActive is returned when the server rejected the
	// refresh token: rotated away, revoked, or expired.
	ErrSessionNotActive = errors.New("session not active")
)

// APIError is a non-2xx response from the service.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("toutlux: %s (%d %s)", e.Message, e.Status, e.Code)
}
