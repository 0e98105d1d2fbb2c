package identity

import (
	"context"
	"time"
)

// User is the toutlux security principal.
type User struct {
	ID          string
	Email       string
	DisplayName *string
	CreatedAt   time.Time
}

// UserAuth pairs a user with their password hash for login checks.
// PasswordHash is nil for social-only accounts.
type UserAuth struct {
	User         User
	PasswordHash *string
}

// CreateUserInput describes a password registration.
type CreateUserInput struct {
	Email       string
	Password    string
	DisplayName *string
	Now         time.Time
}

// Store is the user-directory persistence boundary consumed by the auth
// endpoints. The session core itself never touches it.
type Store interface {
	// CreateUser registers a password account. Returns ErrEmailTaken when
	// the normalized email collides with an existing account.
	CreateUser(ctx context.Context, in CreateUserInput) (User, error)

	// GetUserByID loads a user by ID. Returns ErrNotFound on miss.
	GetUserByID(ctx context.Context, id string) (User, error)

	// GetAuthByEmail loads a user plus password hash by normalized email.
	// Returns ErrNotFound on miss.
	GetAuthByEmail(ctx context.Context, email string) (UserAuth, error)

	// FindOrCreateBySubject resolves a social identity (provider, subject)
	// to a user, linking by verified email or creating a passwordless
	// account on first sight.
	FindOrCreateBySubject(ctx context.Context, provider, subject, email string, displayName *string, now time.Time) (User, error)
}
