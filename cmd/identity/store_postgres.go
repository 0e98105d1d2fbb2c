package identity

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgUniqueViolation = "23505"

// PostgresStore implements Store using PostgreSQL
// (toutlux.users, toutlux.user_identities).
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed user directory.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, errors.New("identity: nil db pool")
	}
	return &PostgresStore{pool: pool}, nil
}

// CreateUser registers a password account.
func (s *PostgresStore) CreateUser(ctx context.Context, in CreateUserInput) (User, error) {
	email := NormalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return User{}, ErrInvalidInput
	}

	hash, err := HashPassword(in.Password)
	if err != nil {
		return User{}, err
	}

	u := User{
		ID:          NewID(),
		Email:       email,
		DisplayName: in.DisplayName,
		CreatedAt:   in.Now,
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO toutlux.users (id, email, display_name, password_hash, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, u.ID, u.Email, u.DisplayName, hash, u.CreatedAt)
	if isUniqueViolation(err) {
		return User{}, ErrEmailTaken
	}
	if err != nil {
		return User{}, err
	}

	return u, nil
}

// GetUserByID loads a user by ID.
func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (User, error) {
	var u User
	err := s.pool.QueryRow(ctx, `
		SELECT id, email, display_name, created_at
		FROM toutlux.users
		WHERE id = $1
	`, id).Scan(&u.ID, &u.Email, &u.DisplayName, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	return u, nil
}

// GetAuthByEmail loads a user plus password hash by normalized email.
func (s *PostgresStore) GetAuthByEmail(ctx context.Context, email string) (UserAuth, error) {
	var ua UserAuth
	err := s.pool.QueryRow(ctx, `
		SELECT id, email, display_name, created_at, password_hash
		FROM toutlux.users
		WHERE email = $1
	`, NormalizeEmail(email)).Scan(
		&ua.User.ID,
		&ua.User.Email,
		&ua.User.DisplayName,
		&ua.User.CreatedAt,
		&ua.PasswordHash,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return UserAuth{}, ErrNotFound
	}
	if err != nil {
		return UserAuth{}, err
	}
	return ua, nil
}

// FindOrCreateBySubject resolves a social identity to a user.
//
// Resolution order inside one transaction:
//  1. an existing (provider, subject) link wins;
//  2. otherwise an account with the same verified email is linked;
//  3. otherwise a passwordless account is created and linked.
func (s *PostgresStore) FindOrCreateBySubject(ctx context.Context, provider, subject, email string, displayName *string, now time.Time) (User, error) {
	email = NormalizeEmail(email)
	if provider == "" || subject == "" || email == "" {
		return User{}, ErrInvalidInput
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return User{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var userID string
	err = tx.QueryRow(ctx, `
		SELECT user_id FROM toutlux.user_identities
		WHERE provider = $1 AND subject = $2
	`, provider, subject).Scan(&userID)
	switch {
	case err == nil:
		// Linked before: load and return.
	case errors.Is(err, pgx.ErrNoRows):
		userID, err = s.linkOrCreateTx(ctx, tx, provider, subject, email, displayName, now)
		if err != nil {
			return User{}, err
		}
	default:
		return User{}, err
	}

	var u User
	err = tx.QueryRow(ctx, `
		SELECT id, email, display_name, created_at
		FROM toutlux.users
		WHERE id = $1
	`, userID).Scan(&u.ID, &u.Email, &u.DisplayName, &u.CreatedAt)
	if err != nil {
		return User{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return User{}, err
	}
	return u, nil
}

func (s *PostgresStore) linkOrCreateTx(ctx context.Context, tx pgx.Tx, provider, subject, email string, displayName *string, now time.Time) (string, error) {
	var userID string
	err := tx.QueryRow(ctx, `
		SELECT id FROM toutlux.users WHERE email = $1
	`, email).Scan(&userID)
	if errors.Is(err, pgx.ErrNoRows) {
		userID = NewID()
		_, err = tx.Exec(ctx, `
			INSERT INTO toutlux.users (id, email, display_name, password_hash, created_at)
			VALUES ($1, $2, $3, NULL, $4)
		`, userID, email, displayName, now)
	}
	if err != nil {
		return "", err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO toutlux.user_identities (provider, subject, user_id, created_at)
		VALUES ($1, $2, $3, $4)
	`, provider, subject, userID, now)
	if err != nil {
		return "", err
	}
	return userID, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
