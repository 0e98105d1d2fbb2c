package session

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
)

// pgQuerier is the subset of pgx query methods shared by pools and
// transactions. It lets the same store code serve both.
type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using PostgreSQL (toutlux.sessions).
type PostgresStore struct {
	pool *pgxpool.Pool
	q    pgQuerier
	inTx bool
}

// NewPostgresStore creates a Postgres-backed session store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, q: pool}
}

// InTx runs fn inside a single transaction. The Store handed to fn issues
// all queries through the transaction, so GetByRefreshHashForUpdate holds
// its row lock until commit or rollback.
func (s *PostgresStore) InTx(ctx context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&PostgresStore{pool: s.pool, q: tx, inTx: true}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Create inserts a new session record and returns its ULID.
func (s *PostgresStore) Create(ctx context.Context, now time.Time, userID string, cc ClientContext, refreshHash string, expiresAt time.Time) (string, error) {
	id := ulid.Make().String()

	var ip net.IP
	if cc.IP != nil {
		ip = cc.IP
	}

	_, err := s.q.Exec(ctx, `
		INSERT INTO toutlux.sessions (
			id, user_id, refresh_token_hash,
			issued_at, expires_at, user_agent, ip
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, id, userID, refreshHash, now, expiresAt, nullIfEmpty(cc.UserAgent), ip)
	if err != nil {
		return "", err
	}

	return id, nil
}

// GetByRefreshHashForUpdate loads a session record by refresh hash and
// locks the row for the duration of the surrounding transaction.
func (s *PostgresStore) GetByRefreshHashForUpdate(ctx context.Context, refreshHash string) (Record, error) {
	var row Record

	err := s.q.QueryRow(ctx, `
		SELECT id, user_id, refresh_token_hash, issued_at, expires_at, user_agent, ip
		FROM toutlux.sessions
		WHERE refresh_token_hash = $1
		FOR UPDATE
	`, refreshHash).Scan(
		&row.ID,
		&row.UserID,
		&row.RefreshTokenHash,
		&row.IssuedAt,
		&row.ExpiresAt,
		&row.UserAgent,
		&row.IP,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrSessionNotFound
	}
	if err != nil {
		return Record{}, err
	}

	return row, nil
}

// DeleteByRefreshHash removes the matching record (idempotent).
func (s *PostgresStore) DeleteByRefreshHash(ctx context.Context, refreshHash string) (bool, error) {
	tag, err := s.q.Exec(ctx, `
		DELETE FROM toutlux.sessions
		WHERE refresh_token_hash = $1
	`, refreshHash)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// DeleteAllForUser removes every session owned by the user.
func (s *PostgresStore) DeleteAllForUser(ctx context.Context, userID string) (int64, error) {
	tag, err := s.q.Exec(ctx, `
		DELETE FROM toutlux.sessions
		WHERE user_id = $1
	`, userID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// DeleteExpired removes all records past their expiry (range scan on the
// expires_at index).
func (s *PostgresStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.q.Exec(ctx, `
		DELETE FROM toutlux.sessions
		WHERE expires_at <= $1
	`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
