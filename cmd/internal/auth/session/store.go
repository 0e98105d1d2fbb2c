package session

import (
	"context"
	"net"
	"time"
)

// ClientContext captures informational metadata about the client that owns
// a session. It is never used for authorization decisions.
type ClientContext struct {
	UserAgent string
	IP        net.IP
}

// Record mirrors the toutlux.sessions row used by the session subsystem.
type Record struct {
	ID               string
	UserID           string
	RefreshTokenHash string
	IssuedAt         time.Time
	ExpiresAt        time.Time
	UserAgent        *string
	IP               *net.IP
}

// Store abstracts persistence for session records.
//
// A record is valid iff it exists, is unexpired, and has not been replaced
// by rotation; replaced and revoked records are deleted, never flagged.
//
// InTx runs fn against a transactional view of the store. Within that view,
// GetByRefreshHashForUpdate must lock the matching row until the
// transaction ends so that concurrent rotations of the same token
// serialize.
type Store interface {
	// Create inserts a new session record and returns its ID.
	Create(ctx context.Context, now time.Time, userID string, cc ClientContext, refreshHash string, expiresAt time.Time) (sessionID string, err error)

	// GetByRefreshHashForUpdate loads a session record by refresh hash.
	// Inside InTx the row is locked for update; outside a transaction it is
	// a plain read.
	GetByRefreshHashForUpdate(ctx context.Context, refreshHash string) (Record, error)

	// DeleteByRefreshHash removes the matching record if present and
	// reports whether a record was removed. Idempotent.
	DeleteByRefreshHash(ctx context.Context, refreshHash string) (bool, error)

	// DeleteAllForUser removes every session owned by the user and returns
	// the number of records removed.
	DeleteAllForUser(ctx context.Context, userID string) (int64, error)

	// DeleteExpired removes all records with expires_at at or before now.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)

	// InTx executes fn atomically. The Store passed to fn is bound to the
	// transaction; fn returning an error rolls everything back.
	InTx(ctx context.Context, fn func(tx Store) error) error
}
