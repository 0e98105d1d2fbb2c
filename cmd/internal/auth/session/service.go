package session

import (
	"context"
	"strings"
	"time"
)

// Service implements the high-level session operations for toutlux.
//
// It issues sessions (access + refresh), rotates refresh credentials,
// supports per-session and per-user revocation, and sweeps expired
// records, all under the single-active-session-per-user policy.
type Service struct {
	cfg    Config
	tokens AccessTokenManager
	store  Store

	notifier RevocationNotifier
}

// Issued is the result of issuing or rotating a session.
// It includes a short-lived access token and an opaque refresh token.
type Issued struct {
	SessionID    string
	UserID       string
	AccessToken  string
	AccessExp    time.Time
	RefreshToken string
	RefreshExp   time.Time
}

// RevocationNotifier receives best-effort notice that a user's sessions
// were revoked out-of-band (logout everywhere, or a login from another
// device displacing the previous session). Implementations must not block.
type RevocationNotifier interface {
	SessionsRevoked(userID string)
}

type nopNotifier struct{}

func (nopNotifier) SessionsRevoked(string) {}

// ServiceOption configures optional Service dependencies.
type ServiceOption func(*Service)

// WithRevocationNotifier installs a notifier for out-of-band revocations.
func WithRevocationNotifier(n RevocationNotifier) ServiceOption {
	return func(s *Service) {
		if s == nil || n == nil {
			return
		}
		s.notifier = n
	}
}

// NewService constructs a Service with the provided configuration, store,
// and token manager.
func NewService(cfg Config, store Store, tokens AccessTokenManager, opts ...ServiceOption) *Service {
	s := &Service{cfg: cfg, store: store, tokens: tokens, notifier: nopNotifier{}}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(s)
	}
	return s
}

// IssueSession creates a fresh session for a user and returns new tokens.
//
// Side effect: every existing session for the user is deleted before the
// new record is inserted, in one transaction. This is the issuance entry
// point used by login, registration, social auth, and rotation.
func (s *Service) IssueSession(ctx context.Context, now time.Time, userID string, cc ClientContext) (Issued, error) {
	refreshPlain, refreshHash, err := newOpaqueRefreshToken(s.cfg.RefreshTokenBytes)
	if err != nil {
		return Issued{}, err
	}
	refreshExp := now.Add(s.cfg.RefreshTTL)

	var issued Issued
	var displaced int64
	err = s.store.InTx(ctx, func(tx Store) error {
		n, err := tx.DeleteAllForUser(ctx, userID)
		if err != nil {
			return err
		}
		displaced = n

		sessionID, err := tx.Create(ctx, now, userID, cc, refreshHash, refreshExp)
		if err != nil {
			return err
		}

		// Mint inside the transaction so a signing failure rolls the
		// record back instead of persisting a session the caller never
		// received tokens for.
		accessToken, accessExp, err := s.tokens.Mint(userID, sessionID, now)
		if err != nil {
			return err
		}

		issued = Issued{
			SessionID:    sessionID,
			UserID:       userID,
			AccessToken:  accessToken,
			AccessExp:    accessExp,
			RefreshToken: refreshPlain,
			RefreshExp:   refreshExp,
		}
		return nil
	})
	if err != nil {
		return Issued{}, err
	}

	if displaced > 0 {
		s.notifier.SessionsRevoked(userID)
	}

	return issued, nil
}

// RefreshSession rotates the session identified by refreshToken.
//
// Outcomes:
//   - token unknown -> ErrSessionNotFound
//   - session past expiry -> the record is deleted and ErrSessionExpired
//     is returned
//   - otherwise a replacement session is issued for the owning user and
//     the presented token (along with any other session of that user) is
//     deleted
//
// The read-old / delete-all / insert-new sequence runs inside a single
// transaction with a row lock on the presented token, so two concurrent
// refreshes with the same token serialize: the second observes
// ErrSessionNotFound once the first commits.
func (s *Service) RefreshSession(ctx context.Context, now time.Time, refreshToken string, cc ClientContext) (Issued, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	// Basic sanity bounds to avoid pathological inputs.
	if refreshToken == "" || len(refreshToken) > 4096 {
		return Issued{}, ErrSessionNotFound
	}

	// Hash in-memory; the plain token is never persisted or logged.
	refreshHash := hashRefreshTokenHex(refreshToken)

	var issued Issued
	var expired bool
	err := s.store.InTx(ctx, func(tx Store) error {
		row, err := tx.GetByRefreshHashForUpdate(ctx, refreshHash)
		if err != nil {
			return err
		}

		// Expired: remove the dead record and commit the cleanup. The
		// sentinel is reported outside the transaction so the delete is
		// not rolled back.
		if !row.ExpiresAt.After(now) {
			if _, err := tx.DeleteByRefreshHash(ctx, refreshHash); err != nil {
				return err
			}
			expired = true
			return nil
		}

		newPlain, newHash, err := newOpaqueRefreshToken(s.cfg.RefreshTokenBytes)
		if err != nil {
			return err
		}
		newExp := now.Add(s.cfg.RefreshTTL)

		// Rotation revokes the presented token among any others the user
		// still owns; exactly one session survives.
		if _, err := tx.DeleteAllForUser(ctx, row.UserID); err != nil {
			return err
		}

		newID, err := tx.Create(ctx, now, row.UserID, cc, newHash, newExp)
		if err != nil {
			return err
		}

		accessToken, accessExp, err := s.tokens.Mint(row.UserID, newID, now)
		if err != nil {
			return err
		}

		issued = Issued{
			SessionID:    newID,
			UserID:       row.UserID,
			AccessToken:  accessToken,
			AccessExp:    accessExp,
			RefreshToken: newPlain,
			RefreshExp:   newExp,
		}
		return nil
	})
	if err != nil {
		return Issued{}, err
	}
	if expired {
		return Issued{}, ErrSessionExpired
	}

	return issued, nil
}

// RevokeSession deletes the session matching refreshToken if present.
// Idempotent; reports whether a record was removed.
func (s *Service) RevokeSession(ctx context.Context, refreshToken string) (bool, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" || len(refreshToken) > 4096 {
		return false, nil
	}
	return s.store.DeleteByRefreshHash(ctx, hashRefreshTokenHex(refreshToken))
}

// RevokeAllSessions deletes every session owned by the user and returns
// the number removed. Used for logout-everywhere.
func (s *Service) RevokeAllSessions(ctx context.Context, userID string) (int64, error) {
	n, err := s.store.DeleteAllForUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.notifier.SessionsRevoked(userID)
	}
	return n, nil
}

// SweepExpired deletes all records past their expiry. It is intended to
// run periodically off the request path; racing with rotation is harmless
// because deleting an already-rotated-away record is a no-op.
func (s *Service) SweepExpired(ctx context.Context, now time.Time) (int64, error) {
	return s.store.DeleteExpired(ctx, now)
}

// VerifyAccessToken verifies a signed access token. Stateless: signature
// and clock only, never a store lookup.
func (s *Service) VerifyAccessToken(token string, now time.Time) (AccessClaims, error) {
	return s.tokens.Verify(token, now)
}
