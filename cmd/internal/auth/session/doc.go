// Package session implements the toutlux session credential lifecycle.
//
// A session is a long-lived, store-backed refresh credential owned by
// exactly one user. Access tokens are short-lived signed JWTs and are
// never persisted. Refresh tokens are opaque random strings stored only
// as hashes in Postgres.
//
// The policy is single-active-session-per-user: issuing a session (login,
// register, social auth, or rotation) deletes every prior session owned by
// the same user. Rotation runs inside one database transaction with a row
// lock on the presented token so concurrent refreshes for the same user
// serialize; the loser observes "not found" instead of an orphaned pair.
//
// Transport (HTTP) integration is intentionally out of scope here.
package session
