// Package token provides refresh-token hashing primitives for toutlux.
//
// The opaque refresh credential handed to a client is never persisted in
// plaintext; only its hash is stored in the sessions table. Default dev
// mode hashes with SHA-256; when TOUTLUX_TOKEN_HMAC_KEY is set the hash
// is HMAC-SHA256(token, key). Output is always 64 hex chars.
package token
