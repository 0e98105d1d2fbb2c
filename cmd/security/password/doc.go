// Package password provides Argon2id password hashing for toutlux.
//
// Hash strings use a PHC-like encoded format and are treated as untrusted
// input during Verify: malformed hashes and parameters beyond configured
// bounds are rejected rather than evaluated.
package password
