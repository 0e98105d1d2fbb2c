package session

import (
	"crypto/rand"
	"encoding/base64"

	"toutlux/cmd/security/token"
)

// newOpaqueRefreshToken generates the opaque bearer credential handed to
// clients. The plain form leaves the process exactly once; only the hash
// is persisted.
func newOpaqueRefreshToken(nBytes int) (plain string, hashHex string, err error) {
	b := make([]byte, nBytes)
	if _, err = rand.Read(b); err != nil {
		return "", "", err
	}

	// URL-safe, no padding.
	plain = base64.RawURLEncoding.EncodeToString(b)

	hashHex = token.HashRefreshTokenHex(plain) // 64 hex chars

	return plain, hashHex, nil
}

func hashRefreshTokenHex(s string) string {
	return token.HashRefreshTokenHex(s)
}
