package authapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"toutlux/cmd/internal/auth/session"
)

type contextKey struct{ name string }

var claimsKey = contextKey{"auth-claims"}

// ClaimsFromContext returns the verified access claims attached by
// RequireAuth, if any.
func ClaimsFromContext(ctx context.Context) (session.AccessClaims, bool) {
	claims, ok := ctx.Value(claimsKey).(session.AccessClaims)
	return claims, ok
}

// bearerToken extracts the credential from "Authorization: Bearer <token>".
func bearerToken(r *http.Request) (string, bool) {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "Bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(h[len(prefix):]), true
}

// requireAuth verifies the bearer access token and returns its claims.
// Any failure yields a uniform 401; absence, bad signature, and expiry are
// indistinguishable on the wire.
func (h *Handler) requireAuth(w http.ResponseWriter, r *http.Request) (session.AccessClaims, bool) {
	tok, ok := bearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "invalid_token", "authentication required")
		return session.AccessClaims{}, false
	}

	claims, err := h.sessions.VerifyAccessToken(tok, time.Now().UTC())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid_token", "authentication required")
		return session.AccessClaims{}, false
	}
	return claims, true
}

// RequireAuth wraps a private handler with bearer-token verification and
// attaches the claims to the request context. Public endpoints must not be
// mounted behind it.
func (h *Handler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := h.requireAuth(w, r)
		if !ok {
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
	})
}
