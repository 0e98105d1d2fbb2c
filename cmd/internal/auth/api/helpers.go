package authapi

import (
	"net"
	"net/http"
	"strings"

	"toutlux/cmd/identity"
	"toutlux/cmd/internal/auth/session"
)

func toUserResponse(u identity.User) userResponse {
	return userResponse{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		CreatedAt:   u.CreatedAt,
	}
}

func toAuthResponse(issued session.Issued, u identity.User) authResponse {
	return authResponse{
		Token:        issued.AccessToken,
		RefreshToken: issued.RefreshToken,
		User:         toUserResponse(u),
	}
}

// clientIP extracts the informational client IP. When trustProxy is set,
// the leftmost X-Forwarded-For entry wins.
func clientIP(r *http.Request, trustProxy bool) net.IP {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first := strings.TrimSpace(strings.Split(xff, ",")[0])
			if ip := net.ParseIP(first); ip != nil {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return net.ParseIP(strings.TrimSpace(r.RemoteAddr))
	}
	return net.ParseIP(host)
}

func clientContext(r *http.Request, trustProxy bool) session.ClientContext {
	return session.ClientContext{
		UserAgent: strings.TrimSpace(r.UserAgent()),
		IP:        clientIP(r, trustProxy),
	}
}
