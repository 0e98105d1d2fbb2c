package authapi

import (
	"os"
	"strconv"
	"strings"
)

// Config holds transport-level settings for the auth endpoints.
type Config struct {
	// MaxBodyBytes bounds JSON request bodies.
	MaxBodyBytes int64

	// TrustProxy controls whether X-Forwarded-For is honored when
	// capturing the informational client IP.
	TrustProxy bool

	// GoogleClientID is the OAuth client the Google ID tokens must be
	// issued for. Empty disables /auth/google.
	GoogleClientID string
}

// LoadConfigFromEnv loads auth endpoint configuration with defaults.
func LoadConfigFromEnv() Config {
	cfg := Config{
		MaxBodyBytes:   64 * 1024,
		TrustProxy:     false,
		GoogleClientID: strings.TrimSpace(os.Getenv("TOUTLUX_GOOGLE_CLIENT_ID")),
	}

	if v := strings.TrimSpace(os.Getenv("TOUTLUX_AUTH_MAX_BODY_BYTES")); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.MaxBodyBytes = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("TOUTLUX_TRUST_PROXY")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.TrustProxy = b
		}
	}

	return cfg
}
