package app

import "time"

// Config contains all runtime configuration loaded from environment variables.
type Config struct {
	HTTPAddr string
	LogLevel string

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int

	DatabaseURL string
	DBMaxConns  int32
	DBMinConns  int32

	// MigrateOnStart applies pending schema migrations before serving.
	MigrateOnStart bool

	// SweepInterval is the cadence of the expired-session sweeper.
	SweepInterval time.Duration

	// If true:
	// - /readyz returns 503 unless DB is configured and reachable.
	ReadinessRequireDB bool

	// Security policy:
	// If true, TOUTLUX_TOKEN_HMAC_KEY MUST be set (>= 32 bytes) and
	// refresh-token hashing must be HMAC-based.
	RequireTokenHMAC bool
}

// LoadConfig loads Config from environment variables with defaults.
func LoadConfig() Config {
	return Config{
		HTTPAddr: EnvString("TOUTLUX_HTTP_ADDR", "0.0.0.0:8080"),
		LogLevel: EnvString("TOUTLUX_LOG_LEVEL", "info"),

		ReadHeaderTimeout: EnvDuration("TOUTLUX_HTTP_READ_HEADER_TIMEOUT", 5*time.Second),
		ReadTimeout:       EnvDuration("TOUTLUX_HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      EnvDuration("TOUTLUX_HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:       EnvDuration("TOUTLUX_HTTP_IDLE_TIMEOUT", 60*time.Second),

		MaxHeaderBytes: EnvInt("TOUTLUX_HTTP_MAX_HEADER_BYTES", 1<<20),

		DatabaseURL: EnvString("TOUTLUX_DATABASE_URL", ""),
		DBMaxConns:  EnvInt32("TOUTLUX_DB_MAX_CONNS", 10),
		DBMinConns:  EnvInt32("TOUTLUX_DB_MIN_CONNS", 0),

		MigrateOnStart: EnvBool("TOUTLUX_DB_MIGRATE", false),

		SweepInterval: EnvDuration("TOUTLUX_SESSION_SWEEP_INTERVAL", 10*time.Minute),

		ReadinessRequireDB: EnvBool("TOUTLUX_READINESS_REQUIRE_DB", false),

		RequireTokenHMAC: EnvBool("TOUTLUX_REQUIRE_TOKEN_HMAC", false),
	}
}
