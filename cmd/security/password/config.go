package password

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Argon2idParams controls Argon2id hashing cost.
// MemoryKiB is in KiB as required by argon2.IDKey.
type Argon2idParams struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// Policy bounds accepted password lengths.
type Policy struct {
	MinLength int
	MaxLength int
}

// Config is the single configuration surface for this package.
type Config struct {
	Params Argon2idParams
	Policy Policy
}

// DefaultConfig returns a baseline suitable for interactive marketplace logins.
func DefaultConfig() Config {
	// Parallelism follows the host CPU but is clamped to keep container
	// resource usage predictable.
	threads := runtime.NumCPU()
	if threads <= 0 {
		threads = 1
	}
	if threads > 4 {
		threads = 4
	}

	return Config{
		Params: Argon2idParams{
			MemoryKiB:   64 * 1024,
			Iterations:  3,
			Parallelism: uint8(threads), // #nosec G115 -- clamped to [1..4] above.
			SaltLength:  16,
			KeyLength:   32,
		},
		Policy: Policy{
			MinLength: 8,
			MaxLength: 256,
		},
	}
}

// FromEnv loads config from environment variables.
//
// Env surface:
// - TOUTLUX_PASSWORD_MIN_LEN
// - TOUTLUX_PASSWORD_MAX_LEN
// - TOUTLUX_ARGON2_MEMORY_KIB
// - TOUTLUX_ARGON2_ITERATIONS
func FromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v, ok := os.LookupEnv("TOUTLUX_PASSWORD_MIN_LEN"); ok {
		n, err := parseBoundedInt(v, 1, 1024)
		if err != nil {
			return Config{}, fmt.Errorf("TOUTLUX_PASSWORD_MIN_LEN: %w", err)
		}
		cfg.Policy.MinLength = n
	}

	if v, ok := os.LookupEnv("TOUTLUX_PASSWORD_MAX_LEN"); ok {
		n, err := parseBoundedInt(v, 1, 4096)
		if err != nil {
			return Config{}, fmt.Errorf("TOUTLUX_PASSWORD_MAX_LEN: %w", err)
		}
		cfg.Policy.MaxLength = n
	}

	if v, ok := os.LookupEnv("TOUTLUX_ARGON2_MEMORY_KIB"); ok {
		n, err := parseBoundedInt(v, 8*1024, 1024*1024)
		if err != nil {
			return Config{}, fmt.Errorf("TOUTLUX_ARGON2_MEMORY_KIB: %w", err)
		}
		cfg.Params.MemoryKiB = uint32(n) // #nosec G115 -- bounded above.
	}

	if v, ok := os.LookupEnv("TOUTLUX_ARGON2_ITERATIONS"); ok {
		n, err := parseBoundedInt(v, 1, 20)
		if err != nil {
			return Config{}, fmt.Errorf("TOUTLUX_ARGON2_ITERATIONS: %w", err)
		}
		cfg.Params.Iterations = uint32(n) // #nosec G115 -- bounded above.
	}

	if cfg.Policy.MinLength > cfg.Policy.MaxLength {
		return Config{}, fmt.Errorf(
			"password policy invalid: min_len(%d) > max_len(%d)",
			cfg.Policy.MinLength, cfg.Policy.MaxLength,
		)
	}

	return cfg, nil
}

// Validate checks password length policy. It does not mutate input.
func (c Config) Validate(password string) error {
	// Count runes, not bytes, to be user-friendly.
	n := utf8.RuneCountInString(password)
	if n < c.Policy.MinLength {
		return ErrPasswordTooShort
	}
	if n > c.Policy.MaxLength {
		return ErrPasswordTooLong
	}
	return nil
}

func parseBoundedInt(s string, minVal, maxVal int) (int, error) {
	i64, err := strconv.ParseInt(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("not an integer")
	}
	i := int(i64)
	if i < minVal || i > maxVal {
		return 0, fmt.Errorf("out of range [%d..%d]", minVal, maxVal)
	}
	return i, nil
}
