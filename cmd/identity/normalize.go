package identity

import "strings"

// NormalizeEmail performs case-insensitive canonicalization.
// Only trim + lower-case for now; stricter rules can be added behind a
// versioned policy without rewriting stored values.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
