package identity

import "github.com/oklog/ulid/v2"

// NewID returns a lexicographically sortable unique ID for directory rows.
func NewID() string {
	return ulid.Make().String()
}
