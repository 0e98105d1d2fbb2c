// Package identity is the toutlux user directory.
//
// The session core consumes it only to look users up and to resolve the
// owner of a credential; profile fields, listings, messages, and documents
// live elsewhere. Social identities (Google) are linked to users via the
// user_identities table so a social login and a password login resolve to
// the same principal.
package identity
