// Package authapi exposes the HTTP surface of the session lifecycle:
// registration, login, Google sign-in, refresh rotation, and logout.
//
// Every issuance endpoint answers with the same wire triple of access
// token, refresh token, and user profile, so clients handle one shape.
package authapi
