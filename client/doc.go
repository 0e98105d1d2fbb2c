// Package client is the Go SDK for the toutlux auth service.
//
// It keeps the session pair (access + refresh token) in a State, attaches
// the access token to outgoing requests through a Transport, and refreshes
// it transparently on 401. Concurrent requests that hit an expired access
// token at the same time share one refresh call; the refresh token is
// single-use on the server, so a duplicate refresh would kill the session.
package client
