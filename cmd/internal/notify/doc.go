// Package notify pushes session lifecycle events to connected clients
// over WebSocket.
//
// Delivery is best effort. A client that misses a session_revoked event
// discovers the revocation on its next refresh attempt anyway; the push
// only shortens the window.
package notify
