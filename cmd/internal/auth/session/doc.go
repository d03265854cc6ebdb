// Package session manages login sessions.
//
// A session row is the server-side anchor for refresh tokens: while it exists
// the refresh tokens bound to it stay usable, and deleting it revokes them.
// Access tokens never reference a session.
//
// The Store here is thin. It maps persistence errors onto ErrUnknownSession and
// ErrNoActiveSession and stamps new rows with a fresh UUIDv4 and device context.
package session
