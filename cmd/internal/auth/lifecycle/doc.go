// Package lifecycle composes passwords, keys, sessions, tokens and cookies
// into the user-facing flows: Register, Login, Logout, Refresh and Authorize.
//
// Every authentication failure leaves this package as ErrUnauthorized (or
// ErrInvalidCredentials, which wraps it). The underlying reason is logged at
// debug level and never returned. Failures of the backing store are
// reported as ErrInternal so callers can tell an outage from a bad token.
//
// Logout deletes the session row. It does not revoke access tokens already
// handed out: they stay cryptographically valid until exp. Authorize resolves
// the user through the session cookie, so the old token is refused whenever it
// is presented alongside the revoked session id.
package lifecycle
