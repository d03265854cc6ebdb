// Package tokens issues and validates the two signed token classes.
//
// Access tokens are HS256 JWTs signed with the user's access secret and carry
// {username, exp}. Refresh tokens are HS512 JWTs signed with the user's
// refresh secret and carry {session, sub, exp}. Both also carry iat and a
// random jti so two tokens issued in the same second differ.
//
// Validation always selects the key from a caller-supplied user id, never
// from anything inside the token, and pins the algorithm. The signature is
// checked before expiry. A token is expired once now is strictly after exp.
package tokens
