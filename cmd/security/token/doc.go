// Package token generates and decodes the random key material used to sign
// user tokens.
//
// Secrets are stored as unpadded base64url text. MinSecretBytes is the floor
// for every generated secret; asking for less is an error, not a silent bump.
package token
