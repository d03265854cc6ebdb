// Package password hashes and verifies user passwords with Argon2id.
//
// Hashes use the PHC string format, so salt and cost travel with the digest:
//
//	$argon2id$v=19$m=65536,t=3,p=4$<salt>$<hash>
//
// Stored hashes are treated as untrusted input during verification, and
// hashes whose cost is far above the configured parameters are refused.
// Hasher adds a bounded worker pool so CPU-heavy derivations cannot starve
// request handling.
package password
