package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const argon2Version = argon2.Version // 0x13 (19)

var b64 = base64.RawStdEncoding

// phc is the decoded form of
// $argon2id$v=19$m=<mem>,t=<iter>,p=<par>$<salt_b64>$<hash_b64>
type phc struct {
	params Argon2idParams
	salt   []byte
	key    []byte
}

func (p phc) String() string {
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2Version,
		p.params.MemoryKiB,
		p.params.Iterations,
		p.params.Parallelism,
		b64.EncodeToString(p.salt),
		b64.EncodeToString(p.key),
	)
}

// Hash validates password against the policy, then derives an Argon2id key
// with a fresh random salt and returns the self-describing encoded hash.
func (c Config) Hash(password string) (string, error) {
	if err := c.Validate(password); err != nil {
		return "", err
	}
	return c.encode(password)
}

// encode derives and encodes without applying the policy.
func (c Config) encode(password string) (string, error) {
	if c.Params.SaltLength < 16 {
		return "", fmt.Errorf("argon2id: salt length %d below 16 bytes", c.Params.SaltLength)
	}

	salt := make([]byte, c.Params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("salt: %w", err)
	}

	p := phc{params: c.Params, salt: salt}
	p.key = derive(password, p.salt, p.params, c.Params.KeyLength)
	return p.String(), nil
}

// Verify checks whether password matches encodedHash.
// (true, nil) is a match, (false, nil) a mismatch, and (false, ErrInvalidHash)
// a malformed hash or one whose cost is far outside this config's bounds.
func (c Config) Verify(encodedHash, password string) (bool, error) {
	p, err := parsePHC(encodedHash)
	if err != nil {
		return false, err
	}
	if !withinReasonableBounds(p.params, c.Params) {
		return false, ErrInvalidHash
	}

	got := derive(password, p.salt, p.params, uint32(len(p.key))) // #nosec G115 -- key length bounded by parsePHC.
	return subtle.ConstantTimeCompare(got, p.key) == 1, nil
}

// Matches is the fail-closed form of Verify: any decoding problem is a mismatch.
func (c Config) Matches(password, encodedHash string) bool {
	ok, err := c.Verify(encodedHash, password)
	return err == nil && ok
}

func derive(password string, salt []byte, p Argon2idParams, keyLen uint32) []byte {
	return argon2.IDKey([]byte(password), salt, p.Iterations, p.MemoryKiB, p.Parallelism, keyLen)
}

// withinReasonableBounds accepts hashes made with older, cheaper settings but
// refuses attacker-inflated costs.
func withinReasonableBounds(got, limits Argon2idParams) bool {
	switch {
	case got.MemoryKiB > limits.MemoryKiB*2:
		return false
	case got.Iterations > limits.Iterations*2:
		return false
	case got.Parallelism > limits.Parallelism*2:
		return false
	case got.SaltLength < 8 || got.SaltLength > 64:
		return false
	case got.KeyLength < 16 || got.KeyLength > 128:
		return false
	}
	return true
}

func parsePHC(encoded string) (phc, error) {
	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[0] != "" || fields[1] != "argon2id" {
		return phc{}, ErrInvalidHash
	}
	if fields[2] != "v="+strconv.Itoa(argon2Version) {
		return phc{}, ErrInvalidHash
	}

	var mem, iter, par uint32
	for _, kv := range strings.Split(fields[3], ",") {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			return phc{}, ErrInvalidHash
		}
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil || n == 0 {
			return phc{}, ErrInvalidHash
		}
		switch k {
		case "m":
			mem = uint32(n)
		case "t":
			iter = uint32(n)
		case "p":
			par = uint32(n)
		default:
			return phc{}, ErrInvalidHash
		}
	}
	if mem == 0 || iter == 0 || par == 0 || par > 255 {
		return phc{}, ErrInvalidHash
	}

	salt, err := b64.DecodeString(fields[4])
	if err != nil || len(salt) == 0 {
		return phc{}, ErrInvalidHash
	}
	key, err := b64.DecodeString(fields[5])
	if err != nil || len(key) == 0 {
		return phc{}, ErrInvalidHash
	}

	return phc{
		params: Argon2idParams{
			MemoryKiB:   mem,
			Iterations:  iter,
			Parallelism: uint8(par),
			SaltLength:  uint32(len(salt)), // #nosec G115 -- bounded by input length.
			KeyLength:   uint32(len(key)),  // #nosec G115 -- bounded by input length.
		},
		salt: salt,
		key:  key,
	}, nil
}
