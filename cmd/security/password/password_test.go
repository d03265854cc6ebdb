package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cheapConfig keeps test runs fast; production cost lives in DefaultConfig.
func cheapConfig() Config {
	cfg := DefaultConfig()
	cfg.Params.MemoryKiB = 1024
	cfg.Params.Iterations = 1
	cfg.Params.Parallelism = 1
	return cfg
}

func TestHashAndVerify_OK(t *testing.T) {
	cfg := DefaultConfig()

	h, err := cfg.Hash("this is a strong password 123!")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	ok, err := cfg.Verify(h, "this is a strong password 123!")
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if !ok {
		t.Fatalf("expected match")
	}
}

func TestVerify_WrongPassword(t *testing.T) {
	cfg := cheapConfig()

	h, err := cfg.Hash("this is a strong password 123!")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	ok, err := cfg.Verify(h, "wrong password")
	if err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if ok {
		t.Fatalf("expected mismatch")
	}
}

func TestHash_SaltedPerCall(t *testing.T) {
	cfg := cheapConfig()

	a, err := cfg.Hash("p@ss")
	require.NoError(t, err)
	b, err := cfg.Hash("p@ss")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "$argon2id$v=19$m=1024,t=1,p=1$"), a)
	assert.NotContains(t, a, "p@ss")
	assert.True(t, cfg.Matches("p@ss", a))
	assert.True(t, cfg.Matches("p@ss", b))
}

func TestMatches_FailsClosed(t *testing.T) {
	cfg := cheapConfig()
	h, err := cfg.Hash("p@ss")
	require.NoError(t, err)

	cases := map[string]string{
		"empty":          "",
		"garbage":        "not-a-hash",
		"wrong alg":      strings.Replace(h, "argon2id", "argon2i", 1),
		"wrong version":  strings.Replace(h, "v=19", "v=16", 1),
		"truncated":      h[:strings.LastIndex(h, "$")],
		"inflated cost":  strings.Replace(h, "m=1024", "m=4194304", 1),
		"bad params":     strings.Replace(h, "t=1", "t=x", 1),
		"unknown param":  strings.Replace(h, "p=1", "q=1", 1),
		"bad salt":       strings.Replace(h, "$argon2id$v=19$m=1024,t=1,p=1$", "$argon2id$v=19$m=1024,t=1,p=1$!!", 1),
	}
	for name, enc := range cases {
		assert.False(t, cfg.Matches("p@ss", enc), name)
	}
}

func TestHash_RejectsShortSalt(t *testing.T) {
	cfg := cheapConfig()
	cfg.Params.SaltLength = 8

	_, err := cfg.Hash("p@ss")
	require.Error(t, err)
}

func TestValidate_MinMax(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Policy.MinLength = 12
	cfg.Policy.MaxLength = 16

	if err := cfg.Validate("short"); err != ErrPasswordTooShort {
		t.Fatalf("expected ErrPasswordTooShort, got %v", err)
	}

	if err := cfg.Validate("this password is definitely too long"); err != ErrPasswordTooLong {
		t.Fatalf("expected ErrPasswordTooLong, got %v", err)
	}

	if err := cfg.Validate("goodpassw0rd!"); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	assert.True(t, IsPolicyViolation(cfg.Validate("short")))
	assert.False(t, IsPolicyViolation(ErrInvalidHash))
}

func TestVerify_InvalidHash(t *testing.T) {
	cfg := DefaultConfig()

	ok, err := cfg.Verify("not-a-hash", "whatever")
	if err != ErrInvalidHash {
		t.Fatalf("expected ErrInvalidHash, got %v", err)
	}
	if ok {
		t.Fatalf("expected false")
	}
}

func TestPolicy_RejectVeryWeak(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Policy.RejectVeryWeak = true
	cfg.Policy.MinLength = 8

	if err := cfg.Validate("password"); err != ErrWeakPassword {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
	if err := cfg.Validate("11111111"); err != ErrWeakPassword {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
	if err := cfg.Validate("a-very-ok-pass"); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
}
