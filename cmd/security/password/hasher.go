package password

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Hasher runs Argon2id work on a bounded number of goroutines.
// A caller whose context ends stops waiting; the derivation itself finishes
// in the background and releases its slot.
type Hasher struct {
	cfg Config
	sem *semaphore.Weighted

	dummyOnce sync.Once
	dummy     string
}

// NewHasher returns a Hasher allowing at most workers concurrent derivations.
// workers <= 0 means runtime.NumCPU().
func NewHasher(cfg Config, workers int) *Hasher {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Hasher{cfg: cfg, sem: semaphore.NewWeighted(int64(workers))}
}

// Config returns the hashing configuration.
func (h *Hasher) Config() Config { return h.cfg }

// Hash applies the policy and hashes password.
func (h *Hasher) Hash(ctx context.Context, password string) (string, error) {
	if err := h.cfg.Validate(password); err != nil {
		return "", err
	}

	var (
		out     string
		hashErr error
	)
	if err := h.do(ctx, func() { out, hashErr = h.cfg.encode(password) }); err != nil {
		return "", err
	}
	return out, hashErr
}

// Verify reports whether password matches encoded. It fails closed: malformed
// hashes and cancelled contexts both report false.
func (h *Hasher) Verify(ctx context.Context, password, encoded string) bool {
	var ok bool
	if err := h.do(ctx, func() { ok = h.cfg.Matches(password, encoded) }); err != nil {
		return false
	}
	return ok
}

// VerifyDummy burns the same work as a real Verify against a throwaway hash.
// Login uses it for unknown usernames so both failures cost the same.
func (h *Hasher) VerifyDummy(ctx context.Context, password string) {
	h.dummyOnce.Do(func() {
		h.dummy, _ = h.cfg.encode("dummy-password-for-timing-only")
	})
	_ = h.Verify(ctx, password, h.dummy)
}

func (h *Hasher) do(ctx context.Context, fn func()) error {
	if err := h.sem.Acquire(ctx, 1); err != nil {
		return err
	}

	done := make(chan struct{})
	go func() {
		defer h.sem.Release(1)
		defer close(done)
		fn()
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
