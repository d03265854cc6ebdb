package keys

import (
	"context"
	"testing"
	"time"

	"authsrv/cmd/identity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUser(t *testing.T, st identity.Store, name string) string {
	t.Helper()
	id, err := st.InsertCredential(context.Background(), identity.NewCredential{
		Username:     name,
		PasswordHash: "$argon2id$placeholder",
		Now:          time.Now().UTC(),
	})
	require.NoError(t, err)
	return id
}

func TestProvision_DistinctSecrets(t *testing.T) {
	ctx := context.Background()
	st := identity.NewMemoryStore()
	userID := newUser(t, st, "alice")
	ks := New(st)

	require.NoError(t, ks.Provision(ctx, userID))

	access, err := ks.AccessSecret(ctx, userID)
	require.NoError(t, err)
	refresh, err := ks.RefreshSecret(ctx, userID)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, len(access), 64)
	assert.GreaterOrEqual(t, len(refresh), 64)
	assert.NotEqual(t, access, refresh)
}

func TestProvision_NeverOverwrites(t *testing.T) {
	ctx := context.Background()
	st := identity.NewMemoryStore()
	userID := newUser(t, st, "alice")
	ks := New(st)

	require.NoError(t, ks.Provision(ctx, userID))
	before, err := ks.AccessSecret(ctx, userID)
	require.NoError(t, err)

	err = ks.Provision(ctx, userID)
	require.ErrorIs(t, err, ErrKeyAlreadyProvisioned)

	after, err := ks.AccessSecret(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestSecrets_UnknownUser(t *testing.T) {
	ctx := context.Background()
	ks := New(identity.NewMemoryStore())

	_, err := ks.AccessSecret(ctx, "01HZZZZZZZZZZZZZZZZZZZZZZZ")
	require.ErrorIs(t, err, ErrKeyNotFound)
	_, err = ks.RefreshSecret(ctx, "01HZZZZZZZZZZZZZZZZZZZZZZZ")
	require.ErrorIs(t, err, ErrKeyNotFound)
}

func TestProvision_UnknownUser(t *testing.T) {
	err := New(identity.NewMemoryStore()).Provision(context.Background(), "01HZZZZZZZZZZZZZZZZZZZZZZZ")
	require.Error(t, err)
	assert.True(t, identity.IsNotFound(err))
}

func TestWithSecretBytes(t *testing.T) {
	ctx := context.Background()
	st := identity.NewMemoryStore()
	userID := newUser(t, st, "bob")

	require.NoError(t, New(st, WithSecretBytes(96)).Provision(ctx, userID))
	b, err := New(st).RefreshSecret(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, b, 96)

	assert.Equal(t, 64, New(st, WithSecretBytes(8)).secretBytes)
}

func TestProvision_RollsBackWithTransaction(t *testing.T) {
	ctx := context.Background()
	st := identity.NewMemoryStore()
	userID := newUser(t, st, "carol")

	err := st.InTx(ctx, func(q identity.Queries) error {
		if err := New(q).Provision(ctx, userID); err != nil {
			return err
		}
		return context.Canceled
	})
	require.ErrorIs(t, err, context.Canceled)

	_, err = New(st).AccessSecret(ctx, userID)
	require.ErrorIs(t, err, ErrKeyNotFound)
}
