package identity

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"authsrv/cmd/identity/ids"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreContract exercises behavior every Store implementation must share.
// newStore must return an empty store.
func runStoreContract(t *testing.T, newStore func(t *testing.T) Store) {
	t.Run("credential lookup is case-insensitive", func(t *testing.T) {
		st := newStore(t)
		ctx := testCtx(t)

		id, err := st.InsertCredential(ctx, NewCredential{Username: "Alice", PasswordHash: "h", Email: "a@x.com"})
		require.NoError(t, err)
		assert.True(t, ids.IsUserID(id))

		c, err := st.FindCredential(ctx, "  alice ")
		require.NoError(t, err)
		assert.Equal(t, id, c.UserID)
		assert.Equal(t, "Alice", c.Username)
		assert.Equal(t, "a@x.com", c.Email)

		byID, err := st.CredentialByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, c.Username, byID.Username)
	})

	t.Run("duplicate username conflicts", func(t *testing.T) {
		st := newStore(t)
		ctx := testCtx(t)

		_, err := st.InsertCredential(ctx, NewCredential{Username: "bob", PasswordHash: "h"})
		require.NoError(t, err)

		_, err = st.InsertCredential(ctx, NewCredential{Username: "BOB", PasswordHash: "h2"})
		require.Error(t, err)
		assert.True(t, IsConflict(err))
		field, _ := ConflictField(err)
		assert.Equal(t, "username", field)
	})

	t.Run("unknown credential is not found", func(t *testing.T) {
		st := newStore(t)
		_, err := st.FindCredential(testCtx(t), "nobody")
		assert.True(t, IsNotFound(err), "got %v", err)
	})

	t.Run("credential fields beyond column limits are invalid input", func(t *testing.T) {
		st := newStore(t)
		ctx := testCtx(t)

		for name, in := range map[string]NewCredential{
			"long username":   {Username: strings.Repeat("u", MaxUsernameLen+1), PasswordHash: "h"},
			"invalid utf8":    {Username: "a\xc3(b", PasswordHash: "h"},
			"nul in username": {Username: "a\x00b", PasswordHash: "h"},
			"long email":      {Username: "dave", PasswordHash: "h", Email: strings.Repeat("e", MaxEmailLen+1)},
		} {
			_, err := st.InsertCredential(ctx, in)
			assert.True(t, IsInvalidInput(err), "%s: got %v", name, err)
		}

		_, err := st.FindCredential(ctx, "a\xc3(b")
		assert.True(t, IsInvalidInput(err), "got %v", err)

		id, err := st.InsertCredential(ctx, NewCredential{Username: strings.Repeat("ü", MaxUsernameLen), PasswordHash: "h"})
		require.NoError(t, err)
		c, err := st.FindCredential(ctx, strings.Repeat("Ü", MaxUsernameLen))
		require.NoError(t, err)
		assert.Equal(t, id, c.UserID)
	})

	t.Run("signing keys are written once", func(t *testing.T) {
		st := newStore(t)
		ctx := testCtx(t)
		userID := mustInsertUser(t, st, "carol")

		_, err := st.AccessSecret(ctx, userID)
		assert.True(t, IsNotFound(err))

		keys := SigningKeys{UserID: userID, AccessSecret: testSecret("a"), RefreshSecret: testSecret("r")}
		require.NoError(t, st.InsertKeys(ctx, keys))

		acc, err := st.AccessSecret(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, keys.AccessSecret, acc)
		ref, err := st.RefreshSecret(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, keys.RefreshSecret, ref)

		again := SigningKeys{UserID: userID, AccessSecret: testSecret("x"), RefreshSecret: testSecret("y")}
		err = st.InsertKeys(ctx, again)
		assert.True(t, IsConflict(err), "got %v", err)

		acc, err = st.AccessSecret(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, keys.AccessSecret, acc, "existing pair must survive a second insert")
	})

	t.Run("identical secrets are rejected", func(t *testing.T) {
		st := newStore(t)
		userID := mustInsertUser(t, st, "dave")
		s := testSecret("s")
		err := st.InsertKeys(testCtx(t), SigningKeys{UserID: userID, AccessSecret: s, RefreshSecret: s})
		assert.True(t, IsInvalidInput(err), "got %v", err)
	})

	t.Run("keys for unknown user are not found", func(t *testing.T) {
		st := newStore(t)
		missing, err := ids.NewUserID(time.Now())
		require.NoError(t, err)
		err = st.InsertKeys(testCtx(t), SigningKeys{UserID: missing, AccessSecret: testSecret("a"), RefreshSecret: testSecret("b")})
		assert.True(t, IsNotFound(err), "got %v", err)
	})

	t.Run("latest session wins", func(t *testing.T) {
		st := newStore(t)
		ctx := testCtx(t)
		userID := mustInsertUser(t, st, "erin")

		_, err := st.LatestSessionFor(ctx, userID)
		assert.True(t, IsNotFound(err))

		base := time.Now().UTC().Truncate(time.Millisecond)
		first := mustInsertSession(t, st, userID, base)
		second := mustInsertSession(t, st, userID, base.Add(time.Second))

		got, err := st.LatestSessionFor(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, second, got)

		// Same timestamp falls back to insertion order.
		third := mustInsertSession(t, st, userID, base.Add(time.Second))
		got, err = st.LatestSessionFor(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, third, got)
		assert.NotEqual(t, first, got)
	})

	t.Run("session owner and delete", func(t *testing.T) {
		st := newStore(t)
		ctx := testCtx(t)
		userID := mustInsertUser(t, st, "frank")
		sid := mustInsertSession(t, st, userID, time.Now().UTC())

		owner, err := st.SessionOwner(ctx, sid)
		require.NoError(t, err)
		assert.Equal(t, userID, owner)

		removed, err := st.DeleteSession(ctx, sid)
		require.NoError(t, err)
		assert.True(t, removed)

		removed, err = st.DeleteSession(ctx, sid)
		require.NoError(t, err)
		assert.False(t, removed)

		_, err = st.SessionOwner(ctx, sid)
		assert.True(t, IsNotFound(err))
	})

	t.Run("malformed session id is unknown", func(t *testing.T) {
		st := newStore(t)
		ctx := testCtx(t)

		_, err := st.SessionOwner(ctx, "'; DROP TABLE sessions; --")
		assert.True(t, IsNotFound(err), "got %v", err)

		removed, err := st.DeleteSession(ctx, "not-a-uuid")
		require.NoError(t, err)
		assert.False(t, removed)
	})

	t.Run("transaction rolls back on error", func(t *testing.T) {
		st := newStore(t)
		ctx := testCtx(t)
		boom := errors.New("boom")

		err := st.InTx(ctx, func(q Queries) error {
			if _, err := q.InsertCredential(ctx, NewCredential{Username: "ghost", PasswordHash: "h"}); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)

		_, err = st.FindCredential(ctx, "ghost")
		assert.True(t, IsNotFound(err), "insert must not survive rollback, got %v", err)
	})

	t.Run("transaction commits", func(t *testing.T) {
		st := newStore(t)
		ctx := testCtx(t)

		var userID string
		err := st.InTx(ctx, func(q Queries) error {
			id, err := q.InsertCredential(ctx, NewCredential{Username: "heidi", PasswordHash: "h"})
			if err != nil {
				return err
			}
			userID = id
			return q.InsertKeys(ctx, SigningKeys{UserID: id, AccessSecret: testSecret("a"), RefreshSecret: testSecret("r")})
		})
		require.NoError(t, err)

		_, err = st.AccessSecret(ctx, userID)
		require.NoError(t, err)
	})
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// testSecret returns an 86-char value, the encoded length of 64 random bytes.
func testSecret(seed string) string {
	return strings.Repeat(seed, 86)[:86]
}

func mustInsertUser(t *testing.T, st Store, username string) string {
	t.Helper()
	id, err := st.InsertCredential(testCtx(t), NewCredential{Username: username, PasswordHash: "hash", Email: username + "@example.com"})
	require.NoError(t, err)
	return id
}

func mustInsertSession(t *testing.T, st Store, userID string, at time.Time) string {
	t.Helper()
	sid, err := ids.NewSessionID()
	require.NoError(t, err)
	err = st.InsertSession(testCtx(t), Session{
		ID:        sid,
		UserID:    userID,
		CreatedAt: at,
		UserAgent: "go-test",
		IP:        net.ParseIP("127.0.0.1"),
		Device:    "test",
	})
	require.NoError(t, err)
	return sid
}
