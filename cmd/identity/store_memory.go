package identity

import (
	"context"
	"maps"
	"strings"
	"sync"
	"time"

	"authsrv/cmd/identity/ids"
)

// MemoryStore is a process-local Store for development and tests.
// A single mutex serializes every call, so InTx is trivially isolated.
type MemoryStore struct {
	mu    sync.Mutex
	state *memState
}

type memSession struct {
	Session
	seq int64
}

type memState struct {
	users    map[string]Credential // by user id
	byName   map[string]string     // username_norm -> user id
	keys     map[string]SigningKeys
	sessions map[string]memSession
	seq      int64
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: &memState{
		users:    map[string]Credential{},
		byName:   map[string]string{},
		keys:     map[string]SigningKeys{},
		sessions: map[string]memSession{},
	}}
}

func (st *memState) clone() *memState {
	return &memState{
		users:    maps.Clone(st.users),
		byName:   maps.Clone(st.byName),
		keys:     maps.Clone(st.keys),
		sessions: maps.Clone(st.sessions),
		seq:      st.seq,
	}
}

// Ping always succeeds.
func (m *MemoryStore) Ping(ctx context.Context) error { return ctx.Err() }

// InTx runs fn against a copy of the state and publishes it only if fn succeeds.
func (m *MemoryStore) InTx(ctx context.Context, fn func(q Queries) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	work := m.state.clone()
	if err := fn(work); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.state = work
	return nil
}

func (m *MemoryStore) FindCredential(ctx context.Context, username string) (Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.FindCredential(ctx, username)
}

func (m *MemoryStore) CredentialByID(ctx context.Context, userID string) (Credential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.CredentialByID(ctx, userID)
}

func (m *MemoryStore) InsertCredential(ctx context.Context, in NewCredential) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.InsertCredential(ctx, in)
}

func (m *MemoryStore) AccessSecret(ctx context.Context, userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.AccessSecret(ctx, userID)
}

func (m *MemoryStore) RefreshSecret(ctx context.Context, userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.RefreshSecret(ctx, userID)
}

func (m *MemoryStore) InsertKeys(ctx context.Context, keys SigningKeys) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.InsertKeys(ctx, keys)
}

func (m *MemoryStore) InsertSession(ctx context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.InsertSession(ctx, s)
}

func (m *MemoryStore) LatestSessionFor(ctx context.Context, userID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.LatestSessionFor(ctx, userID)
}

func (m *MemoryStore) SessionOwner(ctx context.Context, sessionID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.SessionOwner(ctx, sessionID)
}

func (m *MemoryStore) LockSessionOwner(ctx context.Context, sessionID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.LockSessionOwner(ctx, sessionID)
}

func (m *MemoryStore) DeleteSession(ctx context.Context, sessionID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.DeleteSession(ctx, sessionID)
}

// ---- unlocked state operations (caller holds MemoryStore.mu) ----

func (st *memState) FindCredential(ctx context.Context, username string) (Credential, error) {
	const op = "identity.FindCredential"
	if err := ctx.Err(); err != nil {
		return Credential{}, err
	}
	norm := NormalizeUsername(username)
	if norm == "" {
		return Credential{}, invalid(op, "missing username")
	}
	if err := checkText(op, "username", strings.TrimSpace(username), MaxUsernameLen); err != nil {
		return Credential{}, err
	}
	id, ok := st.byName[norm]
	if !ok {
		return Credential{}, NotFoundError{Op: op, Resource: "credential"}
	}
	return st.users[id], nil
}

func (st *memState) CredentialByID(ctx context.Context, userID string) (Credential, error) {
	const op = "identity.CredentialByID"
	if err := ctx.Err(); err != nil {
		return Credential{}, err
	}
	c, ok := st.users[userID]
	if !ok {
		return Credential{}, NotFoundError{Op: op, Resource: "credential"}
	}
	return c, nil
}

func (st *memState) InsertCredential(ctx context.Context, in NewCredential) (string, error) {
	const op = "identity.InsertCredential"
	if err := ctx.Err(); err != nil {
		return "", err
	}

	username := strings.TrimSpace(in.Username)
	if username == "" {
		return "", invalid(op, "missing username")
	}
	if err := CheckCredentialInput(username, in.Email); err != nil {
		return "", err
	}
	if in.PasswordHash == "" {
		return "", invalid(op, "missing password hash")
	}
	norm := NormalizeUsername(username)
	if _, taken := st.byName[norm]; taken {
		return "", ConflictError{Op: op, Field: "username"}
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	userID, err := ids.NewUserID(now)
	if err != nil {
		return "", err
	}

	st.users[userID] = Credential{
		UserID:       userID,
		Username:     username,
		PasswordHash: in.PasswordHash,
		Email:        strings.TrimSpace(in.Email),
		CreatedAt:    now,
	}
	st.byName[norm] = userID
	return userID, nil
}

func (st *memState) AccessSecret(ctx context.Context, userID string) (string, error) {
	k, err := st.signingKeys(ctx, "identity.AccessSecret", userID)
	return k.AccessSecret, err
}

func (st *memState) RefreshSecret(ctx context.Context, userID string) (string, error) {
	k, err := st.signingKeys(ctx, "identity.RefreshSecret", userID)
	return k.RefreshSecret, err
}

func (st *memState) signingKeys(ctx context.Context, op, userID string) (SigningKeys, error) {
	if err := ctx.Err(); err != nil {
		return SigningKeys{}, err
	}
	k, ok := st.keys[userID]
	if !ok {
		return SigningKeys{}, NotFoundError{Op: op, Resource: "signing_keys"}
	}
	return k, nil
}

func (st *memState) InsertKeys(ctx context.Context, keys SigningKeys) error {
	const op = "identity.InsertKeys"
	if err := ctx.Err(); err != nil {
		return err
	}
	if keys.AccessSecret == "" || keys.RefreshSecret == "" {
		return invalid(op, "missing secret")
	}
	if keys.AccessSecret == keys.RefreshSecret {
		return invalid(op, "access and refresh secrets must differ")
	}
	if _, ok := st.users[keys.UserID]; !ok {
		return NotFoundError{Op: op, Resource: "credential"}
	}
	if _, exists := st.keys[keys.UserID]; exists {
		return ConflictError{Op: op, Field: "signing_keys"}
	}
	if keys.CreatedAt.IsZero() {
		keys.CreatedAt = time.Now().UTC()
	}
	st.keys[keys.UserID] = keys
	return nil
}

func (st *memState) InsertSession(ctx context.Context, s Session) error {
	const op = "identity.InsertSession"
	if err := ctx.Err(); err != nil {
		return err
	}
	if !ids.IsSessionID(s.ID) {
		return invalid(op, "invalid session_id")
	}
	if _, ok := st.users[s.UserID]; !ok {
		return NotFoundError{Op: op, Resource: "credential"}
	}
	if _, exists := st.sessions[s.ID]; exists {
		return ConflictError{Op: op, Field: "session_id"}
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	st.seq++
	st.sessions[s.ID] = memSession{Session: s, seq: st.seq}
	return nil
}

func (st *memState) LatestSessionFor(ctx context.Context, userID string) (string, error) {
	const op = "identity.LatestSessionFor"
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var (
		best  memSession
		found bool
	)
	for _, s := range st.sessions {
		if s.UserID != userID {
			continue
		}
		if !found || s.CreatedAt.After(best.CreatedAt) ||
			(s.CreatedAt.Equal(best.CreatedAt) && s.seq > best.seq) {
			best, found = s, true
		}
	}
	if !found {
		return "", NotFoundError{Op: op, Resource: "session"}
	}
	return best.ID, nil
}

func (st *memState) SessionOwner(ctx context.Context, sessionID string) (string, error) {
	const op = "identity.SessionOwner"
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s, ok := st.sessions[sessionID]
	if !ok {
		return "", NotFoundError{Op: op, Resource: "session"}
	}
	return s.UserID, nil
}

func (st *memState) LockSessionOwner(ctx context.Context, sessionID string) (string, error) {
	return st.SessionOwner(ctx, sessionID)
}

func (st *memState) DeleteSession(ctx context.Context, sessionID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if _, ok := st.sessions[sessionID]; !ok {
		return false, nil
	}
	delete(st.sessions, sessionID)
	return true, nil
}
