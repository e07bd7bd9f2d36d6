package auth

import (
	"context"
	"sync"
	"time"

	"cinema-reservation/internal/observability"
)

// memoryStore backs the core interfaces for tests. Consume takes the mutex
// for the whole check-and-insert so it is as atomic as the SQL gate it
// stands in for.
type memoryStore struct {
	mu         sync.Mutex
	identities map[string]Identity
	attempts   map[string]LoginAttempt
	revoked    map[string]RevocationRecord

	identityErr error
	ledgerErr   error
	attemptErr  error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		identities: make(map[string]Identity),
		attempts:   make(map[string]LoginAttempt),
		revoked:    make(map[string]RevocationRecord),
	}
}

func (m *memoryStore) addIdentity(id, email, password string, role Role) Identity {
	hash, _ := plainCredentials{}.Hash(password)
	identity := Identity{ID: id, Email: email, Nickname: id, PasswordHash: hash, Role: role}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.identities[id] = identity
	return identity
}

func (m *memoryStore) setAttempt(identityID string, failed int, lastFailure time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	at := lastFailure
	m.attempts[identityID] = LoginAttempt{IdentityID: identityID, FailedCount: failed, LastFailureAt: &at}
}

func (m *memoryStore) IdentityByEmail(_ context.Context, email string) (Identity, error) {
	if m.identityErr != nil {
		return Identity{}, m.identityErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, identity := range m.identities {
		if identity.Email == email {
			return identity, nil
		}
	}
	return Identity{}, ErrIdentityNotFound
}

func (m *memoryStore) IdentityByID(_ context.Context, id string) (Identity, error) {
	if m.identityErr != nil {
		return Identity{}, m.identityErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	identity, ok := m.identities[id]
	if !ok {
		return Identity{}, ErrIdentityNotFound
	}
	return identity, nil
}

func (m *memoryStore) IsRevoked(_ context.Context, jti string) (bool, error) {
	if m.ledgerErr != nil {
		return false, m.ledgerErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.revoked[jti]
	return ok, nil
}

func (m *memoryStore) Revoke(_ context.Context, jti, identityID string, expiresAt time.Time) error {
	if m.ledgerErr != nil {
		return m.ledgerErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.revoked[jti]; !ok {
		m.revoked[jti] = RevocationRecord{JTI: jti, IdentityID: identityID, ExpiresAt: expiresAt, CreatedAt: time.Now().UTC()}
	}
	return nil
}

func (m *memoryStore) Consume(_ context.Context, jti, identityID string, expiresAt time.Time) (bool, error) {
	if m.ledgerErr != nil {
		return false, m.ledgerErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.revoked[jti]; ok {
		return false, nil
	}
	m.revoked[jti] = RevocationRecord{JTI: jti, IdentityID: identityID, ExpiresAt: expiresAt, CreatedAt: time.Now().UTC()}
	return true, nil
}

func (m *memoryStore) GetAttempt(_ context.Context, identityID string) (LoginAttempt, error) {
	if m.attemptErr != nil {
		return LoginAttempt{}, m.attemptErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	attempt, ok := m.attempts[identityID]
	if !ok {
		return LoginAttempt{IdentityID: identityID}, nil
	}
	return attempt, nil
}

func (m *memoryStore) RecordFailure(_ context.Context, identityID string, at time.Time) error {
	if m.attemptErr != nil {
		return m.attemptErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	attempt := m.attempts[identityID]
	attempt.IdentityID = identityID
	attempt.FailedCount++
	stamp := at
	attempt.LastFailureAt = &stamp
	m.attempts[identityID] = attempt
	return nil
}

func (m *memoryStore) ResetAttempt(_ context.Context, identityID string) error {
	if m.attemptErr != nil {
		return m.attemptErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	attempt, ok := m.attempts[identityID]
	if !ok {
		return nil
	}
	attempt.FailedCount = 0
	attempt.LastFailureAt = nil
	m.attempts[identityID] = attempt
	return nil
}

// plainCredentials keeps tests fast and deterministic; hashing internals are
// outside the core's contract anyway.
type plainCredentials struct{}

func (plainCredentials) Hash(plain string) (string, error) {
	return "hashed:" + plain, nil
}

func (plainCredentials) Verify(plain, hash string) bool {
	return hash == "hashed:"+plain
}

func newTestService(store *memoryStore) *Service {
	codec := NewCodec("test-secret")
	issuer := NewIssuer(codec, 15*time.Minute, 30*24*time.Hour)
	return NewService(store, store, NewAttemptGuard(store), plainCredentials{}, codec, issuer, observability.NewLogger())
}
