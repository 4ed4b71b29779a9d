// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu          sync.RWMutex
	identities  map[string]*Identity   // keyed by identity ID
	credentials map[string]*Credential // keyed by identity ID
	audit       []AuditEntry           // append order

	// GetCredentialErr, when set, is returned by GetCredential.
	GetCredentialErr error
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		identities:  make(map[string]*Identity),
		credentials: make(map[string]*Credential),
	}
}

// PutCredential stores a new credential.
func (m *MockStore) PutCredential(ctx context.Context, cred *Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.credentials[cred.IdentityID]; ok {
		return ErrDuplicateIdentity
	}
	m.credentials[cred.IdentityID] = copyCredential(cred)
	return nil
}

// GetCredential retrieves a credential by identity ID.
func (m *MockStore) GetCredential(ctx context.Context, identityID string) (*Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.GetCredentialErr != nil {
		return nil, m.GetCredentialErr
	}
	c, ok := m.credentials[identityID]
	if !ok {
		return nil, ErrNotFound
	}
	return copyCredential(c), nil
}

// ReplaceCredential swaps an existing credential.
func (m *MockStore) ReplaceCredential(ctx context.Context, cred *Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.credentials[cred.IdentityID]; !ok {
		return ErrNotFound
	}
	m.credentials[cred.IdentityID] = copyCredential(cred)
	return nil
}

// CreateIdentity stores an identity and its credential together.
func (m *MockStore) CreateIdentity(ctx context.Context, identity *Identity, cred *Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if identity.ID != cred.IdentityID {
		return fmt.Errorf("credential belongs to %q, not %q", cred.IdentityID, identity.ID)
	}
	if _, ok := m.identities[identity.ID]; ok {
		return ErrDuplicateIdentity
	}
	if _, ok := m.credentials[identity.ID]; ok {
		return ErrDuplicateIdentity
	}

	i := *identity
	if i.CreatedAt.IsZero() {
		i.CreatedAt = time.Now().UTC()
	}
	m.identities[i.ID] = &i
	m.credentials[i.ID] = copyCredential(cred)
	return nil
}

// GetIdentity retrieves an identity by ID.
func (m *MockStore) GetIdentity(ctx context.Context, id string) (*Identity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	i, ok := m.identities[id]
	if !ok {
		return nil, ErrNotFound
	}

	// Return a copy
	result := *i
	return &result, nil
}

// DeleteIdentity removes an identity and its credential.
func (m *MockStore) DeleteIdentity(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, hasIdentity := m.identities[id]
	_, hasCredential := m.credentials[id]
	if !hasIdentity && !hasCredential {
		return ErrNotFound
	}
	delete(m.identities, id)
	delete(m.credentials, id)
	return nil
}

// AppendAuditLog records an audit entry.
func (m *MockStore) AppendAuditLog(ctx context.Context, e *AuditEntry) error {
	if _, err := prepareAuditEntry(e); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = append(m.audit, *e)
	return nil
}

// ListAuditLog returns matching entries, newest first.
func (m *MockStore) ListAuditLog(ctx context.Context, f AuditFilter) ([]AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	limit := normalizeAuditLimit(f.Limit)
	entries := []AuditEntry{}
	for i := len(m.audit) - 1; i >= 0 && len(entries) < limit; i-- {
		e := m.audit[i]
		switch {
		case f.Since != nil && e.Timestamp.Before(*f.Since),
			f.Until != nil && e.Timestamp.After(*f.Until),
			f.ActorID != nil && e.ActorID != *f.ActorID,
			f.Action != nil && e.Action != *f.Action,
			f.TargetID != nil && e.TargetID != *f.TargetID:
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// Close is a no-op for the mock store.
func (m *MockStore) Close() error {
	return nil
}

func copyCredential(c *Credential) *Credential {
	cp := *c
	cp.Salt = append([]byte(nil), c.Salt...)
	cp.Verifier = append([]byte(nil), c.Verifier...)
	if cp.UpdatedAt.IsZero() {
		cp.UpdatedAt = time.Now().UTC()
	}
	return &cp
}

// Ensure MockStore implements Store
var _ Store = (*MockStore)(nil)
