// ABOUTME: Store interfaces and data types for credential and identity persistence
// ABOUTME: Defines Credential, Identity and the Store interface implemented by SQLite, Postgres and the mock

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicateIdentity is returned when creating an identity or credential that already exists
var ErrDuplicateIdentity = errors.New("identity already exists")

// Credential is the verifier material for one identity. The plaintext secret
// is never part of it.
type Credential struct {
	IdentityID string
	Salt       []byte
	Verifier   []byte
	Group      string // SRP group the verifier was derived under
	UpdatedAt  time.Time
}

// Identity is an account whose role and department are copied into session claims.
type Identity struct {
	ID           string
	DisplayName  string
	Role         Role
	DepartmentID *string // nil for roles without a department
	CreatedAt    time.Time
}

// CredentialStore persists credentials keyed by identity ID.
type CredentialStore interface {
	// PutCredential stores a new credential. Returns ErrDuplicateIdentity if
	// the identity already has one.
	PutCredential(ctx context.Context, cred *Credential) error

	// GetCredential returns the credential for identityID or ErrNotFound.
	GetCredential(ctx context.Context, identityID string) (*Credential, error)

	// ReplaceCredential atomically swaps salt, verifier and group.
	// Returns ErrNotFound if the identity has no credential.
	ReplaceCredential(ctx context.Context, cred *Credential) error
}

// IdentityStore persists identities.
type IdentityStore interface {
	// CreateIdentity inserts the identity and its credential in one transaction.
	CreateIdentity(ctx context.Context, identity *Identity, cred *Credential) error

	// GetIdentity returns the identity or ErrNotFound.
	GetIdentity(ctx context.Context, id string) (*Identity, error)

	// DeleteIdentity removes the identity and its credential.
	DeleteIdentity(ctx context.Context, id string) error
}

// Store combines all persistence operations.
type Store interface {
	CredentialStore
	IdentityStore
	AuditStore
	Close() error
}
