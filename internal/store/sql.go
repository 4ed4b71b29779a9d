// ABOUTME: database/sql implementation of credential and identity queries shared by SQLite and Postgres
// ABOUTME: Dialects differ only in placeholder syntax and unique-violation detection

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// dialect captures the differences between SQL backends.
type dialect struct {
	name string

	// numbered placeholders ($1, $2) instead of ?
	numbered bool

	// isUniqueViolation reports whether err is a unique/primary key conflict.
	isUniqueViolation func(err error) bool
}

// sqlStore implements Store on top of database/sql.
type sqlStore struct {
	db      *sql.DB
	dialect dialect
	logger  *slog.Logger
}

// rebind rewrites ? placeholders for dialects that number them.
func (s *sqlStore) rebind(query string) string {
	if !s.dialect.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Close closes the database connection
func (s *sqlStore) Close() error {
	s.logger.Info("closing store", "dialect", s.dialect.name)
	return s.db.Close()
}

// PutCredential stores a new credential.
// Returns ErrDuplicateIdentity if the identity already has one.
func (s *sqlStore) PutCredential(ctx context.Context, cred *Credential) error {
	if err := s.insertCredential(ctx, s.db, cred); err != nil {
		return err
	}
	s.logger.Debug("stored credential", "identity_id", cred.IdentityID, "group", cred.Group)
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *sqlStore) insertCredential(ctx context.Context, db execer, cred *Credential) error {
	query := `
		INSERT INTO credentials (identity_id, salt, verifier, srp_group, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := db.ExecContext(ctx, s.rebind(query),
		cred.IdentityID,
		cred.Salt,
		cred.Verifier,
		cred.Group,
		formatTime(cred.UpdatedAt),
	)
	if err != nil {
		if s.dialect.isUniqueViolation(err) {
			return ErrDuplicateIdentity
		}
		return fmt.Errorf("inserting credential: %w", err)
	}
	return nil
}

// GetCredential retrieves the credential for an identity.
// Returns ErrNotFound if none exists.
func (s *sqlStore) GetCredential(ctx context.Context, identityID string) (*Credential, error) {
	query := `
		SELECT identity_id, salt, verifier, srp_group, updated_at
		FROM credentials
		WHERE identity_id = ?
	`

	var cred Credential
	var updatedAtStr string

	err := s.db.QueryRowContext(ctx, s.rebind(query), identityID).Scan(
		&cred.IdentityID,
		&cred.Salt,
		&cred.Verifier,
		&cred.Group,
		&updatedAtStr,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying credential: %w", err)
	}

	cred.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &cred, nil
}

// ReplaceCredential swaps salt, verifier and group in a single statement.
// Returns ErrNotFound if the identity has no credential.
func (s *sqlStore) ReplaceCredential(ctx context.Context, cred *Credential) error {
	query := `
		UPDATE credentials
		SET salt = ?, verifier = ?, srp_group = ?, updated_at = ?
		WHERE identity_id = ?
	`

	result, err := s.db.ExecContext(ctx, s.rebind(query),
		cred.Salt,
		cred.Verifier,
		cred.Group,
		formatTime(cred.UpdatedAt),
		cred.IdentityID,
	)
	if err != nil {
		return fmt.Errorf("updating credential: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}

	s.logger.Debug("replaced credential", "identity_id", cred.IdentityID, "group", cred.Group)
	return nil
}

// CreateIdentity inserts an identity and its credential in one transaction.
// Returns ErrDuplicateIdentity if either already exists.
func (s *sqlStore) CreateIdentity(ctx context.Context, identity *Identity, cred *Credential) error {
	if identity.ID != cred.IdentityID {
		return fmt.Errorf("credential belongs to %q, not %q", cred.IdentityID, identity.ID)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		INSERT INTO identities (id, display_name, role, department_id, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err = tx.ExecContext(ctx, s.rebind(query),
		identity.ID,
		identity.DisplayName,
		string(identity.Role),
		nullableString(identity.DepartmentID),
		formatTime(identity.CreatedAt),
	)
	if err != nil {
		if s.dialect.isUniqueViolation(err) {
			return ErrDuplicateIdentity
		}
		return fmt.Errorf("inserting identity: %w", err)
	}

	if err := s.insertCredential(ctx, tx, cred); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing identity: %w", err)
	}

	s.logger.Debug("created identity", "identity_id", identity.ID, "role", identity.Role)
	return nil
}

// GetIdentity retrieves an identity by ID.
// Returns ErrNotFound if it doesn't exist.
func (s *sqlStore) GetIdentity(ctx context.Context, id string) (*Identity, error) {
	query := `
		SELECT id, display_name, role, department_id, created_at
		FROM identities
		WHERE id = ?
	`

	var identity Identity
	var role, createdAtStr string
	var departmentID sql.NullString

	err := s.db.QueryRowContext(ctx, s.rebind(query), id).Scan(
		&identity.ID,
		&identity.DisplayName,
		&role,
		&departmentID,
		&createdAtStr,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying identity: %w", err)
	}

	identity.Role, err = ParseRole(role)
	if err != nil {
		return nil, fmt.Errorf("parsing role: %w", err)
	}
	if departmentID.Valid {
		identity.DepartmentID = &departmentID.String
	}
	identity.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	return &identity, nil
}

// DeleteIdentity removes an identity together with its credential.
// Returns ErrNotFound if neither exists.
func (s *sqlStore) DeleteIdentity(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	credResult, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM credentials WHERE identity_id = ?`), id)
	if err != nil {
		return fmt.Errorf("deleting credential: %w", err)
	}
	identityResult, err := tx.ExecContext(ctx, s.rebind(`DELETE FROM identities WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("deleting identity: %w", err)
	}

	credRows, err := credResult.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	identityRows, err := identityResult.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if credRows == 0 && identityRows == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing delete: %w", err)
	}

	s.logger.Debug("deleted identity", "identity_id", id)
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339)
}

// nullableString converts an optional string to a value that stores as NULL when absent.
func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
