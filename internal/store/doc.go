// Package store provides credential and identity persistence for the gateway.
//
// # Architecture
//
// Three narrow interfaces are combined into Store:
//
//   - CredentialStore: salt/verifier records keyed by identity ID
//   - IdentityStore: accounts with role and department
//   - AuditStore: append-only log of registrations, logins, rotations and admin changes
//
// SQLiteStore and PostgresStore share one database/sql implementation that
// differs only in placeholder syntax and unique-violation detection.
// MockStore is an in-memory implementation for tests.
//
// # Data Models
//
//   - Credential: salt, verifier and SRP group name. The plaintext secret
//     is never stored.
//   - Identity: display name, Role and optional department.
//   - AuditEntry: actor, action, target identity and a small JSON detail map.
//
// # Backends
//
// SQLite uses WAL mode and foreign keys, with either the pure Go driver
// ("sqlite", modernc.org/sqlite) or the cgo driver ("sqlite3",
// github.com/mattn/go-sqlite3):
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// Postgres uses the pgx stdlib driver. Its schema lives in migrations/ and is
// applied with goose on startup.
//
// # Error Handling
//
//   - ErrNotFound: requested identity or credential does not exist
//   - ErrDuplicateIdentity: identity or credential already exists
//
// All methods accept context.Context for cancellation support.
package store
