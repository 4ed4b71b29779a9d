// ABOUTME: Audit log of security events: registrations, logins, rotations and administrative changes
// ABOUTME: Append-only; entries record who acted on which identity, never any secret material

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AuditAction represents an auditable action.
type AuditAction string

const (
	AuditRegister        AuditAction = "register"
	AuditLoginSucceeded  AuditAction = "login_succeeded"
	AuditLoginFailed     AuditAction = "login_failed"
	AuditRotateSucceeded AuditAction = "rotate_succeeded"
	AuditRotateFailed    AuditAction = "rotate_failed"
	AuditProvision       AuditAction = "provision_identity"
	AuditDeleteIdentity  AuditAction = "delete_identity"
)

// ValidAuditActions lists all valid audit actions.
var ValidAuditActions = []AuditAction{
	AuditRegister,
	AuditLoginSucceeded,
	AuditLoginFailed,
	AuditRotateSucceeded,
	AuditRotateFailed,
	AuditProvision,
	AuditDeleteIdentity,
}

// Valid reports whether a is a known action.
func (a AuditAction) Valid() bool {
	for _, v := range ValidAuditActions {
		if a == v {
			return true
		}
	}
	return false
}

// AuditEntry represents a single audit log entry.
type AuditEntry struct {
	ID        string         // UUID v4
	ActorID   string         // identity that performed the action; equals TargetID for self-service
	Action    AuditAction    // what happened
	TargetID  string         // identity affected
	Timestamp time.Time      // when it happened
	Detail    map[string]any // additional context (max 64KB JSON)
}

// AuditFilter specifies filtering options for listing audit entries.
type AuditFilter struct {
	Since    *time.Time   // entries at or after this time
	Until    *time.Time   // entries at or before this time
	ActorID  *string      // filter by actor
	Action   *AuditAction // filter by action type
	TargetID *string      // filter by target identity
	Limit    int          // max results (default 100, max 1000)
}

// AuditStore persists the audit log.
type AuditStore interface {
	// AppendAuditLog records e, filling ID and Timestamp when unset.
	AppendAuditLog(ctx context.Context, e *AuditEntry) error

	// ListAuditLog returns matching entries, newest first.
	ListAuditLog(ctx context.Context, f AuditFilter) ([]AuditEntry, error)
}

// maxAuditDetailBytes bounds the encoded detail column.
const maxAuditDetailBytes = 64 << 10

// auditTimeFormat is fixed-width so text timestamps sort chronologically.
const auditTimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// prepareAuditEntry fills defaults and encodes the detail map.
func prepareAuditEntry(e *AuditEntry) (*string, error) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if !e.Action.Valid() {
		return nil, fmt.Errorf("invalid audit action %q", e.Action)
	}

	if e.Detail == nil {
		return nil, nil
	}
	data, err := json.Marshal(e.Detail)
	if err != nil {
		return nil, fmt.Errorf("marshaling audit detail: %w", err)
	}
	if len(data) > maxAuditDetailBytes {
		return nil, fmt.Errorf("audit detail exceeds %d bytes", maxAuditDetailBytes)
	}
	str := string(data)
	return &str, nil
}

// AppendAuditLog appends a new entry to the audit log.
// Generates ID and Timestamp if not set.
func (s *sqlStore) AppendAuditLog(ctx context.Context, e *AuditEntry) error {
	detailJSON, err := prepareAuditEntry(e)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO audit_log (audit_id, actor_id, action, target_id, ts, detail_json)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, s.rebind(query),
		e.ID,
		e.ActorID,
		string(e.Action),
		e.TargetID,
		e.Timestamp.UTC().Format(auditTimeFormat),
		detailJSON,
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}

	s.logger.Debug("appended audit log",
		"id", e.ID,
		"actor", e.ActorID,
		"action", e.Action,
		"target", e.TargetID,
	)
	return nil
}

// normalizeAuditLimit applies default (100) and cap (1000) to audit limit.
func normalizeAuditLimit(limit int) int {
	switch {
	case limit <= 0:
		return 100
	case limit > 1000:
		return 1000
	default:
		return limit
	}
}

// auditWhere builds the WHERE clause and arguments for f.
func auditWhere(f AuditFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if f.Since != nil {
		clauses = append(clauses, "ts >= ?")
		args = append(args, f.Since.UTC().Format(auditTimeFormat))
	}
	if f.Until != nil {
		clauses = append(clauses, "ts <= ?")
		args = append(args, f.Until.UTC().Format(auditTimeFormat))
	}
	if f.ActorID != nil {
		clauses = append(clauses, "actor_id = ?")
		args = append(args, *f.ActorID)
	}
	if f.Action != nil {
		clauses = append(clauses, "action = ?")
		args = append(args, string(*f.Action))
	}
	if f.TargetID != nil {
		clauses = append(clauses, "target_id = ?")
		args = append(args, *f.TargetID)
	}
	if len(clauses) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

// scanAuditEntry scans a row into an AuditEntry.
func scanAuditEntry(scanner interface{ Scan(dest ...any) error }) (AuditEntry, error) {
	var e AuditEntry
	var actionStr, tsStr string
	var detailJSON *string

	if err := scanner.Scan(
		&e.ID,
		&e.ActorID,
		&actionStr,
		&e.TargetID,
		&tsStr,
		&detailJSON,
	); err != nil {
		return e, fmt.Errorf("scanning audit entry: %w", err)
	}

	e.Action = AuditAction(actionStr)
	var err error
	e.Timestamp, err = time.Parse(time.RFC3339Nano, tsStr)
	if err != nil {
		return e, fmt.Errorf("parsing timestamp: %w", err)
	}

	if detailJSON != nil {
		if err := json.Unmarshal([]byte(*detailJSON), &e.Detail); err != nil {
			return e, fmt.Errorf("unmarshaling detail: %w", err)
		}
	}
	return e, nil
}

// ListAuditLog returns audit entries matching the filter criteria.
// Results are returned newest first (DESC by timestamp).
func (s *sqlStore) ListAuditLog(ctx context.Context, f AuditFilter) ([]AuditEntry, error) {
	where, args := auditWhere(f)
	query := `
		SELECT audit_id, actor_id, action, target_id, ts, detail_json
		FROM audit_log
		` + where + `
		ORDER BY ts DESC
		LIMIT ?
	`
	args = append(args, normalizeAuditLimit(f.Limit))

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []AuditEntry
	for rows.Next() {
		e, err := scanAuditEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating audit entries: %w", err)
	}

	if entries == nil {
		entries = []AuditEntry{}
	}
	return entries, nil
}
