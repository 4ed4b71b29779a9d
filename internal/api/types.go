// ABOUTME: JSON wire contract shared by the gateway handlers and the HTTP client
// ABOUTME: SRP values travel as lowercase hex strings via srp.Hex

package api

import (
	"time"

	"github.com/2389/petition-gateway/internal/srp"
	"github.com/2389/petition-gateway/internal/store"
)

// Route paths served by the gateway.
const (
	PathHealth         = "/health"
	PathRegister       = "/auth/register"
	PathLoginInit      = "/login/init"
	PathLoginVerify    = "/login/verify"
	PathSession        = "/session"
	PathLogout         = "/logout"
	PathPasswordInit   = "/auth/password/init"
	PathPasswordVerify = "/auth/password/verify"
	PathIdentities     = "/admin/identities"
	PathAudit          = "/admin/audit"
)

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	IdentityID  string  `json:"identityId"`
	DisplayName string  `json:"displayName,omitempty"`
	Salt        srp.Hex `json:"salt"`
	Verifier    srp.Hex `json:"verifier"`
	Group       string  `json:"group,omitempty"`
}

// RegisterResponse is returned with 201 Created.
type RegisterResponse struct {
	IdentityID string     `json:"identityId"`
	Role       store.Role `json:"role"`
}

// InitRequest starts a login or rotation handshake. ClientPublicEphemeral is
// optional at init; when present it must match the value sent at verify.
type InitRequest struct {
	IdentityID            string  `json:"identityId"`
	ClientPublicEphemeral srp.Hex `json:"clientPublicEphemeral,omitempty"`
	Group                 string  `json:"group,omitempty"`
}

// InitResponse carries the server challenge.
type InitResponse struct {
	Salt                  srp.Hex `json:"salt"`
	ServerPublicEphemeral srp.Hex `json:"serverPublicEphemeral"`
	Group                 string  `json:"group"`
}

// VerifyRequest completes a login handshake.
type VerifyRequest struct {
	IdentityID            string  `json:"identityId"`
	ClientPublicEphemeral srp.Hex `json:"clientPublicEphemeral"`
	ClientProof           srp.Hex `json:"clientProof"`
}

// VerifyResponse is returned after a successful login. The token is also set
// as an http-only cookie.
type VerifyResponse struct {
	ServerProof srp.Hex `json:"serverProof"`
	Token       string  `json:"token"`
	Claims      Session `json:"claims"`
}

// Session describes the authenticated identity behind a token.
type Session struct {
	IdentityID   string     `json:"identityId"`
	DisplayName  string     `json:"displayName,omitempty"`
	Role         store.Role `json:"role"`
	DepartmentID *string    `json:"departmentId,omitempty"`
	ExpiresAt    time.Time  `json:"expiresAt"`
}

// RotateVerifyRequest completes a password rotation. The proof authenticates
// the current secret; NewSalt and NewVerifier replace the credential on success.
type RotateVerifyRequest struct {
	IdentityID            string  `json:"identityId"`
	ClientPublicEphemeral srp.Hex `json:"clientPublicEphemeral"`
	ClientProof           srp.Hex `json:"clientProof"`
	NewSalt               srp.Hex `json:"newSalt"`
	NewVerifier           srp.Hex `json:"newVerifier"`
}

// RotateVerifyResponse lets the client authenticate the server.
type RotateVerifyResponse struct {
	ServerProof srp.Hex `json:"serverProof"`
}

// ProvisionRequest is the body of POST /admin/identities.
type ProvisionRequest struct {
	IdentityID   string     `json:"identityId"`
	DisplayName  string     `json:"displayName,omitempty"`
	Role         store.Role `json:"role"`
	DepartmentID *string    `json:"departmentId,omitempty"`
}

// ProvisionResponse is returned once; the temporary secret is not retrievable later.
type ProvisionResponse struct {
	IdentityID      string     `json:"identityId"`
	Role            store.Role `json:"role"`
	DepartmentID    *string    `json:"departmentId,omitempty"`
	TemporarySecret string     `json:"temporarySecret"`
}

// AuditEntry is one security event. Query GET /admin/audit with any of the
// parameters action, actor, target, since, until (RFC 3339) and limit.
type AuditEntry struct {
	ID        string            `json:"id"`
	ActorID   string            `json:"actorId"`
	Action    store.AuditAction `json:"action"`
	TargetID  string            `json:"targetId"`
	Timestamp time.Time         `json:"timestamp"`
	Detail    map[string]any    `json:"detail,omitempty"`
}

// AuditListResponse is the body of GET /admin/audit, newest entry first.
type AuditListResponse struct {
	Entries []AuditEntry `json:"entries"`
}

// ErrorResponse is the body of every non-2xx JSON response. Restart tells
// the client its handshake is gone and it must begin again from init.
type ErrorResponse struct {
	Error   string `json:"error"`
	Restart bool   `json:"restart,omitempty"`
}
