// Package auth provides session tokens and the authorization gate for petition-gateway.
//
// # Session Tokens
//
// After a successful SRP handshake the gateway issues an HS256 JWT:
//
//	token, claims, err := tokens.Issue(identity)
//	claims, err := tokens.Verify(token)
//
// Claims include:
//   - Subject: identity ID
//   - Role and optional DepartmentID, copied from the identity at login
//   - jti, iat and exp (default lifetime one hour)
//
// Any signature or format failure is ErrInvalidSignature. A token at or past
// its expiry is ErrExpired. The signing secret must be at least
// MinSecretLength bytes.
//
// # Cookies and Revocation
//
// Browser clients receive the token in an http-only cookie (SetCookie).
// Revoke clears it. When a Denylist is configured, Revoke also records the
// token's jti so Verify rejects it with ErrRevoked until it expires.
//
// # Authorization Gate
//
// HTTP handlers are wrapped with:
//
//	Gate(tokens)                   // 401 without a valid token
//	OptionalGate(tokens)           // attaches claims when present
//	RequireRoles(store.RoleStaff)  // 403 for other roles, after Gate
//
// The bearer Authorization header takes precedence over the cookie. Handlers
// read the identity with ClaimsFromContext and check record access with
// Claims.CanAccess, which applies the role scopes:
//
//   - submitter: own submissions
//   - staff: petitions assigned to them
//   - department-admin: everything in their department
//   - super-admin: everything
package auth
