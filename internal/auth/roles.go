// ABOUTME: Role scopes and resource access checks for the authorization gate
// ABOUTME: Maps each role to the subset of petitions it may see

package auth

import "github.com/2389/petition-gateway/internal/store"

// Scope describes which resources a role may access.
type Scope string

const (
	ScopeNone       Scope = "none"
	ScopeOwn        Scope = "own"        // resources the identity submitted
	ScopeAssigned   Scope = "assigned"   // resources assigned to the identity
	ScopeDepartment Scope = "department" // every resource in the identity's department
	ScopeAll        Scope = "all"
)

var roleScopes = map[store.Role]Scope{
	store.RoleSubmitter:       ScopeOwn,
	store.RoleStaff:           ScopeAssigned,
	store.RoleDepartmentAdmin: ScopeDepartment,
	store.RoleSuperAdmin:      ScopeAll,
}

// ScopeFor returns the fixed scope of role. Unknown roles get ScopeNone.
func ScopeFor(role store.Role) Scope {
	if scope, ok := roleScopes[role]; ok {
		return scope
	}
	return ScopeNone
}

// Resource is the ownership information of a protected record.
type Resource struct {
	OwnerID      string
	AssigneeID   string
	DepartmentID string
}

// CanAccess reports whether the claims' role scope covers res.
func (c *Claims) CanAccess(res Resource) bool {
	switch ScopeFor(c.Role) {
	case ScopeAll:
		return true
	case ScopeDepartment:
		return c.DepartmentID != nil && *c.DepartmentID != "" && *c.DepartmentID == res.DepartmentID
	case ScopeAssigned:
		return res.AssigneeID != "" && res.AssigneeID == c.Subject
	case ScopeOwn:
		return res.OwnerID != "" && res.OwnerID == c.Subject
	default:
		return false
	}
}

// HasRole reports whether the claims' role is one of roles.
func (c *Claims) HasRole(roles ...store.Role) bool {
	for _, r := range roles {
		if c.Role == r {
			return true
		}
	}
	return false
}
