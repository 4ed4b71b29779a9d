// ABOUTME: Role enumeration for identities and session claims
// ABOUTME: Closed set of roles with wire names and the legacy "user" alias

package store

import (
	"errors"
	"fmt"
)

// ErrInvalidRole is returned when parsing an unknown role name
var ErrInvalidRole = errors.New("invalid role")

// Role is one of a closed set of authorization roles.
type Role string

const (
	RoleSubmitter       Role = "submitter"
	RoleStaff           Role = "staff"
	RoleDepartmentAdmin Role = "department-admin"
	RoleSuperAdmin      Role = "super-admin"
)

// roleAliases maps legacy wire names to roles.
var roleAliases = map[string]Role{
	"user": RoleSubmitter,
}

// ValidRoles lists all valid roles
var ValidRoles = []Role{
	RoleSubmitter,
	RoleStaff,
	RoleDepartmentAdmin,
	RoleSuperAdmin,
}

// Valid reports whether r is a member of ValidRoles.
func (r Role) Valid() bool {
	for _, v := range ValidRoles {
		if r == v {
			return true
		}
	}
	return false
}

// RequiresDepartment reports whether identities with this role belong to a department.
func (r Role) RequiresDepartment() bool {
	return r == RoleStaff || r == RoleDepartmentAdmin
}

// ParseRole converts a wire name (or alias) into a Role.
func ParseRole(s string) (Role, error) {
	if alias, ok := roleAliases[s]; ok {
		return alias, nil
	}
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
	return r, nil
}
