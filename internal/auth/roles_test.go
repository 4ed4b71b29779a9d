// ABOUTME: Tests for role scopes and resource access decisions
// ABOUTME: One table per role against owned, assigned and department resources

package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/2389/petition-gateway/internal/store"
)

func claimsFor(id string, role store.Role, dept string) *Claims {
	c := &Claims{Role: role}
	c.Subject = id
	if dept != "" {
		c.DepartmentID = &dept
	}
	return c
}

func TestScopeFor(t *testing.T) {
	assert.Equal(t, ScopeOwn, ScopeFor(store.RoleSubmitter))
	assert.Equal(t, ScopeAssigned, ScopeFor(store.RoleStaff))
	assert.Equal(t, ScopeDepartment, ScopeFor(store.RoleDepartmentAdmin))
	assert.Equal(t, ScopeAll, ScopeFor(store.RoleSuperAdmin))
	assert.Equal(t, ScopeNone, ScopeFor(store.Role("janitor")))
}

func TestClaims_CanAccess(t *testing.T) {
	petition := Resource{OwnerID: "u1", AssigneeID: "s1", DepartmentID: "roads"}
	unassigned := Resource{OwnerID: "u1", DepartmentID: "roads"}

	tests := []struct {
		name   string
		claims *Claims
		res    Resource
		want   bool
	}{
		{"submitter own", claimsFor("u1", store.RoleSubmitter, ""), petition, true},
		{"submitter other", claimsFor("u2", store.RoleSubmitter, ""), petition, false},
		{"staff assigned", claimsFor("s1", store.RoleStaff, "roads"), petition, true},
		{"staff same dept unassigned", claimsFor("s1", store.RoleStaff, "roads"), unassigned, false},
		{"staff other", claimsFor("s2", store.RoleStaff, "roads"), petition, false},
		{"dept admin same dept", claimsFor("d1", store.RoleDepartmentAdmin, "roads"), unassigned, true},
		{"dept admin other dept", claimsFor("d1", store.RoleDepartmentAdmin, "parks"), petition, false},
		{"dept admin without dept", claimsFor("d1", store.RoleDepartmentAdmin, ""), Resource{}, false},
		{"super admin", claimsFor("a1", store.RoleSuperAdmin, ""), petition, true},
		{"unknown role", claimsFor("u1", store.Role("janitor"), ""), petition, false},
		{"submitter empty owner", claimsFor("", store.RoleSubmitter, ""), Resource{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.claims.CanAccess(tt.res))
		})
	}
}

func TestClaims_HasRole(t *testing.T) {
	c := claimsFor("u1", store.RoleStaff, "roads")
	assert.True(t, c.HasRole(store.RoleStaff))
	assert.True(t, c.HasRole(store.RoleSuperAdmin, store.RoleStaff))
	assert.False(t, c.HasRole(store.RoleSuperAdmin))
	assert.False(t, c.HasRole())
}

func TestDenylist(t *testing.T) {
	d := NewDenylist(2, 0)

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	d.Add("a", base.Add(time.Second))
	d.Add("", base.Add(time.Second))
	assert.Equal(t, 1, d.Len())
	assert.True(t, d.Contains("a", base))
	assert.False(t, d.Contains("a", base.Add(time.Second)), "revocation ends with the token's expiry")
	assert.False(t, d.Contains("b", base))

	d.Add("b", base.Add(time.Second))
	d.Add("c", base.Add(time.Second))
	assert.Equal(t, 2, d.Len())
	assert.False(t, d.Contains("a", base), "oldest revocation evicted at capacity")
}
