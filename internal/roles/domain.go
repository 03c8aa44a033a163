package roles

import "github.com/odyssey-erp/odyssey-rbac/internal/rbac"

// Detail is a role with its grants and the number of users holding it.
type Detail struct {
	Role      rbac.Role
	Grants    []rbac.RolePermission
	UserCount int
}

// Audit actions written for role administration.
const (
	AuditRoleCreate = "role.create"
	AuditRoleUpdate = "role.update"
	AuditRoleDelete = "role.delete"
	AuditRoleGrant  = "role.grant"
	AuditRoleRevoke = "role.revoke"
	AuditEntityRole = "role"
)
