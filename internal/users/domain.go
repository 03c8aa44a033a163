package users

import "time"

// User represents a user account for management.
type User struct {
	ID        int64
	Email     string
	Name      string
	IsActive  bool
	RoleID    *int64
	RoleName  string
	LastLogin *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Audit actions written for role assignment.
const (
	AuditRoleAssign   = "user.role_assign"
	AuditRoleUnassign = "user.role_unassign"
	AuditEntityUser   = "user"
)
