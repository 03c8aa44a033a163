package rbac

import (
	"fmt"
	"sort"
	"strings"
)

// Operation identifies a protected boundary operation.
type Operation string

// Operations exposed by the administration surface.
const (
	OpRolesList         Operation = "roles.list"
	OpRolesCreate       Operation = "roles.create"
	OpRolesDetail       Operation = "roles.detail"
	OpRolesUpdate       Operation = "roles.update"
	OpRolesDelete       Operation = "roles.delete"
	OpRolesGrant        Operation = "roles.grant"
	OpRolesRevoke       Operation = "roles.revoke"
	OpPermissionsList   Operation = "permissions.list"
	OpPermissionsCreate Operation = "permissions.create"
	OpPermissionsGet    Operation = "permissions.get"
	OpPermissionsUpdate Operation = "permissions.update"
	OpPermissionsDelete Operation = "permissions.delete"
	OpUsersList         Operation = "users.list"
	OpUsersAssignRole   Operation = "users.assign_role"
	OpJobsHealth        Operation = "jobs.health"
)

// Codenames required by the administration surface.
const (
	PermPermissionManage = "permission.manage"
	PermUserRead         = "user.read"
)

// OperationTable maps each operation to its single required codename.
type OperationTable struct {
	required map[Operation]string
}

// NewOperationTable validates the mapping once; later lookups cannot fail on format.
func NewOperationTable(mapping map[Operation]string) (*OperationTable, error) {
	required := make(map[Operation]string, len(mapping))
	var problems []string
	for op, codename := range mapping {
		codename = strings.TrimSpace(codename)
		if strings.TrimSpace(string(op)) == "" {
			problems = append(problems, "empty operation id")
			continue
		}
		if !ValidCodename(codename) {
			problems = append(problems, fmt.Sprintf("%s: invalid codename %q", op, codename))
			continue
		}
		required[op] = codename
	}
	if len(problems) > 0 {
		sort.Strings(problems)
		return nil, validationf("operation table: %s", strings.Join(problems, "; "))
	}
	return &OperationTable{required: required}, nil
}

// DefaultOperations is the requirement table of the administration surface.
func DefaultOperations() map[Operation]string {
	return map[Operation]string{
		OpRolesList:         PermPermissionManage,
		OpRolesCreate:       PermPermissionManage,
		OpRolesDetail:       PermPermissionManage,
		OpRolesUpdate:       PermPermissionManage,
		OpRolesDelete:       PermPermissionManage,
		OpRolesGrant:        PermPermissionManage,
		OpRolesRevoke:       PermPermissionManage,
		OpPermissionsList:   PermPermissionManage,
		OpPermissionsCreate: PermPermissionManage,
		OpPermissionsGet:    PermPermissionManage,
		OpPermissionsUpdate: PermPermissionManage,
		OpPermissionsDelete: PermPermissionManage,
		OpUsersList:         PermUserRead,
		OpUsersAssignRole:   PermPermissionManage,
		OpJobsHealth:        PermPermissionManage,
	}
}

// Required returns the codename for op.
func (t *OperationTable) Required(op Operation) (string, bool) {
	if t == nil {
		return "", false
	}
	codename, ok := t.required[op]
	return codename, ok
}

// Operations lists the known operations in lexical order.
func (t *OperationTable) Operations() []Operation {
	ops := make([]Operation, 0, len(t.required))
	for op := range t.required {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })
	return ops
}
