package rbac

import "context"

// Repository is the persistence port of the role store. Implementations must
// enforce the uniqueness and reference constraints themselves and report them
// with the typed errors of this package; the service never relies on a
// check-then-write sequence for correctness.
type Repository interface {
	// WithTx runs fn inside one transaction; the Repository passed to fn is bound to it.
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error

	InsertPermission(ctx context.Context, p Permission) (Permission, error)
	GetPermissionByID(ctx context.Context, id int64) (Permission, error)
	GetPermissionByCodename(ctx context.Context, codename string) (Permission, error)
	ListPermissions(ctx context.Context) ([]Permission, error)
	UpdatePermissionDescription(ctx context.Context, id int64, description string) (Permission, error)
	DeletePermission(ctx context.Context, id int64) error
	CountPermissionGrants(ctx context.Context, permissionID int64) (int, error)

	InsertRole(ctx context.Context, name, description string) (Role, error)
	GetRole(ctx context.Context, id int64) (Role, error)
	ListRoles(ctx context.Context) ([]Role, error)
	UpdateRole(ctx context.Context, id int64, name, description string) (Role, error)
	DeleteRole(ctx context.Context, id int64) error

	InsertGrant(ctx context.Context, roleID, permissionID int64) (RolePermission, error)
	DeleteGrant(ctx context.Context, roleID, permissionID int64) (bool, error)
	ListGrants(ctx context.Context, roleID int64) ([]RolePermission, error)
	// RoleCodenames returns the role's codenames, or a role NotFound error.
	RoleCodenames(ctx context.Context, roleID int64) ([]string, error)

	SetActorRole(ctx context.Context, actorID int64, roleID *int64) error
	GetActor(ctx context.Context, actorID int64) (Actor, error)
	CountActors(ctx context.Context, roleID int64) (int, error)
}
