package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-rbac/internal/platform/db"
)

// Constraint names declared in migrations/0001_rbac.up.sql.
const (
	constraintRoleName           = "roles_name_key"
	constraintPermissionCodename = "permissions_codename_key"
	constraintResourceAction     = "permissions_resource_action_key"
	constraintGrantUnique        = "role_permissions_role_id_permission_id_key"
	constraintGrantRole          = "role_permissions_role_id_fkey"
	constraintGrantPermission    = "role_permissions_permission_id_fkey"
	constraintUserRole           = "users_role_id_fkey"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

type dbtx interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
	db   dbtx
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool, db: pool}
}

// WithTx runs fn in a transaction.
func (r *PGRepository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	if _, inTx := r.db.(pgx.Tx); inTx {
		return fn(ctx, r)
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &PGRepository{pool: r.pool, db: tx})
	})
}

const permissionColumns = `id, codename, resource, action, description, created_at`

func scanPermission(row pgx.Row) (Permission, error) {
	var p Permission
	var resource, action string
	if err := row.Scan(&p.ID, &p.Codename, &resource, &action, &p.Description, &p.CreatedAt); err != nil {
		return Permission{}, err
	}
	p.Resource = Resource(resource)
	p.Action = Action(action)
	return p, nil
}

// InsertPermission persists a catalog row.
func (r *PGRepository) InsertPermission(ctx context.Context, p Permission) (Permission, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO permissions (codename, resource, action, description)
VALUES ($1, $2, $3, $4)
RETURNING `+permissionColumns, p.Codename, string(p.Resource), string(p.Action), p.Description)
	out, err := scanPermission(row)
	if err != nil {
		return Permission{}, translate(err, "insert permission")
	}
	return out, nil
}

// GetPermissionByID fetches a permission.
func (r *PGRepository) GetPermissionByID(ctx context.Context, id int64) (Permission, error) {
	p, err := scanPermission(r.db.QueryRow(ctx, `SELECT `+permissionColumns+` FROM permissions WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Permission{}, notFound(EntityPermission, "permission %d not found", id)
		}
		return Permission{}, fmt.Errorf("rbac: get permission: %w", err)
	}
	return p, nil
}

// GetPermissionByCodename fetches a permission by codename.
func (r *PGRepository) GetPermissionByCodename(ctx context.Context, codename string) (Permission, error) {
	p, err := scanPermission(r.db.QueryRow(ctx, `SELECT `+permissionColumns+` FROM permissions WHERE codename = $1`, codename))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Permission{}, notFound(EntityPermission, "permission %s not found", codename)
		}
		return Permission{}, fmt.Errorf("rbac: get permission: %w", err)
	}
	return p, nil
}

// ListPermissions returns all permissions ordered by resource then action.
func (r *PGRepository) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := r.db.Query(ctx, `SELECT `+permissionColumns+` FROM permissions ORDER BY resource, action`)
	if err != nil {
		return nil, fmt.Errorf("rbac: list permissions: %w", err)
	}
	defer rows.Close()
	perms := make([]Permission, 0)
	for rows.Next() {
		p, err := scanPermission(rows)
		if err != nil {
			return nil, fmt.Errorf("rbac: scan permission: %w", err)
		}
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rbac: list permissions: %w", err)
	}
	return perms, nil
}

// UpdatePermissionDescription updates the description only.
func (r *PGRepository) UpdatePermissionDescription(ctx context.Context, id int64, description string) (Permission, error) {
	p, err := scanPermission(r.db.QueryRow(ctx, `UPDATE permissions SET description = $2 WHERE id = $1 RETURNING `+permissionColumns, id, description))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Permission{}, notFound(EntityPermission, "permission %d not found", id)
		}
		return Permission{}, fmt.Errorf("rbac: update permission: %w", err)
	}
	return p, nil
}

// DeletePermission removes a permission row.
func (r *PGRepository) DeletePermission(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM permissions WHERE id = $1`, id)
	if err != nil {
		return translate(err, "delete permission")
	}
	if tag.RowsAffected() == 0 {
		return notFound(EntityPermission, "permission %d not found", id)
	}
	return nil
}

// CountPermissionGrants counts roles holding the permission.
func (r *PGRepository) CountPermissionGrants(ctx context.Context, permissionID int64) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM role_permissions WHERE permission_id = $1`, permissionID).Scan(&n); err != nil {
		return 0, fmt.Errorf("rbac: count grants: %w", err)
	}
	return n, nil
}

const roleColumns = `id, name, description, created_at, updated_at`

func scanRole(row pgx.Row) (Role, error) {
	var role Role
	err := row.Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt)
	return role, err
}

// InsertRole persists a new role.
func (r *PGRepository) InsertRole(ctx context.Context, name, description string) (Role, error) {
	role, err := scanRole(r.db.QueryRow(ctx, `INSERT INTO roles (name, description) VALUES ($1, $2) RETURNING `+roleColumns, name, description))
	if err != nil {
		return Role{}, translate(err, "insert role")
	}
	return role, nil
}

// GetRole fetches a role by ID.
func (r *PGRepository) GetRole(ctx context.Context, id int64) (Role, error) {
	role, err := scanRole(r.db.QueryRow(ctx, `SELECT `+roleColumns+` FROM roles WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, notFound(EntityRole, "role %d not found", id)
		}
		return Role{}, fmt.Errorf("rbac: get role: %w", err)
	}
	return role, nil
}

// ListRoles returns all roles ordered by name.
func (r *PGRepository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.db.Query(ctx, `SELECT `+roleColumns+` FROM roles ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("rbac: list roles: %w", err)
	}
	defer rows.Close()
	roles := make([]Role, 0)
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, fmt.Errorf("rbac: scan role: %w", err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rbac: list roles: %w", err)
	}
	return roles, nil
}

// UpdateRole updates name and description.
func (r *PGRepository) UpdateRole(ctx context.Context, id int64, name, description string) (Role, error) {
	role, err := scanRole(r.db.QueryRow(ctx, `UPDATE roles SET name = $2, description = $3, updated_at = NOW()
WHERE id = $1 RETURNING `+roleColumns, id, name, description))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, notFound(EntityRole, "role %d not found", id)
		}
		return Role{}, translate(err, "update role")
	}
	return role, nil
}

// DeleteRole removes a role; its grants cascade.
func (r *PGRepository) DeleteRole(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return translate(err, "delete role")
	}
	if tag.RowsAffected() == 0 {
		return notFound(EntityRole, "role %d not found", id)
	}
	return nil
}

// InsertGrant attaches a permission to a role in a single statement.
func (r *PGRepository) InsertGrant(ctx context.Context, roleID, permissionID int64) (RolePermission, error) {
	grant := RolePermission{RoleID: roleID, PermissionID: permissionID}
	err := r.db.QueryRow(ctx, `INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2)
RETURNING id, created_at`, roleID, permissionID).Scan(&grant.ID, &grant.CreatedAt)
	if err != nil {
		return RolePermission{}, translate(err, "insert grant")
	}
	return grant, nil
}

// DeleteGrant detaches a permission; it reports whether a row was removed.
func (r *PGRepository) DeleteGrant(ctx context.Context, roleID, permissionID int64) (bool, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1 AND permission_id = $2`, roleID, permissionID)
	if err != nil {
		return false, fmt.Errorf("rbac: delete grant: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListGrants returns the role's grants ordered by codename.
func (r *PGRepository) ListGrants(ctx context.Context, roleID int64) ([]RolePermission, error) {
	rows, err := r.db.Query(ctx, `SELECT rp.id, rp.role_id, rp.permission_id, rp.created_at,
       p.id, p.codename, p.resource, p.action, p.description, p.created_at
FROM role_permissions rp
JOIN permissions p ON p.id = rp.permission_id
WHERE rp.role_id = $1
ORDER BY p.codename`, roleID)
	if err != nil {
		return nil, fmt.Errorf("rbac: list grants: %w", err)
	}
	defer rows.Close()
	grants := make([]RolePermission, 0)
	for rows.Next() {
		var g RolePermission
		var resource, action string
		if err := rows.Scan(&g.ID, &g.RoleID, &g.PermissionID, &g.CreatedAt,
			&g.Permission.ID, &g.Permission.Codename, &resource, &action, &g.Permission.Description, &g.Permission.CreatedAt); err != nil {
			return nil, fmt.Errorf("rbac: scan grant: %w", err)
		}
		g.Permission.Resource = Resource(resource)
		g.Permission.Action = Action(action)
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rbac: list grants: %w", err)
	}
	return grants, nil
}

// RoleCodenames reads the role and its codenames in one statement so the
// result is a single committed snapshot.
func (r *PGRepository) RoleCodenames(ctx context.Context, roleID int64) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT p.codename
FROM roles r
LEFT JOIN role_permissions rp ON rp.role_id = r.id
LEFT JOIN permissions p ON p.id = rp.permission_id
WHERE r.id = $1`, roleID)
	if err != nil {
		return nil, fmt.Errorf("rbac: role codenames: %w", err)
	}
	defer rows.Close()
	found := false
	codenames := make([]string, 0)
	for rows.Next() {
		found = true
		var codename *string
		if err := rows.Scan(&codename); err != nil {
			return nil, fmt.Errorf("rbac: scan codename: %w", err)
		}
		if codename != nil {
			codenames = append(codenames, *codename)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rbac: role codenames: %w", err)
	}
	if !found {
		return nil, notFound(EntityRole, "role %d not found", roleID)
	}
	return codenames, nil
}

// SetActorRole replaces (or clears, when roleID is nil) the actor's role.
func (r *PGRepository) SetActorRole(ctx context.Context, actorID int64, roleID *int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET role_id = $2, updated_at = NOW() WHERE id = $1`, actorID, roleID)
	if err != nil {
		return translate(err, "set actor role")
	}
	if tag.RowsAffected() == 0 {
		return notFound(EntityActor, "actor %d not found", actorID)
	}
	return nil
}

// GetActor loads the stored part of an actor snapshot.
func (r *PGRepository) GetActor(ctx context.Context, actorID int64) (Actor, error) {
	actor := Actor{ID: actorID}
	err := r.db.QueryRow(ctx, `SELECT is_active, role_id FROM users WHERE id = $1`, actorID).Scan(&actor.Active, &actor.RoleID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Actor{}, notFound(EntityActor, "actor %d not found", actorID)
		}
		return Actor{}, fmt.Errorf("rbac: get actor: %w", err)
	}
	return actor, nil
}

// CountActors counts users bound to the role.
func (r *PGRepository) CountActors(ctx context.Context, roleID int64) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE role_id = $1`, roleID).Scan(&n); err != nil {
		return 0, fmt.Errorf("rbac: count actors: %w", err)
	}
	return n, nil
}

// translate maps constraint violations onto the typed errors.
func translate(err error, op string) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return fmt.Errorf("rbac: %s: %w", op, err)
	}
	switch pgErr.Code {
	case pgUniqueViolation:
		switch pgErr.ConstraintName {
		case constraintRoleName:
			return &Error{Kind: KindDuplicateName, Entity: EntityRole, Message: "role name already exists"}
		case constraintResourceAction:
			return &Error{Kind: KindDuplicateResourceAction, Entity: EntityPermission, Message: "permission for this resource and action already exists"}
		case constraintPermissionCodename:
			return &Error{Kind: KindDuplicateCodename, Entity: EntityPermission, Message: "permission codename already exists"}
		case constraintGrantUnique:
			return &Error{Kind: KindAlreadyGranted, Entity: EntityGrant, Message: "permission already granted to role"}
		}
	case pgForeignKeyViolation:
		switch pgErr.ConstraintName {
		case constraintGrantRole:
			return notFound(EntityRole, "role not found")
		case constraintGrantPermission:
			if op == "delete permission" {
				return &Error{Kind: KindPermissionInUse, Entity: EntityPermission, Message: "permission is granted to roles"}
			}
			return notFound(EntityPermission, "permission not found")
		case constraintUserRole:
			if op == "delete role" {
				return &Error{Kind: KindRoleInUse, Entity: EntityRole, Message: "role is assigned to actors"}
			}
			return notFound(EntityRole, "role not found")
		}
	}
	return fmt.Errorf("rbac: %s: %w", op, err)
}

var _ Repository = (*PGRepository)(nil)
