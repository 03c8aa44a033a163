package rbac

import (
	"context"
	"errors"
	"strings"
)

// Service orchestrates RBAC operations over a Repository.
type Service struct {
	repo Repository
}

// NewService constructs a Service backed by the provided repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// ListRoles returns all roles ordered by name.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// GetRole fetches a role by ID.
func (s *Service) GetRole(ctx context.Context, id int64) (Role, error) {
	if id <= 0 {
		return Role{}, notFound(EntityRole, "role %d not found", id)
	}
	return s.repo.GetRole(ctx, id)
}

// CreateRole inserts a new role.
func (s *Service) CreateRole(ctx context.Context, name, description string) (Role, error) {
	name, err := normalizeRoleName(name)
	if err != nil {
		return Role{}, err
	}
	return s.repo.InsertRole(ctx, name, strings.TrimSpace(description))
}

// UpdateRole renames or re-describes an existing role.
func (s *Service) UpdateRole(ctx context.Context, id int64, name, description string) (Role, error) {
	name, err := normalizeRoleName(name)
	if err != nil {
		return Role{}, err
	}
	return s.repo.UpdateRole(ctx, id, name, strings.TrimSpace(description))
}

// DeleteRole removes a role and its grants. Deletion is refused with
// ErrRoleInUse while any actor is bound to the role.
func (s *Service) DeleteRole(ctx context.Context, id int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		if _, err := tx.GetRole(ctx, id); err != nil {
			return err
		}
		n, err := tx.CountActors(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return &Error{Kind: KindRoleInUse, Entity: EntityRole, Message: "role is assigned to actors"}
		}
		return tx.DeleteRole(ctx, id)
	})
}

// GrantPermission attaches a permission to a role. A second grant of the same
// pair fails with ErrAlreadyGranted; the store's uniqueness constraint decides.
func (s *Service) GrantPermission(ctx context.Context, roleID, permissionID int64) (RolePermission, error) {
	var grant RolePermission
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		if _, err := tx.GetRole(ctx, roleID); err != nil {
			return err
		}
		perm, err := tx.GetPermissionByID(ctx, permissionID)
		if err != nil {
			return err
		}
		grant, err = tx.InsertGrant(ctx, roleID, permissionID)
		if err != nil {
			return err
		}
		grant.Permission = perm
		return nil
	})
	if err != nil {
		return RolePermission{}, err
	}
	return grant, nil
}

// RevokePermission detaches a permission from a role. A missing role,
// permission or grant is reported as NotFound.
func (s *Service) RevokePermission(ctx context.Context, roleID, permissionID int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		if _, err := tx.GetRole(ctx, roleID); err != nil {
			return err
		}
		perm, err := tx.GetPermissionByID(ctx, permissionID)
		if err != nil {
			return err
		}
		deleted, err := tx.DeleteGrant(ctx, roleID, permissionID)
		if err != nil {
			return err
		}
		if !deleted {
			return notFound(EntityGrant, "permission %s is not granted to role %d", perm.Codename, roleID)
		}
		return nil
	})
}

// PermissionsOf returns the codenames currently granted to the role.
func (s *Service) PermissionsOf(ctx context.Context, roleID int64) (PermissionSet, error) {
	codenames, err := s.repo.RoleCodenames(ctx, roleID)
	if err != nil {
		return nil, err
	}
	return NewPermissionSet(codenames...), nil
}

// RoleGrants lists the role's grants with permission details.
func (s *Service) RoleGrants(ctx context.Context, roleID int64) ([]RolePermission, error) {
	if _, err := s.repo.GetRole(ctx, roleID); err != nil {
		return nil, err
	}
	return s.repo.ListGrants(ctx, roleID)
}

// IsNotFound reports whether err is any not-found failure.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
