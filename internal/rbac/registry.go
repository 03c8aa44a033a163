package rbac

import (
	"context"
	"errors"
	"strings"
)

// CreatePermission registers a catalog entry.
func (s *Service) CreatePermission(ctx context.Context, in PermissionInput) (Permission, error) {
	perm, err := NewPermission(in)
	if err != nil {
		return Permission{}, err
	}
	return s.repo.InsertPermission(ctx, perm)
}

// GetPermission fetches a permission by codename.
func (s *Service) GetPermission(ctx context.Context, codename string) (Permission, error) {
	codename = strings.TrimSpace(codename)
	if !ValidCodename(codename) {
		return Permission{}, validationf("codename %q must have the form resource.action", codename)
	}
	return s.repo.GetPermissionByCodename(ctx, codename)
}

// GetPermissionByID fetches a permission by ID.
func (s *Service) GetPermissionByID(ctx context.Context, id int64) (Permission, error) {
	if id <= 0 {
		return Permission{}, notFound(EntityPermission, "permission %d not found", id)
	}
	return s.repo.GetPermissionByID(ctx, id)
}

// ListPermissions returns the catalog ordered by resource then action.
func (s *Service) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.repo.ListPermissions(ctx)
}

// UpdatePermissionDescription changes the only mutable permission field.
func (s *Service) UpdatePermissionDescription(ctx context.Context, id int64, description string) (Permission, error) {
	return s.repo.UpdatePermissionDescription(ctx, id, strings.TrimSpace(description))
}

// DeletePermission removes a catalog entry that no role holds.
func (s *Service) DeletePermission(ctx context.Context, id int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx Repository) error {
		if _, err := tx.GetPermissionByID(ctx, id); err != nil {
			return err
		}
		n, err := tx.CountPermissionGrants(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return &Error{Kind: KindPermissionInUse, Entity: EntityPermission, Message: "permission is granted to roles"}
		}
		return tx.DeletePermission(ctx, id)
	})
}

// EnsureCatalog registers every input whose resource/action pair is missing.
func (s *Service) EnsureCatalog(ctx context.Context, inputs []PermissionInput) error {
	for _, in := range inputs {
		if _, err := s.CreatePermission(ctx, in); err != nil {
			if errors.Is(err, ErrDuplicateResourceAction) {
				continue
			}
			return err
		}
	}
	return nil
}

// FullCatalog returns one input per resource/action pair.
func FullCatalog() []PermissionInput {
	inputs := make([]PermissionInput, 0, len(resources)*len(actions))
	for _, r := range resources {
		for _, a := range actions {
			inputs = append(inputs, PermissionInput{Resource: r, Action: a})
		}
	}
	return inputs
}
