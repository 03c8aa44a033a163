package roles

import (
	"context"
	"log/slog"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/odyssey-rbac/internal/rbac"
	"github.com/odyssey-erp/odyssey-rbac/internal/shared"
)

// Service handles role administration on top of the rbac role store.
// Every successful mutation leaves an audit record.
type Service struct {
	rbac   *rbac.Service
	audit  shared.AuditRecorder
	logger *slog.Logger
}

// NewService builds Service instance.
func NewService(store *rbac.Service, audit shared.AuditRecorder, logger *slog.Logger) *Service {
	return &Service{rbac: store, audit: audit, logger: logger}
}

// ListRoles returns all roles ordered by name.
func (s *Service) ListRoles(ctx context.Context) ([]rbac.Role, error) {
	return s.rbac.ListRoles(ctx)
}

// Detail loads a role with its grants and user count.
func (s *Service) Detail(ctx context.Context, id int64) (Detail, error) {
	role, err := s.rbac.GetRole(ctx, id)
	if err != nil {
		return Detail{}, err
	}
	detail := Detail{Role: role}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		grants, err := s.rbac.RoleGrants(gctx, id)
		if err != nil {
			return err
		}
		detail.Grants = grants
		return nil
	})
	g.Go(func() error {
		n, err := s.rbac.CountActors(gctx, id)
		if err != nil {
			return err
		}
		detail.UserCount = n
		return nil
	})
	if err := g.Wait(); err != nil {
		return Detail{}, err
	}
	return detail, nil
}

// CreateRole inserts a new role.
func (s *Service) CreateRole(ctx context.Context, actorID int64, name, description string) (rbac.Role, error) {
	role, err := s.rbac.CreateRole(ctx, name, description)
	if err != nil {
		return rbac.Role{}, err
	}
	s.record(ctx, actorID, AuditRoleCreate, role.ID, map[string]any{"name": role.Name})
	return role, nil
}

// UpdateRole renames or re-describes a role.
func (s *Service) UpdateRole(ctx context.Context, actorID, id int64, name, description string) (rbac.Role, error) {
	role, err := s.rbac.UpdateRole(ctx, id, name, description)
	if err != nil {
		return rbac.Role{}, err
	}
	s.record(ctx, actorID, AuditRoleUpdate, role.ID, map[string]any{"name": role.Name})
	return role, nil
}

// DeleteRole removes an unassigned role.
func (s *Service) DeleteRole(ctx context.Context, actorID, id int64) error {
	if err := s.rbac.DeleteRole(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actorID, AuditRoleDelete, id, nil)
	return nil
}

// Grant attaches a permission to a role.
func (s *Service) Grant(ctx context.Context, actorID, roleID, permissionID int64) (rbac.RolePermission, error) {
	grant, err := s.rbac.GrantPermission(ctx, roleID, permissionID)
	if err != nil {
		return rbac.RolePermission{}, err
	}
	s.record(ctx, actorID, AuditRoleGrant, roleID, map[string]any{"permission": grant.Permission.Codename})
	return grant, nil
}

// Revoke detaches a permission from a role.
func (s *Service) Revoke(ctx context.Context, actorID, roleID, permissionID int64) error {
	if err := s.rbac.RevokePermission(ctx, roleID, permissionID); err != nil {
		return err
	}
	s.record(ctx, actorID, AuditRoleRevoke, roleID, map[string]any{"permission_id": permissionID})
	return nil
}

// The mutation has committed; a failed audit write is logged, not returned.
func (s *Service) record(ctx context.Context, actorID int64, action string, roleID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   AuditEntityRole,
		EntityID: strconv.FormatInt(roleID, 10),
		Meta:     meta,
	})
	if err != nil && s.logger != nil {
		s.logger.Warn("audit role change", slog.String("action", action), slog.Any("error", err))
	}
}
