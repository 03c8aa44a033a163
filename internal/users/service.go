package users

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/odyssey-erp/odyssey-rbac/internal/rbac"
	"github.com/odyssey-erp/odyssey-rbac/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context) ([]User, error)
}

// Service handles user business logic.
type Service struct {
	repo   RepositoryPort
	rbac   *rbac.Service
	audit  shared.AuditRecorder
	logger *slog.Logger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, store *rbac.Service, audit shared.AuditRecorder, logger *slog.Logger) *Service {
	return &Service{repo: repo, rbac: store, audit: audit, logger: logger}
}

// ListUsers returns all users.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.repo.ListUsers(ctx)
}

// SetRole replaces the user's role, or clears it when roleID is nil.
func (s *Service) SetRole(ctx context.Context, actorID, userID int64, roleID *int64) error {
	action := AuditRoleUnassign
	meta := map[string]any{}
	if roleID == nil {
		if err := s.rbac.UnassignRole(ctx, userID); err != nil {
			return err
		}
	} else {
		if err := s.rbac.AssignRole(ctx, userID, *roleID); err != nil {
			return err
		}
		action = AuditRoleAssign
		meta["role_id"] = *roleID
	}
	if s.audit != nil {
		err := s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   action,
			Entity:   AuditEntityUser,
			EntityID: strconv.FormatInt(userID, 10),
			Meta:     meta,
		})
		if err != nil && s.logger != nil {
			s.logger.Warn("audit role assignment", slog.Any("error", err))
		}
	}
	return nil
}
