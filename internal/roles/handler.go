package roles

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-rbac/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-rbac/internal/rbac"
)

// Handler manages role management endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers role routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.Require(rbac.OpRolesList)).Get("/", h.listRoles)
	r.With(h.rbac.Require(rbac.OpRolesCreate)).Post("/", h.createRole)
	r.Route("/{id}", func(r chi.Router) {
		r.With(h.rbac.Require(rbac.OpRolesDetail)).Get("/", h.showRole)
		r.With(h.rbac.Require(rbac.OpRolesUpdate)).Patch("/", h.updateRole)
		r.With(h.rbac.Require(rbac.OpRolesDelete)).Delete("/", h.deleteRole)
		r.With(h.rbac.Require(rbac.OpRolesGrant)).Post("/permissions", h.grantPermission)
		r.With(h.rbac.Require(rbac.OpRolesRevoke)).Delete("/permissions/{permissionID}", h.revokePermission)
	})
}

type roleRequest struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=1000"`
}

type grantRequest struct {
	PermissionID int64 `json:"permission_id" validate:"required,gt=0"`
}

type roleResponse struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type grantResponse struct {
	rbac.PermissionResponse
	GrantedAt time.Time `json:"granted_at"`
}

type detailResponse struct {
	roleResponse
	Permissions []grantResponse `json:"permissions"`
	UserCount   int             `json:"user_count"`
}

func newRoleResponse(role rbac.Role) roleResponse {
	return roleResponse{ID: role.ID, Name: role.Name, Description: role.Description, CreatedAt: role.CreatedAt, UpdatedAt: role.UpdatedAt}
}

func newGrantResponse(g rbac.RolePermission) grantResponse {
	return grantResponse{PermissionResponse: rbac.NewPermissionResponse(g.Permission), GrantedAt: g.CreatedAt}
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListRoles(r.Context())
	if err != nil {
		h.fail(w, "list roles", err)
		return
	}
	out := make([]roleResponse, 0, len(roles))
	for _, role := range roles {
		out = append(out, newRoleResponse(role))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": out})
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	role, err := h.service.CreateRole(r.Context(), actorID(r), req.Name, req.Description)
	if err != nil {
		h.fail(w, "create role", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, newRoleResponse(role))
}

func (h *Handler) showRole(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	detail, err := h.service.Detail(r.Context(), id)
	if err != nil {
		h.fail(w, "role detail", err)
		return
	}
	resp := detailResponse{
		roleResponse: newRoleResponse(detail.Role),
		Permissions:  make([]grantResponse, 0, len(detail.Grants)),
		UserCount:    detail.UserCount,
	}
	for _, g := range detail.Grants {
		resp.Permissions = append(resp.Permissions, newGrantResponse(g))
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req roleRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	role, err := h.service.UpdateRole(r.Context(), actorID(r), id, req.Name, req.Description)
	if err != nil {
		h.fail(w, "update role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, newRoleResponse(role))
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteRole(r.Context(), actorID(r), id); err != nil {
		h.fail(w, "delete role", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) grantPermission(w http.ResponseWriter, r *http.Request) {
	roleID, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req grantRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	grant, err := h.service.Grant(r.Context(), actorID(r), roleID, req.PermissionID)
	if err != nil {
		h.fail(w, "grant permission", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, newGrantResponse(grant))
}

func (h *Handler) revokePermission(w http.ResponseWriter, r *http.Request) {
	roleID, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	permissionID, err := httpx.IDParam(r, "permissionID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Revoke(r.Context(), actorID(r), roleID, permissionID); err != nil {
		h.fail(w, "revoke permission", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"role_id": roleID, "permission_id": permissionID, "revoked": true})
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func actorID(r *http.Request) int64 {
	return rbac.ActorFromContext(r.Context()).ID
}
