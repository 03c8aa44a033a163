package rbac

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-rbac/internal/platform/httpx"
)

// PermissionsHandler serves the permission catalog.
type PermissionsHandler struct {
	logger  *slog.Logger
	service *Service
	rbac    Middleware
}

// NewPermissionsHandler builds PermissionsHandler instance.
func NewPermissionsHandler(logger *slog.Logger, service *Service, rbac Middleware) *PermissionsHandler {
	return &PermissionsHandler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers permission routes.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.With(h.rbac.Require(OpPermissionsList)).Get("/", h.listPermissions)
	r.With(h.rbac.Require(OpPermissionsCreate)).Post("/", h.createPermission)
	r.With(h.rbac.Require(OpPermissionsGet)).Get("/{codename}", h.getPermission)
	r.With(h.rbac.Require(OpPermissionsUpdate)).Patch("/{codename}", h.updatePermission)
	r.With(h.rbac.Require(OpPermissionsDelete)).Delete("/{codename}", h.deletePermission)
}

// PermissionResponse is the wire form of a catalog entry.
type PermissionResponse struct {
	ID          int64     `json:"id"`
	Codename    string    `json:"codename"`
	Resource    string    `json:"resource"`
	Action      string    `json:"action"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewPermissionResponse converts a Permission for output.
func NewPermissionResponse(p Permission) PermissionResponse {
	return PermissionResponse{
		ID:          p.ID,
		Codename:    p.Codename,
		Resource:    string(p.Resource),
		Action:      string(p.Action),
		Description: p.Description,
		CreatedAt:   p.CreatedAt,
	}
}

type createPermissionRequest struct {
	Resource    string `json:"resource" validate:"required"`
	Action      string `json:"action" validate:"required"`
	Codename    string `json:"codename" validate:"omitempty,max=100"`
	Description string `json:"description" validate:"max=255"`
}

func (h *PermissionsHandler) listPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.service.ListPermissions(r.Context())
	if err != nil {
		h.fail(w, "list permissions", err)
		return
	}
	out := make([]PermissionResponse, 0, len(perms))
	for _, p := range perms {
		out = append(out, NewPermissionResponse(p))
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"permissions": out})
}

func (h *PermissionsHandler) createPermission(w http.ResponseWriter, r *http.Request) {
	var req createPermissionRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	perm, err := h.service.CreatePermission(r.Context(), PermissionInput{
		Resource:    Resource(req.Resource),
		Action:      Action(req.Action),
		Codename:    req.Codename,
		Description: req.Description,
	})
	if err != nil {
		h.fail(w, "create permission", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, NewPermissionResponse(perm))
}

func (h *PermissionsHandler) getPermission(w http.ResponseWriter, r *http.Request) {
	perm, err := h.service.GetPermission(r.Context(), chi.URLParam(r, "codename"))
	if err != nil {
		h.fail(w, "get permission", err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewPermissionResponse(perm))
}

type updatePermissionRequest struct {
	Description string `json:"description" validate:"max=255"`
}

func (h *PermissionsHandler) updatePermission(w http.ResponseWriter, r *http.Request) {
	var req updatePermissionRequest
	if err := httpx.Bind(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	perm, err := h.service.GetPermission(r.Context(), chi.URLParam(r, "codename"))
	if err != nil {
		h.fail(w, "update permission", err)
		return
	}
	perm, err = h.service.UpdatePermissionDescription(r.Context(), perm.ID, req.Description)
	if err != nil {
		h.fail(w, "update permission", err)
		return
	}
	httpx.JSON(w, http.StatusOK, NewPermissionResponse(perm))
}

func (h *PermissionsHandler) deletePermission(w http.ResponseWriter, r *http.Request) {
	perm, err := h.service.GetPermission(r.Context(), chi.URLParam(r, "codename"))
	if err != nil {
		h.fail(w, "delete permission", err)
		return
	}
	if err := h.service.DeletePermission(r.Context(), perm.ID); err != nil {
		h.fail(w, "delete permission", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *PermissionsHandler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
