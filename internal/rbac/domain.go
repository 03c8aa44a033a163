package rbac

import (
	"regexp"
	"sort"
	"strings"
	"time"
)

// Resource identifies the kind of object a permission applies to.
type Resource string

// Supported resources. Adding a value is a schema change (see migrations).
const (
	ResourceArticle    Resource = "article"
	ResourceProduct    Resource = "product"
	ResourceUser       Resource = "user"
	ResourceOrder      Resource = "order"
	ResourceCategory   Resource = "category"
	ResourcePermission Resource = "permission"
)

// Action identifies what may be done to a resource.
type Action string

// Supported actions.
const (
	ActionCreate  Action = "create"
	ActionRead    Action = "read"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
	ActionPublish Action = "publish"
	ActionApprove Action = "approve"
	ActionManage  Action = "manage"
)

var resources = []Resource{
	ResourceArticle,
	ResourceProduct,
	ResourceUser,
	ResourceOrder,
	ResourceCategory,
	ResourcePermission,
}

var actions = []Action{
	ActionCreate,
	ActionRead,
	ActionUpdate,
	ActionDelete,
	ActionPublish,
	ActionApprove,
	ActionManage,
}

// Resources returns the fixed resource enumeration.
func Resources() []Resource {
	out := make([]Resource, len(resources))
	copy(out, resources)
	return out
}

// Actions returns the fixed action enumeration.
func Actions() []Action {
	out := make([]Action, len(actions))
	copy(out, actions)
	return out
}

// Valid reports whether r belongs to the enumeration.
func (r Resource) Valid() bool {
	for _, candidate := range resources {
		if candidate == r {
			return true
		}
	}
	return false
}

// Valid reports whether a belongs to the enumeration.
func (a Action) Valid() bool {
	for _, candidate := range actions {
		if candidate == a {
			return true
		}
	}
	return false
}

var codenamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*\.[a-z][a-z0-9_]*$`)

// DeriveCodename returns the canonical codename for a resource/action pair.
func DeriveCodename(resource Resource, action Action) string {
	return string(resource) + "." + string(action)
}

// ValidCodename reports whether codename has the `resource.action` shape.
func ValidCodename(codename string) bool {
	return codenamePattern.MatchString(codename)
}

// Permission is an immutable catalog entry. Only Description may change.
type Permission struct {
	ID          int64
	Codename    string
	Resource    Resource
	Action      Action
	Description string
	CreatedAt   time.Time
}

// PermissionInput carries the fields accepted when registering a permission.
type PermissionInput struct {
	Resource    Resource
	Action      Action
	Codename    string
	Description string
}

// NewPermission validates the input and builds an unsaved Permission.
// An empty codename is derived from the resource and action.
func NewPermission(in PermissionInput) (Permission, error) {
	resource := Resource(strings.TrimSpace(strings.ToLower(string(in.Resource))))
	action := Action(strings.TrimSpace(strings.ToLower(string(in.Action))))
	if !resource.Valid() {
		return Permission{}, validationf("unknown resource %q", in.Resource)
	}
	if !action.Valid() {
		return Permission{}, validationf("unknown action %q", in.Action)
	}
	codename := strings.TrimSpace(in.Codename)
	if codename == "" {
		codename = DeriveCodename(resource, action)
	} else if !ValidCodename(codename) {
		return Permission{}, validationf("codename %q must have the form resource.action", codename)
	}
	return Permission{
		Codename:    codename,
		Resource:    resource,
		Action:      action,
		Description: strings.TrimSpace(in.Description),
	}, nil
}

// Role is a named set of permissions assignable to actors.
type Role struct {
	ID          int64
	Name        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

const maxRoleNameLen = 100

func normalizeRoleName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", validationf("role name required")
	}
	if len([]rune(name)) > maxRoleNameLen {
		return "", validationf("role name exceeds %d characters", maxRoleNameLen)
	}
	return name, nil
}

// RolePermission is one grant of one permission to one role.
type RolePermission struct {
	ID           int64
	RoleID       int64
	PermissionID int64
	Permission   Permission
	CreatedAt    time.Time
}

// PermissionSet is the set of codenames held by a role.
type PermissionSet map[string]struct{}

// NewPermissionSet builds a set from codenames.
func NewPermissionSet(codenames ...string) PermissionSet {
	set := make(PermissionSet, len(codenames))
	for _, c := range codenames {
		set[c] = struct{}{}
	}
	return set
}

// Has reports whether codename is in the set.
func (s PermissionSet) Has(codename string) bool {
	_, ok := s[codename]
	return ok
}

// Sorted returns the codenames in lexical order.
func (s PermissionSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Actor is the per-request snapshot of the caller supplied by the boundary.
type Actor struct {
	ID            int64
	Authenticated bool
	Active        bool
	RoleID        *int64
}

// HasRole reports whether a role is bound to the actor.
func (a Actor) HasRole() bool {
	return a.RoleID != nil
}
