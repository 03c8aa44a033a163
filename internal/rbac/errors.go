package rbac

import (
	"errors"
	"fmt"
)

// Kind classifies an authorization or administration failure.
type Kind string

// Failure kinds. Every kind is an expected, caller-recoverable condition.
const (
	KindUnauthenticated         Kind = "unauthenticated"
	KindAccountInactive         Kind = "account_inactive"
	KindNoRoleAssigned          Kind = "no_role_assigned"
	KindPermissionDenied        Kind = "permission_denied"
	KindNotFound                Kind = "not_found"
	KindDuplicateName           Kind = "duplicate_name"
	KindDuplicateResourceAction Kind = "duplicate_resource_action"
	KindDuplicateCodename       Kind = "duplicate_codename"
	KindAlreadyGranted          Kind = "already_granted"
	KindRoleInUse               Kind = "role_in_use"
	KindPermissionInUse         Kind = "permission_in_use"
	KindValidation              Kind = "validation"
)

// Entities named by not-found errors.
const (
	EntityRole       = "role"
	EntityPermission = "permission"
	EntityActor      = "actor"
	EntityGrant      = "grant"
)

// Error is the typed failure returned by the evaluator and the role store.
type Error struct {
	Kind     Kind
	Entity   string
	Codename string
	Message  string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return "rbac: " + e.Message
	}
	if e.Entity != "" {
		return fmt.Sprintf("rbac: %s %s", e.Entity, e.Kind)
	}
	return "rbac: " + string(e.Kind)
}

// Code is the machine-readable failure code reported to clients.
func (e *Error) Code() string { return string(e.Kind) }

// RequiredCodename is the permission a denial was issued for.
func (e *Error) RequiredCodename() string { return e.Codename }

// Is matches on Kind, and on Entity when the target names one.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Entity == "" || t.Entity == e.Entity
}

// Sentinels for errors.Is.
var (
	ErrUnauthenticated         = &Error{Kind: KindUnauthenticated}
	ErrAccountInactive         = &Error{Kind: KindAccountInactive}
	ErrNoRoleAssigned          = &Error{Kind: KindNoRoleAssigned}
	ErrPermissionDenied        = &Error{Kind: KindPermissionDenied}
	ErrNotFound                = &Error{Kind: KindNotFound}
	ErrRoleNotFound            = &Error{Kind: KindNotFound, Entity: EntityRole}
	ErrPermissionNotFound      = &Error{Kind: KindNotFound, Entity: EntityPermission}
	ErrActorNotFound           = &Error{Kind: KindNotFound, Entity: EntityActor}
	ErrGrantNotFound           = &Error{Kind: KindNotFound, Entity: EntityGrant}
	ErrDuplicateName           = &Error{Kind: KindDuplicateName}
	ErrDuplicateResourceAction = &Error{Kind: KindDuplicateResourceAction}
	ErrDuplicateCodename       = &Error{Kind: KindDuplicateCodename}
	ErrAlreadyGranted          = &Error{Kind: KindAlreadyGranted}
	ErrRoleInUse               = &Error{Kind: KindRoleInUse}
	ErrPermissionInUse         = &Error{Kind: KindPermissionInUse}
	ErrValidation              = &Error{Kind: KindValidation}
)

// KindOf extracts the failure kind, or "" for errors outside the taxonomy.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// CodenameOf returns the codename carried by a permission denial.
func CodenameOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Codename
	}
	return ""
}

func validationf(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func notFound(entity string, format string, args ...any) error {
	return &Error{Kind: KindNotFound, Entity: entity, Message: fmt.Sprintf(format, args...)}
}

func permissionDenied(codename string) error {
	return &Error{
		Kind:     KindPermissionDenied,
		Codename: codename,
		Message:  fmt.Sprintf("permission %s required", codename),
	}
}
