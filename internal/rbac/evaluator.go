package rbac

import (
	"context"
	"errors"
	"fmt"
)

// Outcome is the discriminant of a Decision.
type Outcome string

// Decision outcomes, in evaluation order.
const (
	OutcomeUnauthenticated  Outcome = "unauthenticated"
	OutcomeAccountInactive  Outcome = "account_inactive"
	OutcomeNoRoleAssigned   Outcome = "no_role_assigned"
	OutcomePermissionDenied Outcome = "permission_denied"
	OutcomeAllow            Outcome = "allow"
)

// Decision is the result of one authorization check.
type Decision struct {
	Outcome  Outcome
	Codename string
}

// Allowed reports whether the check granted access.
func (d Decision) Allowed() bool {
	return d.Outcome == OutcomeAllow
}

// Err converts a denial into its typed error; it returns nil on allow.
func (d Decision) Err() error {
	switch d.Outcome {
	case OutcomeAllow:
		return nil
	case OutcomeUnauthenticated:
		return &Error{Kind: KindUnauthenticated, Codename: d.Codename, Message: "authentication required"}
	case OutcomeAccountInactive:
		return &Error{Kind: KindAccountInactive, Codename: d.Codename, Message: "account is inactive"}
	case OutcomeNoRoleAssigned:
		return &Error{Kind: KindNoRoleAssigned, Codename: d.Codename, Message: "no role assigned"}
	default:
		return permissionDenied(d.Codename)
	}
}

// PermissionSource resolves the current permission set of a role.
type PermissionSource interface {
	PermissionsOf(ctx context.Context, roleID int64) (PermissionSet, error)
}

// DecisionObserver is notified of every decision.
type DecisionObserver interface {
	ObserveDecision(outcome string)
}

// Evaluator decides whether an actor holds a permission. It keeps no state of
// its own and never writes, so it may be shared by concurrent requests.
type Evaluator struct {
	source   PermissionSource
	observer DecisionObserver
}

// NewEvaluator builds an Evaluator reading from source. observer may be nil.
func NewEvaluator(source PermissionSource, observer DecisionObserver) *Evaluator {
	return &Evaluator{source: source, observer: observer}
}

// Check evaluates actor against codename. The error is non-nil only when the
// codename is malformed or the permission source fails; denials are reported
// through the Decision.
func (e *Evaluator) Check(ctx context.Context, actor Actor, codename string) (Decision, error) {
	d, err := e.check(ctx, actor, codename)
	if err != nil {
		return Decision{}, err
	}
	if e.observer != nil {
		e.observer.ObserveDecision(string(d.Outcome))
	}
	return d, nil
}

func (e *Evaluator) check(ctx context.Context, actor Actor, codename string) (Decision, error) {
	if !actor.Authenticated {
		return Decision{Outcome: OutcomeUnauthenticated, Codename: codename}, nil
	}
	if !actor.Active {
		return Decision{Outcome: OutcomeAccountInactive, Codename: codename}, nil
	}
	if !actor.HasRole() {
		return Decision{Outcome: OutcomeNoRoleAssigned, Codename: codename}, nil
	}
	if !ValidCodename(codename) {
		return Decision{}, validationf("codename %q must have the form resource.action", codename)
	}
	perms, err := e.source.PermissionsOf(ctx, *actor.RoleID)
	if err != nil {
		// The role vanished after the actor snapshot was taken.
		if errors.Is(err, ErrRoleNotFound) {
			return Decision{Outcome: OutcomeNoRoleAssigned, Codename: codename}, nil
		}
		return Decision{}, fmt.Errorf("rbac: resolve role permissions: %w", err)
	}
	if perms.Has(codename) {
		return Decision{Outcome: OutcomeAllow, Codename: codename}, nil
	}
	return Decision{Outcome: OutcomePermissionDenied, Codename: codename}, nil
}

// Authorize is Check folded into a single error: nil on allow, a typed
// denial, or the underlying failure.
func (e *Evaluator) Authorize(ctx context.Context, actor Actor, codename string) error {
	d, err := e.Check(ctx, actor, codename)
	if err != nil {
		return err
	}
	return d.Err()
}
