package rbac

import (
	"fmt"
	"log/slog"
	"net/http"
)

// Middleware wires RBAC authorization into HTTP handlers.
type Middleware struct {
	Evaluator  *Evaluator
	Operations *OperationTable
	Logger     *slog.Logger
	// Respond writes failures; nil falls back to bare status text.
	Respond func(http.ResponseWriter, error)
}

// Require guards a handler with the codename mapped to op. The lookup happens
// once, when routes are mounted; an unknown operation is a wiring bug and panics.
func (m Middleware) Require(op Operation) func(http.Handler) http.Handler {
	codename, ok := m.Operations.Required(op)
	if !ok {
		panic(fmt.Sprintf("rbac: no permission mapped for operation %q", op))
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := ActorFromContext(r.Context())
			decision, err := m.Evaluator.Check(r.Context(), actor, codename)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("rbac check", slog.String("operation", string(op)), slog.Any("error", err))
				}
				m.respond(w, err)
				return
			}
			if decision.Allowed() {
				next.ServeHTTP(w, r)
				return
			}
			if m.Logger != nil {
				m.Logger.Debug("rbac denied",
					slog.String("operation", string(op)),
					slog.String("outcome", string(decision.Outcome)),
					slog.Int64("actor_id", actor.ID),
				)
			}
			m.respond(w, decision.Err())
		})
	}
}

func (m Middleware) respond(w http.ResponseWriter, err error) {
	if m.Respond != nil {
		m.Respond(w, err)
		return
	}
	switch KindOf(err) {
	case KindUnauthenticated, KindAccountInactive:
		http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
	case KindNoRoleAssigned, KindPermissionDenied:
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
	default:
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
