package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/odyssey-erp/odyssey-rbac/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-rbac/internal/rbac"
	"github.com/odyssey-erp/odyssey-rbac/internal/shared"
)

// ActorLookup loads the authorization snapshot of a user.
type ActorLookup interface {
	LookupActor(ctx context.Context, actorID int64) (rbac.Actor, error)
}

// ActorMiddleware resolves the session user into an rbac.Actor. Requests
// without a logged-in user, or whose user no longer exists, carry the zero
// (unauthenticated) actor.
func ActorMiddleware(lookup ActorLookup, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess := shared.SessionFromContext(r.Context())
			userID, ok := sess.ActorID()
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			actor, err := lookup.LookupActor(r.Context(), userID)
			if err != nil {
				if errors.Is(err, rbac.ErrActorNotFound) {
					next.ServeHTTP(w, r)
					return
				}
				logger.Error("lookup actor", slog.Int64("user_id", userID), slog.Any("error", err))
				httpx.RespondError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(rbac.ContextWithActor(r.Context(), actor)))
		})
	}
}
