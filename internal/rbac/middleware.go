// Package rbac provides coarse role gates in front of the policy engine.
package rbac

import (
	"log/slog"
	"net/http"

	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/identity"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/platform/httpx"
	"github.com/Malitic/Everbright-Optical-Clinic-sub007/internal/policy"
)

// Middleware wires role authorization helpers for HTTP handlers.
type Middleware struct {
	Logger *slog.Logger
}

// RequireActor rejects requests without an authenticated actor.
func (m Middleware) RequireActor() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := identity.ActorFromContext(r.Context()); !ok {
				httpx.RespondError(w, policy.ErrAuthenticationMissing)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole ensures the current actor holds one of roles.
func (m Middleware) RequireRole(roles ...identity.Role) func(http.Handler) http.Handler {
	allowed := normalizeRoles(roles)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := identity.ActorFromContext(r.Context())
			if !ok {
				httpx.RespondError(w, policy.ErrAuthenticationMissing)
				return
			}
			if len(allowed) == 0 || actor.Is(allowed...) {
				next.ServeHTTP(w, r)
				return
			}
			if m.Logger != nil {
				m.Logger.Warn("rbac role rejected",
					slog.Int64("user_id", actor.ID),
					slog.String("role", string(actor.Role)),
					slog.String("path", r.URL.Path),
				)
			}
			httpx.RespondError(w, httpx.ErrForbidden)
		})
	}
}

func normalizeRoles(roles []identity.Role) []identity.Role {
	seen := make(map[identity.Role]struct{}, len(roles))
	normalized := make([]identity.Role, 0, len(roles))
	for _, raw := range roles {
		role, err := identity.ParseRole(string(raw))
		if err != nil {
			continue
		}
		if _, dup := seen[role]; dup {
			continue
		}
		seen[role] = struct{}{}
		normalized = append(normalized, role)
	}
	return normalized
}
