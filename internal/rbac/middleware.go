package rbac

import (
	"log/slog"
	"net/http"

	"github.com/paroquia-cms/paroquia-cms/internal/platform/httpx"
	"github.com/paroquia-cms/paroquia-cms/internal/shared"
)

// Middleware wires RBAC authorization helpers for HTTP handlers. It expects
// the authenticated principal in the request context.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// RequirePermission ensures the current principal's role grants perm.
func (m Middleware) RequirePermission(perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := shared.PrincipalFromContext(r.Context())
			if err := m.Service.Authorize(principal, perm); err != nil {
				m.deny(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole ensures the current principal holds one of the roles.
func (m Middleware) RequireRole(roles ...shared.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := shared.PrincipalFromContext(r.Context())
			if err := m.Service.RequireRole(principal, roles...); err != nil {
				m.deny(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) deny(w http.ResponseWriter, r *http.Request, err error) {
	if m.Logger != nil {
		m.Logger.Debug("rbac denied", slog.String("path", r.URL.Path), slog.Any("error", err))
	}
	httpx.RespondError(w, m.Logger, err)
}
