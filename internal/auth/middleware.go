package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/paroquia-cms/paroquia-cms/internal/platform/httpx"
	"github.com/paroquia-cms/paroquia-cms/internal/shared"
)

// Authenticator resolves the bearer token of each request into a principal.
type Authenticator struct {
	Service *Service
	Logger  *slog.Logger
}

// Require rejects requests without a valid bearer token for an active
// principal and stores the principal in the request context.
func (a Authenticator) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			httpx.RespondError(w, a.Logger, shared.ErrUnauthenticated)
			return
		}
		principal, err := a.Service.Resolve(r.Context(), token)
		if err != nil {
			if a.Logger != nil {
				a.Logger.Debug("authentication failed", slog.Any("error", err))
			}
			httpx.RespondError(w, a.Logger, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithPrincipal(r.Context(), principal)))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
