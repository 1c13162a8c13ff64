package authz

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/labkeeper/labkeeper/internal/platform/httpx"
	"github.com/labkeeper/labkeeper/internal/shared"
)

// Header names populated by the authenticating gateway in front of the
// service. The gateway has already verified the identity; this layer only
// decides what the identity may do.
const (
	HeaderPrincipalID = "X-Principal-Id"
	HeaderCompanyID   = "X-Company-Id"
	HeaderRole        = "X-Role"
)

// Middleware wires authorization helpers for HTTP handlers.
type Middleware struct {
	Resolver *Resolver
	Logger   *slog.Logger
}

// WithPrincipal extracts the principal from gateway headers and stores it in
// the request context. Requests without a valid principal are rejected.
func (m Middleware) WithPrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(HeaderPrincipalID))
		company := strings.TrimSpace(r.Header.Get(HeaderCompanyID))
		role := Role(strings.TrimSpace(r.Header.Get(HeaderRole)))
		if id == "" || !role.Valid() {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "missing or invalid principal headers")
			return
		}
		p := &shared.Principal{ID: id, CompanyID: company, Role: string(role)}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithPrincipal(r.Context(), p)))
	})
}

// Require ensures the current principal holds the permission before the
// handler runs. Denial happens before any mutation is attempted.
func (m Middleware) Require(resource, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := shared.PrincipalFromContext(r.Context())
			if p == nil {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "no principal")
				return
			}
			if !m.Resolver.HasPermission(Role(p.Role), resource, action) {
				if m.Logger != nil {
					m.Logger.Info("permission denied",
						slog.String("principal", p.ID),
						slog.String("role", p.Role),
						slog.String("resource", resource),
						slog.String("action", action))
				}
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "missing permission "+resource+"."+action)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
