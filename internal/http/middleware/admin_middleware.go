package middleware

import (
	"net/http"

	"github.com/smarthubultra/identity-service/internal/http/response"
)

// RequireAdmin blocks callers whose verified claims lack the admin flag.
// Must run after AuthMiddleware.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing auth context", nil)
			return
		}
		if !claims.Admin {
			response.Error(w, r, http.StatusForbidden, "FORBIDDEN", "admin access required", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
