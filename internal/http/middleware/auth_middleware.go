package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/smarthubultra/identity-service/internal/http/response"
	"github.com/smarthubultra/identity-service/internal/observability"
	"github.com/smarthubultra/identity-service/internal/security"
	"github.com/smarthubultra/identity-service/internal/service"
)

type contextKey string

const (
	ClaimsContextKey contextKey = "claims"
)

// AuthMiddleware verifies the bearer token and stashes its claims in the
// request context. No token or a bad token is a 401 before the handler
// runs.
func AuthMiddleware(jwtMgr *security.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(strings.ToLower(auth), "bearer ") {
				observability.RecordTokenValidation("missing")
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token", nil)
				return
			}
			raw := strings.TrimSpace(auth[7:])
			claims, err := jwtMgr.VerifyIDToken(raw)
			if err != nil {
				observability.RecordTokenValidation("invalid")
				response.Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid bearer token", nil)
				return
			}
			observability.RecordTokenValidation("valid")
			ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func ClaimsFromContext(ctx context.Context) (*security.Claims, bool) {
	c, ok := ctx.Value(ClaimsContextKey).(*security.Claims)
	return c, ok
}

// CallerFromContext projects the verified claims into the service
// layer's principal. Nil when the request is unauthenticated.
func CallerFromContext(ctx context.Context) *service.Caller {
	claims, ok := ClaimsFromContext(ctx)
	if !ok {
		return nil
	}
	return &service.Caller{
		Key:        claims.Subject,
		Email:      claims.Email,
		Admin:      claims.Admin,
		Role:       claims.Role,
		AccessTier: claims.AccessTier,
	}
}
