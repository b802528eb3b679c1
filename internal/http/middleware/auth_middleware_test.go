package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/smarthubultra/identity-service/internal/domain"
	"github.com/smarthubultra/identity-service/internal/security"
)

func testJWTManager() *security.JWTManager {
	return security.NewJWTManager("identityd", "smarthub", "abcdefghijklmnopqrstuvwxyz123456")
}

func TestAuthMiddlewareMissingTokenReturnsUnauthorized(t *testing.T) {
	h := AuthMiddleware(testJWTManager())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/grant", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for missing token, got %d", rr.Code)
	}
}

func TestAuthMiddlewareGarbageTokenReturnsUnauthorized(t *testing.T) {
	h := AuthMiddleware(testJWTManager())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/grant", nil)
	req.Header.Set("Authorization", "Bearer not.a.token")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d", rr.Code)
	}
}

func TestAuthMiddlewareValidBearerTokenPasses(t *testing.T) {
	jwtMgr := testJWTManager()
	token, err := jwtMgr.SignIDToken("bosssmarthubultradev", "boss@smarthubultra.dev", security.Claims{
		Admin: true,
		Role:  domain.RoleAdmin,
	}, 15*time.Minute)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	var caller string
	h := AuthMiddleware(jwtMgr)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c := CallerFromContext(r.Context()); c != nil {
			caller = c.Email
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/grant", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for valid token, got %d", rr.Code)
	}
	if caller != "boss@smarthubultra.dev" {
		t.Fatalf("caller not projected from claims: %q", caller)
	}
}
