package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/smarthubultra/identity-service/internal/http/middleware"
	"github.com/smarthubultra/identity-service/internal/http/response"
	"github.com/smarthubultra/identity-service/internal/service"
)

// AdminHandler exposes elevation, invites and instance-code minting.
// Every route behind it runs after AuthMiddleware, so a caller is always
// present in the context.
type AdminHandler struct {
	admin  *service.AdminService
	tokens *service.TokenService
}

func NewAdminHandler(admin *service.AdminService, tokens *service.TokenService) *AdminHandler {
	return &AdminHandler{admin: admin, tokens: tokens}
}

// Grant elevates the target identity to admin. A non-admin caller must
// present the override secret AND may only elevate their own email; the
// secret alone does not let one account elevate another.
func (h *AdminHandler) Grant(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerFromContext(r.Context())
	var req service.GrantRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if caller != nil && !caller.Admin {
		target := strings.ToLower(strings.TrimSpace(req.TargetEmail))
		if target != strings.ToLower(strings.TrimSpace(caller.Email)) {
			response.Error(w, r, http.StatusForbidden, "FORBIDDEN", "override grants are limited to your own account", nil)
			return
		}
	}
	result, err := h.admin.GrantAdmin(r.Context(), caller, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, result)
}

// Invite sends an invite link on behalf of the calling admin.
func (h *AdminHandler) Invite(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerFromContext(r.Context())
	var req struct {
		Email string `json:"email"`
		Role  string `json:"role,omitempty"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.admin.Invite(r.Context(), caller, req.Email, req.Role)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusCreated, result)
}

type mintInstanceCodeRequest struct {
	// TTLSeconds of zero keeps the configured default.
	TTLSeconds int64 `json:"ttl_seconds,omitempty"`
}

type mintInstanceCodeResponse struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}

// MintInstanceCode creates a shareable numeric sign-in code. Admin only,
// enforced by the route chain.
func (h *AdminHandler) MintInstanceCode(w http.ResponseWriter, r *http.Request) {
	caller := middleware.CallerFromContext(r.Context())
	var req mintInstanceCodeRequest
	if r.ContentLength > 0 {
		if !decodeJSON(w, r, &req) {
			return
		}
	}
	issuer := ""
	if caller != nil {
		issuer = caller.Email
	}
	cred, err := h.tokens.IssueInstanceCode(r.Context(), time.Duration(req.TTLSeconds)*time.Second, issuer)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusCreated, mintInstanceCodeResponse{
		Code:      cred.Token,
		ExpiresAt: cred.ExpiresAt,
	})
}
