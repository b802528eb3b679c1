package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/smarthubultra/identity-service/internal/domain"
	"github.com/smarthubultra/identity-service/internal/http/response"
	"github.com/smarthubultra/identity-service/internal/observability"
	"github.com/smarthubultra/identity-service/internal/security"
	"github.com/smarthubultra/identity-service/internal/service"
)

// AuthHandler owns the unauthenticated sign-in surface: issuing magic
// links and turning credentials into sessions.
type AuthHandler struct {
	tokens   *service.TokenService
	sessions *service.SessionService
	mailer   service.Mailer
	jwt      *security.JWTManager
	tokenTTL time.Duration
	logger   *slog.Logger
}

func NewAuthHandler(tokens *service.TokenService, sessions *service.SessionService, mailer service.Mailer, jwt *security.JWTManager, tokenTTL time.Duration, logger *slog.Logger) *AuthHandler {
	if tokenTTL <= 0 {
		tokenTTL = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{
		tokens:   tokens,
		sessions: sessions,
		mailer:   mailer,
		jwt:      jwt,
		tokenTTL: tokenTTL,
		logger:   logger,
	}
}

type issueMagicLinkRequest struct {
	Email      string `json:"email"`
	Username   string `json:"username,omitempty"`
	Role       string `json:"role,omitempty"`
	AccessTier string `json:"access_tier,omitempty"`
	BaseURL    string `json:"base_url,omitempty"`
}

type issueMagicLinkResponse struct {
	Email     string    `json:"email"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
	Delivered bool      `json:"delivered"`
}

// IssueMagicLink mints a magic link and tries to mail it. The link is
// returned either way; delivery failure only flips the delivered flag.
func (h *AuthHandler) IssueMagicLink(w http.ResponseWriter, r *http.Request) {
	var req issueMagicLinkRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	// Admin role carries only through the elevation gate or an invite;
	// the self-service path never accepts it.
	if req.Role == domain.RoleAdmin {
		response.Error(w, r, http.StatusForbidden, "FORBIDDEN", "admin role cannot be requested on self-service sign-in", nil)
		return
	}
	link, err := h.tokens.IssueMagicLink(r.Context(), req.Email, domain.CredentialMeta{
		Method:  domain.MethodEmailLink,
		BaseURL: req.BaseURL,
		Overrides: domain.ProfileOverrides{
			Username:   req.Username,
			Role:       req.Role,
			AccessTier: req.AccessTier,
		},
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	delivered := true
	if err := h.mailer.Send(r.Context(), service.Message{
		To:      req.Email,
		Subject: "Your SmartHub Ultra sign-in link",
		Text:    "Sign in with this link: " + link.URL,
	}); err != nil {
		delivered = false
		h.logger.Warn("magic link delivery failed",
			slog.String("email", req.Email),
			slog.String("error", err.Error()))
	}
	observability.RecordMailDelivery(mailDeliveryStatus(delivered))

	response.JSON(w, r, http.StatusCreated, issueMagicLinkResponse{
		Email:     req.Email,
		URL:       link.URL,
		ExpiresAt: link.ExpiresAt,
		Delivered: delivered,
	})
}

type loginResponse struct {
	Profile     *domain.UserProfile `json:"profile"`
	Session     *domain.Session     `json:"session"`
	ProjectCode string              `json:"project_code,omitempty"`
	Token       string              `json:"token"`
}

// RedeemMagicLink exchanges a one-shot token for a profile, a session
// and a signed bearer token.
func (h *AuthHandler) RedeemMagicLink(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.sessions.RedeemMagicLink(r.Context(), req.Token, r.UserAgent())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.writeLogin(w, r, result)
}

// RedeemInstanceCode exchanges a one-shot numeric code plus an email for
// a session. A second redemption fails as already-used.
func (h *AuthHandler) RedeemInstanceCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code  string `json:"code"`
		Email string `json:"email"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.sessions.RedeemInstanceCode(r.Context(), req.Code, req.Email, r.UserAgent())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.writeLogin(w, r, result)
}

// StartGuest creates a throwaway guest identity and signs it in.
func (h *AuthHandler) StartGuest(w http.ResponseWriter, r *http.Request) {
	result, err := h.sessions.StartGuestSession(r.Context(), r.UserAgent())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.writeLogin(w, r, result)
}

// StartProject allocates a durable project code and signs in its owner.
func (h *AuthHandler) StartProject(w http.ResponseWriter, r *http.Request) {
	result, err := h.sessions.StartProjectSession(r.Context(), r.UserAgent())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.writeLogin(w, r, result)
}

// ResumeProject signs back into an existing project by its code.
func (h *AuthHandler) ResumeProject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Code string `json:"code"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	result, err := h.sessions.ResumeProjectSession(r.Context(), req.Code, r.UserAgent())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.writeLogin(w, r, result)
}

func (h *AuthHandler) writeLogin(w http.ResponseWriter, r *http.Request, result *service.LoginResult) {
	token, err := h.jwt.SignIDToken(result.Profile.Key, result.Profile.Email, security.Claims{
		Admin:      result.Profile.Role == domain.RoleAdmin,
		Role:       result.Profile.Role,
		AccessTier: result.Profile.AccessTier,
	}, h.tokenTTL)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, loginResponse{
		Profile:     result.Profile,
		Session:     result.Session,
		ProjectCode: result.ProjectCode,
		Token:       token,
	})
}

func mailDeliveryStatus(delivered bool) string {
	if delivered {
		return "delivered"
	}
	return "failed"
}
