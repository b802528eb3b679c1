package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/smarthubultra/identity-service/internal/domain"
	"github.com/smarthubultra/identity-service/internal/observability"
	"github.com/smarthubultra/identity-service/internal/repository"
	"github.com/smarthubultra/identity-service/internal/security"
)

// Caller is the authenticated principal performing an admin operation,
// extracted from the verified bearer token.
type Caller struct {
	Key        string
	Email      string
	Admin      bool
	Role       string
	AccessTier string
}

// GrantRequest is the elevation payload. OverrideSecret lets a
// non-admin caller elevate when it matches the configured secret
// exactly.
type GrantRequest struct {
	TargetEmail    string `json:"target_email"`
	AccessTier     string `json:"access_tier,omitempty"`
	OverrideSecret string `json:"override_secret,omitempty"`
}

// GrantResult carries the refreshed claims and a newly signed bearer
// token reflecting them.
type GrantResult struct {
	Profile    *domain.UserProfile `json:"profile"`
	AccessTier string              `json:"access_tier"`
	Token      string              `json:"token"`
}

// InviteResult reports an invite send. Delivered false with a non-empty
// Link means the mail bounced but the link is still shareable by hand.
type InviteResult struct {
	Email     string    `json:"email"`
	Link      string    `json:"invite_link"`
	ExpiresAt time.Time `json:"expires_at"`
	Delivered bool      `json:"delivered"`
}

// AdminService guards elevation and invites.
type AdminService struct {
	users          repository.UserRepository
	audits         repository.AuditRepository
	identity       *IdentityService
	tokens         *TokenService
	mailer         Mailer
	jwt            *security.JWTManager
	overrideSecret string
	tokenTTL       time.Duration
	logger         *slog.Logger
}

func NewAdminService(users repository.UserRepository, audits repository.AuditRepository, identity *IdentityService, tokens *TokenService, mailer Mailer, jwt *security.JWTManager, overrideSecret string, tokenTTL time.Duration, logger *slog.Logger) *AdminService {
	if tokenTTL <= 0 {
		tokenTTL = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminService{
		users:          users,
		audits:         audits,
		identity:       identity,
		tokens:         tokens,
		mailer:         mailer,
		jwt:            jwt,
		overrideSecret: overrideSecret,
		tokenTTL:       tokenTTL,
		logger:         logger,
	}
}

// GrantAdmin elevates the target identity. Authorization: the caller is
// already an admin, or presented the exact override secret. The grant is
// recorded in the append-only audit trail whatever path authorized it.
func (s *AdminService) GrantAdmin(ctx context.Context, caller *Caller, req GrantRequest) (*GrantResult, error) {
	if caller == nil {
		return nil, fmt.Errorf("grant admin: %w", ErrUnauthenticated)
	}
	usedOverride := !caller.Admin
	if usedOverride && (s.overrideSecret == "" || req.OverrideSecret != s.overrideSecret) {
		return nil, fmt.Errorf("grant admin: %w", ErrPermissionDenied)
	}
	target := strings.ToLower(strings.TrimSpace(req.TargetEmail))
	if target == "" {
		return nil, fmt.Errorf("%w: target email required", ErrInvalidArgument)
	}

	existing, _ := s.users.FindByKey(SanitizeKey(target))
	tier := req.AccessTier
	if tier == "" && existing != nil {
		tier = existing.AccessTier
	}
	if tier == "" {
		tier = domain.TierExecutive
	}

	profile, err := s.identity.Resolve(ctx, target, domain.ProfileOverrides{
		Role:       domain.RoleAdmin,
		AccessTier: tier,
		Badges:     []string{"admin"},
	})
	if err != nil {
		return nil, err
	}

	entry := &domain.AdminGrant{
		ID:        uuid.NewString(),
		GrantedTo: target,
		GrantedBy: caller.Email,
		Override:  usedOverride,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.audits.AppendAdminGrant(entry); err != nil {
		return nil, fmt.Errorf("append admin grant: %w", err)
	}

	token, err := s.jwt.SignIDToken(profile.Key, target, security.Claims{
		Admin:      true,
		Role:       domain.RoleAdmin,
		AccessTier: tier,
	}, s.tokenTTL)
	if err != nil {
		return nil, fmt.Errorf("sign elevated token: %w", err)
	}

	observability.RecordAdminGrant(usedOverride)
	observability.AuditEvent(ctx, "admin.granted",
		slog.String("granted_to", target),
		slog.String("granted_by", caller.Email),
		slog.Bool("override", usedOverride))
	return &GrantResult{Profile: profile, AccessTier: tier, Token: token}, nil
}

// Invite issues an invite magic link and tries to mail it. Delivery
// failure is not fatal: the result still carries the link, the audit
// entry records the error.
func (s *AdminService) Invite(ctx context.Context, caller *Caller, email, role string) (*InviteResult, error) {
	if caller == nil {
		return nil, fmt.Errorf("invite: %w", ErrUnauthenticated)
	}
	if !caller.Admin {
		return nil, fmt.Errorf("invite: %w", ErrPermissionDenied)
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, fmt.Errorf("%w: email required", ErrInvalidArgument)
	}
	if role == "" {
		role = domain.RoleUser
	}
	tier := domain.TierMember
	if role == domain.RoleGuest {
		tier = domain.TierGuest
	}

	link, err := s.tokens.IssueMagicLink(ctx, email, domain.CredentialMeta{
		Method: domain.MethodInviteLink,
		Issuer: caller.Email,
		Overrides: domain.ProfileOverrides{
			Role:       role,
			AccessTier: tier,
		},
	})
	if err != nil {
		return nil, err
	}

	delivered := true
	var deliveryErr string
	err = s.mailer.Send(ctx, Message{
		To:      email,
		Subject: "You're invited to SmartHub Ultra",
		Text:    "Use this link to sign in: " + link.URL,
	})
	if err != nil {
		delivered = false
		deliveryErr = err.Error()
		s.logger.Warn("invite delivery failed",
			slog.String("email", email),
			slog.String("error", deliveryErr))
	}
	observability.RecordMailDelivery(mailStatus(delivered))

	record := &domain.InviteRecord{
		ID:         uuid.NewString(),
		Email:      email,
		Role:       role,
		AccessTier: tier,
		Issuer:     caller.Email,
		Delivered:  delivered,
		Error:      deliveryErr,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.audits.AppendInvite(record); err != nil {
		return nil, fmt.Errorf("append invite record: %w", err)
	}

	return &InviteResult{
		Email:     email,
		Link:      link.URL,
		ExpiresAt: link.ExpiresAt,
		Delivered: delivered,
	}, nil
}

func mailStatus(delivered bool) string {
	if delivered {
		return "delivered"
	}
	return "failed"
}
