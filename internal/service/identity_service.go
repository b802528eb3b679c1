package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/smarthubultra/identity-service/internal/domain"
	"github.com/smarthubultra/identity-service/internal/repository"
)

// SanitizeKey collapses an email address into the profile's identity
// key: lowercased, everything outside [a-z0-9] stripped. Every caller
// that addresses a profile goes through this; no raw emails as keys.
func SanitizeKey(email string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(email) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Core accounts bootstrapped on startup. Re-running the bootstrap merges
// badges and restores the admin role but never rewrites history.
var coreAccounts = []struct {
	Email      string
	Username   string
	AccessTier string
	Badges     []string
}{
	{"boss@smarthubultra.dev", "Boss Operator", domain.TierExecutive, []string{"executive", "visionary"}},
	{"admin@smarthubultra.dev", "Admin Control", domain.TierControl, []string{"admin", "guardian"}},
}

// IdentityService owns the email -> profile mapping.
type IdentityService struct {
	users repository.UserRepository
}

func NewIdentityService(users repository.UserRepository) *IdentityService {
	return &IdentityService{users: users}
}

// Resolve maps an email to its profile, creating it on first sight and
// shallow-merging overrides on every call. Resolving the same email with
// the same overrides twice is a no-op; CreatedAt is never rewritten.
func (s *IdentityService) Resolve(ctx context.Context, email string, overrides domain.ProfileOverrides) (*domain.UserProfile, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, fmt.Errorf("%w: email required", ErrInvalidArgument)
	}
	key := SanitizeKey(email)
	if key == "" {
		return nil, fmt.Errorf("%w: email yields empty identity key", ErrInvalidArgument)
	}

	profile, err := s.users.FindByKey(key)
	if errors.Is(err, repository.ErrProfileNotFound) {
		return s.create(key, email, overrides)
	}
	if err != nil {
		return nil, err
	}
	return s.merge(profile, overrides)
}

func (s *IdentityService) create(key, email string, o domain.ProfileOverrides) (*domain.UserProfile, error) {
	username := o.Username
	if username == "" {
		if at := strings.IndexByte(email, '@'); at > 0 {
			username = email[:at]
		} else {
			username = email
		}
	}
	role := o.Role
	if role == "" {
		role = domain.RoleUser
	}
	tier := o.AccessTier
	if tier == "" {
		tier = domain.TierMember
	}
	badges, _ := domain.StringSet(nil).Merge(o.Badges...)
	profile := &domain.UserProfile{
		Key:              key,
		Email:            email,
		Username:         username,
		Role:             role,
		AccessTier:       tier,
		Badges:           badges,
		LastSignInMethod: o.LastSignInMethod,
		Guest:            o.Guest,
		Project:          o.Project,
	}
	if err := s.users.Create(profile); err != nil {
		return nil, err
	}
	return profile, nil
}

func (s *IdentityService) merge(profile *domain.UserProfile, o domain.ProfileOverrides) (*domain.UserProfile, error) {
	if o.IsZero() {
		return profile, nil
	}
	updates := map[string]any{}
	if o.Username != "" && o.Username != profile.Username {
		updates["username"] = o.Username
		profile.Username = o.Username
	}
	if o.Role != "" && o.Role != profile.Role {
		now := time.Now().UTC()
		updates["role"] = o.Role
		updates["last_role_update_at"] = now
		profile.Role = o.Role
		profile.LastRoleUpdateAt = &now
	}
	if o.AccessTier != "" && o.AccessTier != profile.AccessTier {
		updates["access_tier"] = o.AccessTier
		profile.AccessTier = o.AccessTier
	}
	if merged, grew := profile.Badges.Merge(o.Badges...); grew {
		// Map-based Updates bypasses the column's json serializer, so the
		// set is encoded here before it reaches gorm.
		raw, err := json.Marshal(merged)
		if err != nil {
			return nil, fmt.Errorf("encode badges: %w", err)
		}
		updates["badges"] = string(raw)
		profile.Badges = merged
	}
	if o.LastSignInMethod != "" && o.LastSignInMethod != profile.LastSignInMethod {
		updates["last_sign_in_method"] = o.LastSignInMethod
		profile.LastSignInMethod = o.LastSignInMethod
	}
	if o.Guest != nil && profile.Guest == nil {
		updates["guest_created_at"] = o.Guest.CreatedAt
		updates["guest_label"] = o.Guest.Label
		profile.Guest = o.Guest
	}
	if o.Project != nil {
		if profile.Project == nil || profile.Project.Code != o.Project.Code {
			updates["project_code"] = o.Project.Code
			updates["project_created_at"] = o.Project.CreatedAt
			updates["project_label"] = o.Project.Label
			profile.Project = o.Project
		}
		if o.Project.LastAccessed != nil {
			updates["project_last_accessed"] = o.Project.LastAccessed
			profile.Project.LastAccessed = o.Project.LastAccessed
		}
	}
	if len(updates) == 0 {
		return profile, nil
	}
	if err := s.users.Merge(profile.Key, updates); err != nil {
		return nil, err
	}
	return profile, nil
}

// EnsureCoreAccounts creates or repairs the fixed operator accounts.
func (s *IdentityService) EnsureCoreAccounts(ctx context.Context) error {
	for _, acct := range coreAccounts {
		_, err := s.Resolve(ctx, acct.Email, domain.ProfileOverrides{
			Username:   acct.Username,
			Role:       domain.RoleAdmin,
			AccessTier: acct.AccessTier,
			Badges:     acct.Badges,
		})
		if err != nil {
			return fmt.Errorf("ensure core account %s: %w", acct.Email, err)
		}
	}
	return nil
}
