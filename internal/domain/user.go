package domain

import "time"

// Roles a profile can carry. Role changes flow through the identity
// resolver (merge) or the admin elevation gate; nothing else downgrades.
const (
	RoleUser    = "user"
	RoleGuest   = "guest"
	RoleCreator = "creator"
	RoleAdmin   = "admin"
)

// Access tiers layered on top of roles.
const (
	TierMember    = "member"
	TierGuest     = "guest"
	TierBuilder   = "builder"
	TierControl   = "control"
	TierExecutive = "executive"
)

// UserProfile is keyed by the sanitized identity key derived from the
// user's email (lowercased, non-alphanumerics stripped). Exactly one
// profile exists per identity key.
type UserProfile struct {
	Key              string     `gorm:"primaryKey;size:128" json:"key"`
	Email            string     `gorm:"size:320;index" json:"email"`
	Username         string     `gorm:"size:128" json:"username"`
	Role             string     `gorm:"size:32;index;default:user" json:"role"`
	AccessTier       string     `gorm:"size:32" json:"access_tier,omitempty"`
	Badges           StringSet  `gorm:"serializer:json" json:"badges"`
	Sessions         int64      `json:"sessions"`
	LastSessionAt    *time.Time `gorm:"index" json:"last_session_at,omitempty"`
	LastSignInMethod string     `gorm:"size:32" json:"last_sign_in_method,omitempty"`
	LastRoleUpdateAt *time.Time `json:"last_role_update_at,omitempty"`
	Guest            *GuestInfo `gorm:"embedded;embeddedPrefix:guest_" json:"guest,omitempty"`
	Project          *ProjectInfo `gorm:"embedded;embeddedPrefix:project_" json:"project,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// GuestInfo marks a profile as ephemeral. The sweeper uses CreatedAt as
// the fallback age when the profile itself predates the marker.
type GuestInfo struct {
	CreatedAt *time.Time `json:"created_at,omitempty"`
	Label     string     `gorm:"size:128" json:"label,omitempty"`
}

// ProjectInfo ties a profile to a durable shareable project code.
type ProjectInfo struct {
	Code         string     `gorm:"size:16;index" json:"code,omitempty"`
	CreatedAt    *time.Time `json:"created_at,omitempty"`
	Label        string     `gorm:"size:128" json:"label,omitempty"`
	LastAccessed *time.Time `json:"last_accessed,omitempty"`
}

// StringSet is a deduplicated, order-preserving badge list.
type StringSet []string

// Merge appends values not already present and reports whether the set grew.
func (s StringSet) Merge(values ...string) (StringSet, bool) {
	seen := make(map[string]struct{}, len(s))
	for _, v := range s {
		seen[v] = struct{}{}
	}
	out := s
	grew := false
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
		grew = true
	}
	return out, grew
}

// Contains reports membership.
func (s StringSet) Contains(v string) bool {
	for _, item := range s {
		if item == v {
			return true
		}
	}
	return false
}

// ProfileOverrides is the typed shallow-merge payload applied by the
// identity resolver. Nil/empty fields leave the stored value untouched.
type ProfileOverrides struct {
	Username         string
	Role             string
	AccessTier       string
	Badges           []string
	LastSignInMethod string
	Guest            *GuestInfo
	Project          *ProjectInfo
}

// IsZero reports whether the overrides would change nothing.
func (o ProfileOverrides) IsZero() bool {
	return o.Username == "" && o.Role == "" && o.AccessTier == "" &&
		len(o.Badges) == 0 && o.LastSignInMethod == "" && o.Guest == nil && o.Project == nil
}
