package domain

import "time"

// AdminGrant is an append-only audit record of an elevation. Never
// mutated or deleted.
type AdminGrant struct {
	ID        string    `gorm:"primaryKey;size:64" json:"id"`
	GrantedTo string    `gorm:"size:320;index" json:"granted_to"`
	GrantedBy string    `gorm:"size:320" json:"granted_by"`
	Override  bool      `json:"override"`
	CreatedAt time.Time `json:"timestamp"`
}

// InviteRecord is the append-only trail of invite deliveries, including
// failed sends (the shareable link still goes out to the caller).
type InviteRecord struct {
	ID         string    `gorm:"primaryKey;size:64" json:"id"`
	Email      string    `gorm:"size:320;index" json:"email"`
	Role       string    `gorm:"size:32" json:"role"`
	AccessTier string    `gorm:"size:32" json:"access_tier"`
	Issuer     string    `gorm:"size:320" json:"issuer"`
	Delivered  bool      `json:"delivered"`
	Error      string    `gorm:"size:512" json:"error,omitempty"`
	CreatedAt  time.Time `json:"timestamp"`
}

// MaintenanceLog records one sweep pass: what was removed and the
// cutoffs used, so partial sweeps can be audited after the fact.
type MaintenanceLog struct {
	ID          string        `gorm:"primaryKey;size:64" json:"id"`
	RanAt       time.Time     `json:"ran_at"`
	Removed     SweepReport   `gorm:"embedded;embeddedPrefix:removed_" json:"removed"`
	GuestCutoff time.Time     `json:"guest_cutoff"`
	SessionTTL  time.Duration `json:"session_ttl"`
}

// SweepReport counts what one sweep pass deleted.
type SweepReport struct {
	MagicLinks int64 `json:"magic_links"`
	GuestUsers int64 `json:"guest_users"`
	Sessions   int64 `json:"sessions"`
}
