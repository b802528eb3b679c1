package domain

import "time"

// Sign-in methods recorded on sessions and credentials.
const (
	MethodEmailLink    = "email-link"
	MethodMagicLink    = "magic-link"
	MethodInviteLink   = "invite-link"
	MethodInstanceCode = "instance-code"
	MethodProjectCode  = "project-code"
	MethodGuest        = "guest"
	MethodAdminFastpass = "admin-fastpass"
)

// Session is one login event. Records are write-once; only the sweeper
// removes them, and only after the owning guest profile is pruned.
type Session struct {
	ID           string    `gorm:"primaryKey;size:64" json:"id"`
	UserKey      string    `gorm:"index;size:128;not null" json:"user"`
	Email        string    `gorm:"size:320" json:"email"`
	Method       string    `gorm:"size:32" json:"method"`
	InstanceCode string    `gorm:"size:16" json:"instance_code,omitempty"`
	UserAgent    string    `gorm:"size:512" json:"user_agent,omitempty"`
	Billing      Billing   `gorm:"embedded;embeddedPrefix:billing_" json:"billing"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
}

// Billing is a placeholder carried on every session.
type Billing struct {
	Amount   int64  `json:"amount"`
	Currency string `gorm:"size:8;default:USD" json:"currency"`
}
