package domain

import "time"

// Bot is the executable payload the integrity checker inspects. Bots are
// owned by the builder subsystem; only the fields relevant to validation
// cross this boundary.
type Bot struct {
	ID      string `json:"id"`
	Purpose string `json:"purpose"`
	Code    string `json:"code"`
	// Runtime is the last reported execution duration in milliseconds.
	Runtime int64 `json:"runtime"`
}

// Fingerprint is a bot's behavioral DNA: a hash of its payload plus the
// policy snapshot taken when the payload was recorded. Fingerprints are
// regenerated on payload change, never mutated in place.
type Fingerprint struct {
	BotID     string          `gorm:"primaryKey;size:64" json:"bot_id"`
	Purpose   string          `gorm:"size:256" json:"purpose"`
	CodeHash  string          `gorm:"size:32;not null" json:"code_hash"`
	Profile   BehaviorProfile `gorm:"embedded;embeddedPrefix:profile_" json:"behavior_profile"`
	CreatedAt time.Time       `json:"created_at"`
}

// BehaviorProfile bounds what a bot may do and for how long.
type BehaviorProfile struct {
	Intent            string    `gorm:"size:64" json:"intent"`
	AllowedActions    StringSet `gorm:"serializer:json" json:"allowed_actions"`
	RestrictedActions StringSet `gorm:"serializer:json" json:"restricted_actions"`
	// MaxRuntime is a hard ceiling on reported execution, in milliseconds.
	MaxRuntime int64 `json:"max_runtime"`
}

// Verdict is the read-side integrity result. The caller decides what a
// failing verdict means (flag, block, surface to oversight).
type Verdict struct {
	Valid  bool     `json:"valid"`
	Issues []string `json:"issues"`
}
