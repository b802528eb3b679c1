package domain

import "time"

// Credential namespaces inside the credential store. Each namespace has
// its own uniqueness domain and default TTL.
const (
	NamespaceMagicLink    = "magiclinks"
	NamespaceInstanceCode = "instancecodes"
	NamespaceProjectCode  = "projectsessions"
	NamespaceRecoveryCode = "recoverycodes"
)

// Credential is a redeemable token or code. A credential is redeemable at
// most once: Used transitions false to true and never reverses. Redemption
// is only valid before ExpiresAt; a zero ExpiresAt means durable until
// explicitly revoked (project codes).
type Credential struct {
	Token     string         `json:"token"`
	Email     string         `json:"email,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	ExpiresAt time.Time      `json:"expires_at,omitzero"`
	Used      bool           `json:"used"`
	UsedAt    *time.Time     `json:"used_at,omitempty"`
	Meta      CredentialMeta `json:"metadata"`
}

// Expired reports whether the credential's TTL has elapsed at ref time.
// Durable credentials never expire.
func (c Credential) Expired(ref time.Time) bool {
	return !c.ExpiresAt.IsZero() && c.ExpiresAt.Before(ref)
}

// CredentialMeta replaces the original's open metadata bag with an
// explicit field set per credential method.
type CredentialMeta struct {
	Method    string           `json:"method"`
	Issuer    string           `json:"issuer,omitempty"`
	BaseURL   string           `json:"base_url,omitempty"`
	Overrides ProfileOverrides `json:"overrides,omitzero"`
	// OwnerKey is set on project codes and recovery codes: the identity
	// key the credential belongs to.
	OwnerKey string `json:"owner_key,omitempty"`
	// SecretHash holds the bcrypt hash for credentials whose value is
	// never stored in the clear (recovery codes).
	SecretHash string `json:"secret_hash,omitempty"`
}

// IssuedMagicLink is what the token generator hands back to callers.
type IssuedMagicLink struct {
	Token     string    `json:"token"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}
