package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/smarthubultra/identity-service/internal/domain"
	"github.com/smarthubultra/identity-service/internal/observability"
	"github.com/smarthubultra/identity-service/internal/security"
)

// TokenService mints the sign-in credentials: magic links, instance
// codes, project codes and recovery codes. Everything it issues lands in
// the credential store; nothing here touches profiles or sessions.
type TokenService struct {
	store           CredentialStore
	signInBaseURL   string
	magicLinkTTL    time.Duration
	instanceCodeTTL time.Duration
	projectCodeLen  int
	projectAttempts int
}

func NewTokenService(store CredentialStore, signInBaseURL string, magicLinkTTL, instanceCodeTTL time.Duration, projectCodeLen, projectAttempts int) *TokenService {
	if magicLinkTTL <= 0 {
		magicLinkTTL = 30 * time.Minute
	}
	if instanceCodeTTL <= 0 {
		instanceCodeTTL = 24 * time.Hour
	}
	if projectCodeLen <= 0 {
		projectCodeLen = 6
	}
	if projectAttempts <= 0 {
		projectAttempts = 5
	}
	return &TokenService{
		store:           store,
		signInBaseURL:   strings.TrimRight(signInBaseURL, "/"),
		magicLinkTTL:    magicLinkTTL,
		instanceCodeTTL: instanceCodeTTL,
		projectCodeLen:  projectCodeLen,
		projectAttempts: projectAttempts,
	}
}

// IssueMagicLink mints a one-shot sign-in token for email and returns
// the shareable URL. The credential carries the method and any profile
// overrides to apply at redemption.
func (s *TokenService) IssueMagicLink(ctx context.Context, email string, meta domain.CredentialMeta) (*domain.IssuedMagicLink, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, fmt.Errorf("%w: email required", ErrInvalidArgument)
	}
	if meta.Method == "" {
		meta.Method = domain.MethodEmailLink
	}
	now := time.Now().UTC()
	token := security.NewMagicLinkToken(now)
	baseURL := meta.BaseURL
	if baseURL == "" {
		baseURL = s.signInBaseURL
	}
	cred := &domain.Credential{
		Token:     token,
		Email:     email,
		CreatedAt: now,
		ExpiresAt: now.Add(s.magicLinkTTL),
		Meta:      meta,
	}
	if err := s.store.Put(ctx, domain.NamespaceMagicLink, cred); err != nil {
		return nil, err
	}
	observability.RecordCredentialIssued(domain.NamespaceMagicLink, "issued")
	return &domain.IssuedMagicLink{
		Token:     token,
		URL:       baseURL + "?magicLink=" + token,
		ExpiresAt: cred.ExpiresAt,
	}, nil
}

// IssueInstanceCode mints a short numeric code redeemable by anyone who
// also presents an email. Zero ttl falls back to the configured default.
func (s *TokenService) IssueInstanceCode(ctx context.Context, ttl time.Duration, issuer string) (*domain.Credential, error) {
	if ttl <= 0 {
		ttl = s.instanceCodeTTL
	}
	now := time.Now().UTC()
	cred := &domain.Credential{
		Token:     security.NewNumericCode(8),
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
		Meta: domain.CredentialMeta{
			Method: domain.MethodInstanceCode,
			Issuer: issuer,
		},
	}
	if err := s.store.Put(ctx, domain.NamespaceInstanceCode, cred); err != nil {
		return nil, err
	}
	observability.RecordCredentialIssued(domain.NamespaceInstanceCode, "issued")
	return cred, nil
}

// IssueProjectCode reserves a fresh durable project code, retrying on
// collisions up to the configured attempt budget.
func (s *TokenService) IssueProjectCode(ctx context.Context, ownerKey string) (string, error) {
	now := time.Now().UTC()
	for attempt := 0; attempt < s.projectAttempts; attempt++ {
		code := security.NewProjectCode(s.projectCodeLen)
		won, err := s.store.Reserve(ctx, domain.NamespaceProjectCode, &domain.Credential{
			Token:     code,
			CreatedAt: now,
			Meta: domain.CredentialMeta{
				Method:   domain.MethodProjectCode,
				OwnerKey: ownerKey,
			},
		})
		if err != nil {
			return "", err
		}
		if won {
			observability.RecordCredentialIssued(domain.NamespaceProjectCode, "issued")
			return code, nil
		}
	}
	return "", fmt.Errorf("issue project code: %w", ErrExhaustedAttempts)
}

// IssueRecoveryCode mints a numeric recovery code for an identity. The
// clear code is returned exactly once; only its bcrypt hash is stored.
func (s *TokenService) IssueRecoveryCode(ctx context.Context, identityKey string, digits int) (string, error) {
	if identityKey == "" {
		return "", fmt.Errorf("%w: identity key required", ErrInvalidArgument)
	}
	if digits <= 0 {
		digits = 6
	}
	code := security.NewNumericCode(digits)
	hash, err := security.HashRecoveryCode(code)
	if err != nil {
		return "", fmt.Errorf("hash recovery code: %w", err)
	}
	cred := &domain.Credential{
		Token:     identityKey,
		CreatedAt: time.Now().UTC(),
		Meta: domain.CredentialMeta{
			OwnerKey:   identityKey,
			SecretHash: hash,
		},
	}
	if err := s.store.Put(ctx, domain.NamespaceRecoveryCode, cred); err != nil {
		return "", err
	}
	observability.RecordCredentialIssued(domain.NamespaceRecoveryCode, "issued")
	return code, nil
}

// VerifyRecoveryCode checks a presented code against the stored hash.
func (s *TokenService) VerifyRecoveryCode(ctx context.Context, identityKey, code string) error {
	cred, err := s.store.Get(ctx, domain.NamespaceRecoveryCode, identityKey)
	if err != nil {
		return err
	}
	if !security.CheckRecoveryCode(cred.Meta.SecretHash, code) {
		return fmt.Errorf("%w: recovery code mismatch", ErrPermissionDenied)
	}
	return nil
}
