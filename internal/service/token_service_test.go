package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/smarthubultra/identity-service/internal/domain"
	"github.com/smarthubultra/identity-service/internal/security"
)

func newTokenServiceForTest(t *testing.T) (*TokenService, *RedisCredentialStore) {
	t.Helper()
	store := newStoreForTest(t)
	return NewTokenService(store, "https://smarthubultra.dev/signin", 0, 0, 0, 0), store
}

func TestIssueMagicLink(t *testing.T) {
	svc, store := newTokenServiceForTest(t)
	ctx := context.Background()

	link, err := svc.IssueMagicLink(ctx, "  User@Example.COM ", domain.CredentialMeta{})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !strings.HasPrefix(link.Token, "ml_") {
		t.Fatalf("unexpected token shape: %q", link.Token)
	}
	if !strings.HasPrefix(link.URL, "https://smarthubultra.dev/signin?magicLink=ml_") {
		t.Fatalf("unexpected url: %q", link.URL)
	}
	untilExpiry := time.Until(link.ExpiresAt)
	if untilExpiry < 29*time.Minute || untilExpiry > 31*time.Minute {
		t.Fatalf("expected ~30m expiry, got %v", untilExpiry)
	}

	cred, err := store.Get(ctx, domain.NamespaceMagicLink, link.Token)
	if err != nil {
		t.Fatalf("get stored credential: %v", err)
	}
	if cred.Email != "user@example.com" {
		t.Fatalf("email not normalized: %q", cred.Email)
	}
	if cred.Meta.Method != domain.MethodEmailLink {
		t.Fatalf("expected default method email-link, got %q", cred.Meta.Method)
	}
}

func TestIssueMagicLinkRequiresEmail(t *testing.T) {
	svc, _ := newTokenServiceForTest(t)

	_, err := svc.IssueMagicLink(context.Background(), "   ", domain.CredentialMeta{})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestIssueInstanceCode(t *testing.T) {
	svc, store := newTokenServiceForTest(t)
	ctx := context.Background()

	cred, err := svc.IssueInstanceCode(ctx, 0, "boss@smarthubultra.dev")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if len(cred.Token) != 8 {
		t.Fatalf("expected 8-digit code, got %q", cred.Token)
	}
	for _, r := range cred.Token {
		if r < '0' || r > '9' {
			t.Fatalf("non-digit in code %q", cred.Token)
		}
	}
	untilExpiry := time.Until(cred.ExpiresAt)
	if untilExpiry < 23*time.Hour || untilExpiry > 25*time.Hour {
		t.Fatalf("expected ~24h expiry, got %v", untilExpiry)
	}

	stored, err := store.Get(ctx, domain.NamespaceInstanceCode, cred.Token)
	if err != nil {
		t.Fatalf("get stored code: %v", err)
	}
	if stored.Meta.Issuer != "boss@smarthubultra.dev" {
		t.Fatalf("issuer not recorded: %+v", stored.Meta)
	}
}

func TestIssueProjectCode(t *testing.T) {
	svc, store := newTokenServiceForTest(t)
	ctx := context.Background()

	code, err := svc.IssueProjectCode(ctx, "owner123")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if len(code) != 6 {
		t.Fatalf("expected 6-char code, got %q", code)
	}
	for _, r := range code {
		if !strings.ContainsRune(security.ProjectCodeAlphabet, r) {
			t.Fatalf("code %q contains %q outside the alphabet", code, r)
		}
	}

	cred, err := store.Get(ctx, domain.NamespaceProjectCode, code)
	if err != nil {
		t.Fatalf("get stored code: %v", err)
	}
	if !cred.ExpiresAt.IsZero() {
		t.Fatalf("project codes must be durable, got expiry %v", cred.ExpiresAt)
	}
	if cred.Meta.OwnerKey != "owner123" {
		t.Fatalf("owner not recorded: %+v", cred.Meta)
	}
}

// exhaustedStore loses every reservation, simulating a full code space.
type exhaustedStore struct{ CredentialStore }

func (exhaustedStore) Reserve(context.Context, string, *domain.Credential) (bool, error) {
	return false, nil
}

func TestIssueProjectCodeExhausted(t *testing.T) {
	svc := NewTokenService(exhaustedStore{}, "https://smarthubultra.dev/signin", 0, 0, 6, 3)

	_, err := svc.IssueProjectCode(context.Background(), "")
	if !errors.Is(err, ErrExhaustedAttempts) {
		t.Fatalf("expected ErrExhaustedAttempts, got %v", err)
	}
}

func TestRecoveryCodeRoundTrip(t *testing.T) {
	svc, store := newTokenServiceForTest(t)
	ctx := context.Background()

	code, err := svc.IssueRecoveryCode(ctx, "userexamplecom", 6)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if len(code) != 6 {
		t.Fatalf("expected 6-digit code, got %q", code)
	}

	if err := svc.VerifyRecoveryCode(ctx, "userexamplecom", code); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := svc.VerifyRecoveryCode(ctx, "userexamplecom", "000000"); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}

	stored, err := store.Get(ctx, domain.NamespaceRecoveryCode, "userexamplecom")
	if err != nil {
		t.Fatalf("get stored code: %v", err)
	}
	if stored.Meta.SecretHash == "" || strings.Contains(stored.Meta.SecretHash, code) {
		t.Fatalf("code must be stored hashed only")
	}
}
