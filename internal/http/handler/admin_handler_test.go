package handler

import (
	"net/http"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"github.com/smarthubultra/identity-service/internal/domain"
	"github.com/smarthubultra/identity-service/internal/security"
	"github.com/smarthubultra/identity-service/internal/service"
)

func adminClaims(email string) *security.Claims {
	return &security.Claims{
		Email:            email,
		Admin:            true,
		Role:             domain.RoleAdmin,
		AccessTier:       domain.TierControl,
		RegisteredClaims: jwt.RegisteredClaims{Subject: service.SanitizeKey(email)},
	}
}

func memberClaims(email string) *security.Claims {
	return &security.Claims{
		Email:            email,
		Role:             domain.RoleUser,
		AccessTier:       domain.TierMember,
		RegisteredClaims: jwt.RegisteredClaims{Subject: service.SanitizeKey(email)},
	}
}

func TestGrantByAdminCaller(t *testing.T) {
	env := newHandlerEnv(t)

	rec := perform(t, env.admin.Grant, service.GrantRequest{TargetEmail: "newadmin@example.com"}, adminClaims("boss@smarthubultra.dev"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var out service.GrantResult
	decodeData(t, rec, &out)
	if out.Profile.Role != domain.RoleAdmin {
		t.Fatalf("target role = %q, want admin", out.Profile.Role)
	}
	claims, err := env.jwt.VerifyIDToken(out.Token)
	if err != nil {
		t.Fatalf("verify elevated token: %v", err)
	}
	if !claims.Admin || claims.Email != "newadmin@example.com" {
		t.Fatalf("unexpected elevated claims %+v", claims)
	}
}

func TestGrantSelfElevationWithOverrideSecret(t *testing.T) {
	env := newHandlerEnv(t)

	rec := perform(t, env.admin.Grant, service.GrantRequest{
		TargetEmail:    "member@example.com",
		OverrideSecret: "let-me-in",
	}, memberClaims("member@example.com"))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var out service.GrantResult
	decodeData(t, rec, &out)
	if out.AccessTier != domain.TierExecutive {
		t.Fatalf("tier = %q, want executive default", out.AccessTier)
	}
}

func TestGrantOverrideCannotElevateOthers(t *testing.T) {
	env := newHandlerEnv(t)

	rec := perform(t, env.admin.Grant, service.GrantRequest{
		TargetEmail:    "victim@example.com",
		OverrideSecret: "let-me-in",
	}, memberClaims("member@example.com"))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403: %s", rec.Code, rec.Body.String())
	}
}

func TestGrantWrongSecretIsForbidden(t *testing.T) {
	env := newHandlerEnv(t)

	rec := perform(t, env.admin.Grant, service.GrantRequest{
		TargetEmail:    "member@example.com",
		OverrideSecret: "nope",
	}, memberClaims("member@example.com"))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestInviteDeliversLink(t *testing.T) {
	env := newHandlerEnv(t)

	rec := perform(t, env.admin.Invite, map[string]string{"email": "new@example.com", "role": "guest"}, adminClaims("boss@smarthubultra.dev"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var out service.InviteResult
	decodeData(t, rec, &out)
	if !out.Delivered || out.Link == "" {
		t.Fatalf("unexpected invite result %+v", out)
	}
	if len(env.mailer.sent) != 1 {
		t.Fatalf("expected one mail, got %d", len(env.mailer.sent))
	}
}

func TestInviteRequiresAdmin(t *testing.T) {
	env := newHandlerEnv(t)

	rec := perform(t, env.admin.Invite, map[string]string{"email": "new@example.com"}, memberClaims("member@example.com"))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestMintInstanceCode(t *testing.T) {
	env := newHandlerEnv(t)

	rec := perform(t, env.admin.MintInstanceCode, mintInstanceCodeRequest{TTLSeconds: 3600}, adminClaims("boss@smarthubultra.dev"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var out mintInstanceCodeResponse
	decodeData(t, rec, &out)
	if len(out.Code) != 8 {
		t.Fatalf("code = %q, want 8 digits", out.Code)
	}

	redeem := perform(t, env.auth.RedeemInstanceCode, map[string]string{"code": out.Code, "email": "team@example.com"}, nil)
	if redeem.Code != http.StatusOK {
		t.Fatalf("redeem of minted code = %d: %s", redeem.Code, redeem.Body.String())
	}
}

func TestMintInstanceCodeEmptyBodyUsesDefaults(t *testing.T) {
	env := newHandlerEnv(t)

	rec := perform(t, env.admin.MintInstanceCode, nil, adminClaims("boss@smarthubultra.dev"))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
}
