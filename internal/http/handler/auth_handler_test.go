package handler

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/smarthubultra/identity-service/internal/domain"
)

func magicLinkToken(t *testing.T, link string) string {
	t.Helper()
	u, err := url.Parse(link)
	if err != nil {
		t.Fatalf("parse magic link url: %v", err)
	}
	token := u.Query().Get("magicLink")
	if token == "" {
		t.Fatalf("no magicLink token in %q", link)
	}
	return token
}

func TestIssueMagicLinkReturnsLinkAndMails(t *testing.T) {
	env := newHandlerEnv(t)

	rec := perform(t, env.auth.IssueMagicLink, map[string]string{"email": "Casey@Example.com"}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	var out issueMagicLinkResponse
	decodeData(t, rec, &out)
	if !strings.HasPrefix(out.URL, "https://smarthub.test/signin?magicLink=ml_") {
		t.Fatalf("unexpected link %q", out.URL)
	}
	if !out.Delivered {
		t.Fatalf("expected delivered=true")
	}
	if len(env.mailer.sent) != 1 || env.mailer.sent[0].To != "Casey@Example.com" {
		t.Fatalf("mailer saw %+v", env.mailer.sent)
	}
}

func TestIssueMagicLinkSurvivesMailFailure(t *testing.T) {
	env := newHandlerEnv(t)
	env.mailer.fail = true

	rec := perform(t, env.auth.IssueMagicLink, map[string]string{"email": "casey@example.com"}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
	var out issueMagicLinkResponse
	decodeData(t, rec, &out)
	if out.Delivered {
		t.Fatalf("expected delivered=false after mail failure")
	}
	if out.URL == "" {
		t.Fatalf("link must be returned even when mail fails")
	}
}

func TestIssueMagicLinkRequiresEmail(t *testing.T) {
	env := newHandlerEnv(t)

	rec := perform(t, env.auth.IssueMagicLink, map[string]string{}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if code := errorCode(t, rec); code != "INVALID_ARGUMENT" {
		t.Fatalf("error code = %q", code)
	}
}

func TestIssueMagicLinkRejectsAdminRole(t *testing.T) {
	env := newHandlerEnv(t)

	rec := perform(t, env.auth.IssueMagicLink, map[string]string{
		"email": "sneaky@example.com",
		"role":  domain.RoleAdmin,
	}, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	if code := errorCode(t, rec); code != "FORBIDDEN" {
		t.Fatalf("error code = %q", code)
	}
}

func TestRedeemMagicLinkFullFlow(t *testing.T) {
	env := newHandlerEnv(t)

	rec := perform(t, env.auth.IssueMagicLink, map[string]string{"email": "casey@example.com", "username": "casey"}, nil)
	var issued issueMagicLinkResponse
	decodeData(t, rec, &issued)
	token := magicLinkToken(t, issued.URL)

	rec = perform(t, env.auth.RedeemMagicLink, map[string]string{"token": token}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("redeem status = %d: %s", rec.Code, rec.Body.String())
	}
	var login loginResponse
	decodeData(t, rec, &login)
	if login.Profile == nil || login.Profile.Email != "casey@example.com" {
		t.Fatalf("unexpected profile %+v", login.Profile)
	}
	if login.Profile.Username != "casey" {
		t.Fatalf("username override not applied: %q", login.Profile.Username)
	}
	if login.Session == nil || login.Session.UserKey != login.Profile.Key {
		t.Fatalf("session not linked to profile: %+v", login.Session)
	}
	if login.Token == "" {
		t.Fatalf("expected a signed bearer token")
	}
	claims, err := env.jwt.VerifyIDToken(login.Token)
	if err != nil {
		t.Fatalf("verify issued token: %v", err)
	}
	if claims.Email != "casey@example.com" || claims.Admin {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestRedeemMagicLinkSecondUseIsGone(t *testing.T) {
	env := newHandlerEnv(t)

	rec := perform(t, env.auth.IssueMagicLink, map[string]string{"email": "casey@example.com"}, nil)
	var issued issueMagicLinkResponse
	decodeData(t, rec, &issued)
	token := magicLinkToken(t, issued.URL)

	if rec = perform(t, env.auth.RedeemMagicLink, map[string]string{"token": token}, nil); rec.Code != http.StatusOK {
		t.Fatalf("first redeem status = %d", rec.Code)
	}
	rec = perform(t, env.auth.RedeemMagicLink, map[string]string{"token": token}, nil)
	if rec.Code != http.StatusGone {
		t.Fatalf("second redeem status = %d, want 410", rec.Code)
	}
	if code := errorCode(t, rec); code != "CREDENTIAL_INVALID" {
		t.Fatalf("error code = %q", code)
	}
}

func TestRedeemMagicLinkUnknownTokenIs404(t *testing.T) {
	env := newHandlerEnv(t)

	rec := perform(t, env.auth.RedeemMagicLink, map[string]string{"token": "ml_nothere"}, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if code := errorCode(t, rec); code != "CREDENTIAL_NOT_FOUND" {
		t.Fatalf("error code = %q", code)
	}
}

func TestRedeemInstanceCodeFlow(t *testing.T) {
	env := newHandlerEnv(t)

	cred, err := env.tokens.IssueInstanceCode(context.Background(), 0, "boss@smarthubultra.dev")
	if err != nil {
		t.Fatalf("issue instance code: %v", err)
	}

	rec := perform(t, env.auth.RedeemInstanceCode, map[string]string{"code": cred.Token, "email": "team@example.com"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var login loginResponse
	decodeData(t, rec, &login)
	if login.Session.Method != domain.MethodInstanceCode {
		t.Fatalf("method = %q", login.Session.Method)
	}
	if login.Session.InstanceCode != cred.Token {
		t.Fatalf("instance code not recorded on session")
	}
}

func TestStartGuestSession(t *testing.T) {
	env := newHandlerEnv(t)

	rec := perform(t, env.auth.StartGuest, nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var login loginResponse
	decodeData(t, rec, &login)
	if login.Profile.Role != domain.RoleGuest {
		t.Fatalf("role = %q, want guest", login.Profile.Role)
	}
	if !strings.HasSuffix(login.Profile.Email, "@guest.smarthub") {
		t.Fatalf("guest email = %q", login.Profile.Email)
	}
}

func TestProjectStartAndResume(t *testing.T) {
	env := newHandlerEnv(t)

	rec := perform(t, env.auth.StartProject, nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("start status = %d: %s", rec.Code, rec.Body.String())
	}
	var started loginResponse
	decodeData(t, rec, &started)
	if len(started.ProjectCode) != 6 {
		t.Fatalf("project code = %q", started.ProjectCode)
	}

	rec = perform(t, env.auth.ResumeProject, map[string]string{"code": "  " + strings.ToLower(started.ProjectCode) + " "}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("resume status = %d: %s", rec.Code, rec.Body.String())
	}
	var resumed loginResponse
	decodeData(t, rec, &resumed)
	if resumed.Profile.Key != started.Profile.Key {
		t.Fatalf("resume resolved a different profile")
	}

	rec = perform(t, env.auth.ResumeProject, map[string]string{"code": "ZZZZ99"}, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown project code status = %d, want 404", rec.Code)
	}
}

func TestAuthHandlersRejectMalformedBody(t *testing.T) {
	env := newHandlerEnv(t)

	rec := perform(t, env.auth.RedeemMagicLink, nil, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty body status = %d, want 400", rec.Code)
	}
}
