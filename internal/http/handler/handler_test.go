package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/smarthubultra/identity-service/internal/http/middleware"
	"github.com/smarthubultra/identity-service/internal/repository"
	"github.com/smarthubultra/identity-service/internal/security"
	"github.com/smarthubultra/identity-service/internal/service"
)

type handlerEnv struct {
	auth  *AuthHandler
	admin *AdminHandler
	bots  *BotHandler

	jwt       *security.JWTManager
	tokens    *service.TokenService
	sessions  *service.SessionService
	adminSvc  *service.AdminService
	integrity *service.IntegrityService
	store     service.CredentialStore
	mailer    *scriptedMailer
}

// scriptedMailer records sends and fails on demand.
type scriptedMailer struct {
	fail bool
	sent []service.Message
}

func (m *scriptedMailer) Send(_ context.Context, msg service.Message) error {
	if m.fail {
		return errors.New("smtp unreachable")
	}
	m.sent = append(m.sent, msg)
	return nil
}

func newHandlerEnv(t *testing.T) *handlerEnv {
	t.Helper()

	db, err := repository.Open("", filepath.Join(t.TempDir(), "handler.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	users := repository.NewUserRepository(db)
	sessionsRepo := repository.NewSessionRepository(db)
	fingerprints := repository.NewFingerprintRepository(db)
	audits := repository.NewAuditRepository(db)

	store := service.NewRedisCredentialStore(client)
	identity := service.NewIdentityService(users)
	tokens := service.NewTokenService(store, "https://smarthub.test/signin", 0, 0, 0, 0)
	sessions := service.NewSessionService(sessionsRepo, users, identity, tokens, store, slog.Default())
	jwtMgr := security.NewJWTManager("identity-service-test", "smarthub-ultra", "handler-test-secret")
	mailer := &scriptedMailer{}
	adminSvc := service.NewAdminService(users, audits, identity, tokens, mailer, jwtMgr, "let-me-in", time.Hour, slog.Default())
	integrity := service.NewIntegrityService(fingerprints, service.PolicyAllow)

	return &handlerEnv{
		auth:      NewAuthHandler(tokens, sessions, mailer, jwtMgr, time.Hour, slog.Default()),
		admin:     NewAdminHandler(adminSvc, tokens),
		bots:      NewBotHandler(integrity),
		jwt:       jwtMgr,
		tokens:    tokens,
		sessions:  sessions,
		adminSvc:  adminSvc,
		integrity: integrity,
		store:     store,
		mailer:    mailer,
	}
}

// perform runs a handler directly with an optional JSON body and
// optional pre-verified claims in the request context.
func perform(t *testing.T, h http.HandlerFunc, body interface{}, claims *security.Claims) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(http.MethodPost, "/", reader)
	req.Header.Set("Content-Type", "application/json")
	if claims != nil {
		req = req.WithContext(context.WithValue(req.Context(), middleware.ClaimsContextKey, claims))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

// decodeData unwraps the response envelope's data field into dst.
func decodeData(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	var envelope struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if !envelope.Success {
		t.Fatalf("expected success envelope, got %s", rec.Body.String())
	}
	if err := json.Unmarshal(envelope.Data, dst); err != nil {
		t.Fatalf("decode data: %v", err)
	}
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var envelope struct {
		Error *struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	if envelope.Error == nil {
		t.Fatalf("expected error envelope, got %s", rec.Body.String())
	}
	return envelope.Error.Code
}
