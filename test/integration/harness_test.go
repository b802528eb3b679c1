package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/smarthubultra/identity-service/internal/http/handler"
	"github.com/smarthubultra/identity-service/internal/http/router"
	"github.com/smarthubultra/identity-service/internal/repository"
	"github.com/smarthubultra/identity-service/internal/security"
	"github.com/smarthubultra/identity-service/internal/service"
)

const testOverrideSecret = "integration-override"

type testServer struct {
	URL    string
	Client *http.Client
	JWT    *security.JWTManager

	Tokens  *service.TokenService
	Sweeper *service.SweeperService
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// newIdentityTestServer stands up the full HTTP stack on sqlite and
// miniredis behind an httptest server.
func newIdentityTestServer(t *testing.T) *testServer {
	t.Helper()

	db, err := repository.Open("", filepath.Join(t.TempDir(), "integration.db"))
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	users := repository.NewUserRepository(db)
	sessionsRepo := repository.NewSessionRepository(db)
	fingerprints := repository.NewFingerprintRepository(db)
	audits := repository.NewAuditRepository(db)

	store := service.NewRedisCredentialStore(client)
	identity := service.NewIdentityService(users)
	tokens := service.NewTokenService(store, "https://smarthub.test/signin", 0, 0, 0, 0)
	sessions := service.NewSessionService(sessionsRepo, users, identity, tokens, store, logger)
	jwtMgr := security.NewJWTManager("smarthub-identity", "smarthub", "integration-secret")
	adminSvc := service.NewAdminService(users, audits, identity, tokens, noopMailer{}, jwtMgr, testOverrideSecret, time.Hour, logger)
	integrity := service.NewIntegrityService(fingerprints, service.PolicyAllow)
	sweeper := service.NewSweeperService(store, users, sessionsRepo, audits, 48*time.Hour, 48*time.Hour, logger)

	if err := identity.EnsureCoreAccounts(context.Background()); err != nil {
		t.Fatalf("ensure core accounts: %v", err)
	}

	h := router.NewRouter(router.Dependencies{
		AuthHandler:       handler.NewAuthHandler(tokens, sessions, noopMailer{}, jwtMgr, time.Hour, logger),
		AdminHandler:      handler.NewAdminHandler(adminSvc, tokens),
		BotHandler:        handler.NewBotHandler(integrity),
		JWTManager:        jwtMgr,
		APIRateLimitRPM:   10000,
		IssueRateLimitRPM: 10000,
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	return &testServer{
		URL:     srv.URL,
		Client:  srv.Client(),
		JWT:     jwtMgr,
		Tokens:  tokens,
		Sweeper: sweeper,
	}
}

type noopMailer struct{}

func (noopMailer) Send(context.Context, service.Message) error { return nil }

// doJSON performs one request and decodes the response envelope.
func doJSON(t *testing.T, ts *testServer, method, path string, headers map[string]string, body any) (*http.Response, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, ts.URL+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := ts.Client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return resp, env
}

func decodeInto(t *testing.T, env envelope, dst any) {
	t.Helper()
	if !env.Success {
		t.Fatalf("expected success envelope, error=%+v", env.Error)
	}
	if err := json.Unmarshal(env.Data, dst); err != nil {
		t.Fatalf("decode data: %v", err)
	}
}
