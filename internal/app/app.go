package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/smarthubultra/identity-service/internal/config"
	"github.com/smarthubultra/identity-service/internal/health"
	"github.com/smarthubultra/identity-service/internal/http/handler"
	"github.com/smarthubultra/identity-service/internal/http/router"
	"github.com/smarthubultra/identity-service/internal/observability"
	"github.com/smarthubultra/identity-service/internal/repository"
	"github.com/smarthubultra/identity-service/internal/security"
	"github.com/smarthubultra/identity-service/internal/service"
)

type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	Server        *http.Server
	Observability *observability.Runtime
	Sweeper       *service.SweeperService
	Credentials   *service.RedisCredentialStore
	Readiness     *health.ProbeRunner

	redis *redis.Client
}

// Build wires the whole service from configuration: storage, services,
// handlers, router and the HTTP server. Nothing starts running until
// Run.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	runtime, err := observability.InitRuntime(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	db, err := repository.Open(cfg.DatabaseURL, cfg.SQLitePath)
	if err != nil {
		return nil, err
	}
	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})

	users := repository.NewUserRepository(db)
	sessions := repository.NewSessionRepository(db)
	fingerprints := repository.NewFingerprintRepository(db)
	audits := repository.NewAuditRepository(db)

	store := service.NewRedisCredentialStore(redisClient)
	identity := service.NewIdentityService(users)
	tokens := service.NewTokenService(store, cfg.SignInBaseURL, cfg.MagicLinkTTL, cfg.InstanceCodeTTL, cfg.ProjectCodeLength, cfg.ProjectCodeAttempts)
	sessionSvc := service.NewSessionService(sessions, users, identity, tokens, store, logger)
	jwtMgr := security.NewJWTManager(cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTSecret)

	var mailer service.Mailer = service.NoopMailer{}
	if cfg.MailAPIKey != "" {
		mailer = service.NewHTTPMailer(cfg.MailEndpoint, cfg.MailAPIKey, cfg.MailFrom)
	}
	adminSvc := service.NewAdminService(users, audits, identity, tokens, mailer, jwtMgr, cfg.AdminOverrideSecret, cfg.JWTTTL, logger)
	integrity := service.NewIntegrityService(fingerprints, string(cfg.MissingFingerprint))
	sweeper := service.NewSweeperService(store, users, sessions, audits, cfg.GuestTTL, cfg.SessionTTL, logger)

	if err := identity.EnsureCoreAccounts(ctx); err != nil {
		return nil, err
	}

	readiness := health.NewProbeRunner(2*time.Second, 5*time.Second,
		health.Ping("database", func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}),
		health.Ping("redis", func(ctx context.Context) error {
			return store.Ping(ctx)
		}),
	)

	h := router.NewRouter(router.Dependencies{
		AuthHandler:       handler.NewAuthHandler(tokens, sessionSvc, mailer, jwtMgr, cfg.JWTTTL, logger),
		AdminHandler:      handler.NewAdminHandler(adminSvc, tokens),
		BotHandler:        handler.NewBotHandler(integrity),
		JWTManager:        jwtMgr,
		CORSOrigins:       cfg.CORSOrigins,
		APIRateLimitRPM:   cfg.APIRateLimitRPM,
		IssueRateLimitRPM: cfg.AuthRateLimitRPM,
		Readiness:         readiness,
		EnableOTelHTTP:    cfg.OTELEnabled,
	})

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	return &App{
		Config:        cfg,
		Logger:        logger,
		Server:        server,
		Observability: runtime,
		Sweeper:       sweeper,
		Credentials:   store,
		Readiness:     readiness,
		redis:         redisClient,
	}, nil
}

// Run serves HTTP and the background sweeper until ctx is cancelled,
// then drains both and shuts observability down.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.Info("http server listening", slog.String("addr", a.Server.Addr))
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return a.Sweeper.Run(ctx, a.Config.SweepInterval)
	})
	g.Go(func() error {
		<-ctx.Done()
		drain, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return a.Server.Shutdown(drain)
	})

	err := g.Wait()
	a.shutdown()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *App) shutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.Logger.Warn("redis close failed", slog.String("error", err.Error()))
		}
	}
	if a.Observability != nil {
		if err := a.Observability.Shutdown(shutdownCtx); err != nil {
			a.Logger.Warn("observability shutdown failed", slog.String("error", err.Error()))
		}
	}
}
