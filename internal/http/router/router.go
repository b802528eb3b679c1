package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/smarthubultra/identity-service/internal/health"
	"github.com/smarthubultra/identity-service/internal/http/handler"
	"github.com/smarthubultra/identity-service/internal/http/middleware"
	"github.com/smarthubultra/identity-service/internal/http/response"
	"github.com/smarthubultra/identity-service/internal/security"
)

type Dependencies struct {
	AuthHandler       *handler.AuthHandler
	AdminHandler      *handler.AdminHandler
	BotHandler        *handler.BotHandler
	JWTManager        *security.JWTManager
	CORSOrigins       []string
	APIRateLimitRPM   int
	IssueRateLimitRPM int
	GlobalRateLimiter func(http.Handler) http.Handler
	IssueRateLimiter  func(http.Handler) http.Handler
	Readiness         *health.ProbeRunner
	EnableOTelHTTP    bool
}

// NewRouter wires the HTTP surface. Credential-issuing routes sit behind
// a tighter per-client limiter than the rest of the API.
func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.StructuredRequestLogger)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(dep.CORSOrigins))
	r.Use(middleware.BodyLimit(1 << 20))
	if dep.GlobalRateLimiter != nil {
		r.Use(dep.GlobalRateLimiter)
	} else {
		r.Use(middleware.NewRateLimiter(dep.APIRateLimitRPM, time.Minute).Middleware())
	}

	issueLimiter := dep.IssueRateLimiter
	if issueLimiter == nil {
		issueLimiter = middleware.NewScopedRateLimiter(dep.IssueRateLimitRPM, time.Minute, "issue", middleware.SubjectOrIPKeyFunc(dep.JWTManager)).Middleware()
	}

	r.Get("/healthz/live", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/healthz/ready", func(w http.ResponseWriter, r *http.Request) {
		if dep.Readiness == nil {
			response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": []any{}})
			return
		}
		ready, results := dep.Readiness.Ready(r.Context())
		if ready {
			response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": results})
			return
		}
		response.Error(w, r, http.StatusServiceUnavailable, "DEPENDENCY_UNREADY", "dependencies are not ready", map[string]any{"checks": results})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(issueLimiter).Post("/magic-link", dep.AuthHandler.IssueMagicLink)
			r.Post("/magic-link/redeem", dep.AuthHandler.RedeemMagicLink)
			r.Post("/instance-code/redeem", dep.AuthHandler.RedeemInstanceCode)
			r.With(issueLimiter).Post("/guest", dep.AuthHandler.StartGuest)
			r.With(issueLimiter).Post("/project", dep.AuthHandler.StartProject)
			r.Post("/project/resume", dep.AuthHandler.ResumeProject)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(dep.JWTManager))
			r.Post("/grant", dep.AdminHandler.Grant)
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAdmin)
				r.Post("/invite", dep.AdminHandler.Invite)
				r.With(issueLimiter).Post("/instance-codes", dep.AdminHandler.MintInstanceCode)
			})
		})

		r.Route("/bots", func(r chi.Router) {
			r.Post("/fingerprint", dep.BotHandler.Fingerprint)
			r.Post("/validate", dep.BotHandler.Validate)
		})
	})

	var h http.Handler = r
	if dep.EnableOTelHTTP {
		h = otelhttp.NewHandler(r, "http.server")
	}
	return h
}
