package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// MissingFingerprintPolicy decides what happens when a bot has no
// recorded behavioral fingerprint.
type MissingFingerprintPolicy string

const (
	MissingFingerprintAllow MissingFingerprintPolicy = "allow"
	MissingFingerprintBlock MissingFingerprintPolicy = "block"
)

type Config struct {
	Profile  string
	HTTPAddr string

	// DatabaseURL holds the Postgres DSN; empty selects embedded sqlite.
	DatabaseURL string
	SQLitePath  string
	RedisAddr   string

	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
	JWTTTL      time.Duration

	AdminOverrideSecret string

	MailAPIKey   string
	MailFrom     string
	MailEndpoint string

	SignInBaseURL string

	MagicLinkTTL    time.Duration
	InstanceCodeTTL time.Duration
	GuestTTL        time.Duration
	SessionTTL      time.Duration
	SweepInterval   time.Duration

	ProjectCodeLength   int
	ProjectCodeAttempts int

	MissingFingerprint MissingFingerprintPolicy

	APIRateLimitRPM  int
	AuthRateLimitRPM int
	CORSOrigins      []string

	OTELEnabled               bool
	OTELExporterOTLPEndpoint  string
	OTELExporterOTLPInsecure  bool
	OTELServiceName           string
	OTELEnvironment           string
	OTELMetricsExportInterval time.Duration
}

// Load reads configuration from the environment, applying defaults and
// validating the result. The outcome is recorded as a metric either way.
func Load(ctx context.Context) (*Config, error) {
	cfg, err := load()
	profile := ""
	if cfg != nil {
		profile = cfg.Profile
	}
	if err != nil {
		recordConfigValidationEvent(ctx, profile, "failure", classifyConfigLoadError(err))
		return nil, err
	}
	recordConfigValidationEvent(ctx, profile, "success", "none")
	return cfg, nil
}

func load() (*Config, error) {
	cfg := &Config{
		Profile:     getEnv("IDENTITY_PROFILE", "dev"),
		HTTPAddr:    getEnv("IDENTITY_HTTP_ADDR", ":8080"),
		DatabaseURL: os.Getenv("IDENTITY_DATABASE_URL"),
		SQLitePath:  getEnv("IDENTITY_SQLITE_PATH", "identity.db"),
		RedisAddr:   getEnv("IDENTITY_REDIS_ADDR", "localhost:6379"),

		JWTSecret:   os.Getenv("IDENTITY_JWT_SECRET"),
		JWTIssuer:   getEnv("IDENTITY_JWT_ISSUER", "smarthub-identity"),
		JWTAudience: getEnv("IDENTITY_JWT_AUDIENCE", "smarthub"),

		AdminOverrideSecret: os.Getenv("IDENTITY_ADMIN_OVERRIDE_SECRET"),

		MailAPIKey:   os.Getenv("IDENTITY_MAIL_API_KEY"),
		MailFrom:     getEnv("IDENTITY_MAIL_FROM", "no-reply@smarthubultra.dev"),
		MailEndpoint: getEnv("IDENTITY_MAIL_ENDPOINT", "https://api.sendgrid.com/v3/mail/send"),

		SignInBaseURL: getEnv("IDENTITY_SIGNIN_BASE_URL", "https://smarthubultra.web.app"),

		OTELExporterOTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTELServiceName:          getEnv("OTEL_SERVICE_NAME", "smarthub-identity"),
		OTELEnvironment:          getEnv("OTEL_ENVIRONMENT", "dev"),
	}

	var err error
	if cfg.JWTTTL, err = getDuration("IDENTITY_JWT_TTL", time.Hour); err != nil {
		return cfg, err
	}
	if cfg.MagicLinkTTL, err = getDuration("IDENTITY_MAGIC_LINK_TTL", 30*time.Minute); err != nil {
		return cfg, err
	}
	if cfg.InstanceCodeTTL, err = getDuration("IDENTITY_INSTANCE_CODE_TTL", 24*time.Hour); err != nil {
		return cfg, err
	}
	if cfg.GuestTTL, err = getDuration("IDENTITY_GUEST_TTL", 48*time.Hour); err != nil {
		return cfg, err
	}
	if cfg.SessionTTL, err = getDuration("IDENTITY_SESSION_TTL", 48*time.Hour); err != nil {
		return cfg, err
	}
	if cfg.SweepInterval, err = getDuration("IDENTITY_SWEEP_INTERVAL", time.Hour); err != nil {
		return cfg, err
	}
	if cfg.OTELMetricsExportInterval, err = getDuration("OTEL_METRICS_EXPORT_INTERVAL", 30*time.Second); err != nil {
		return cfg, err
	}
	if cfg.ProjectCodeLength, err = getInt("IDENTITY_PROJECT_CODE_LENGTH", 6); err != nil {
		return cfg, err
	}
	if cfg.ProjectCodeAttempts, err = getInt("IDENTITY_PROJECT_CODE_ATTEMPTS", 5); err != nil {
		return cfg, err
	}
	if cfg.APIRateLimitRPM, err = getInt("IDENTITY_API_RATE_LIMIT_RPM", 300); err != nil {
		return cfg, err
	}
	if cfg.AuthRateLimitRPM, err = getInt("IDENTITY_AUTH_RATE_LIMIT_RPM", 30); err != nil {
		return cfg, err
	}
	if cfg.OTELEnabled, err = getBool("OTEL_ENABLED", false); err != nil {
		return cfg, err
	}
	if cfg.OTELExporterOTLPInsecure, err = getBool("OTEL_EXPORTER_OTLP_INSECURE", true); err != nil {
		return cfg, err
	}

	if origins := os.Getenv("IDENTITY_CORS_ORIGINS"); origins != "" {
		for _, origin := range strings.Split(origins, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				cfg.CORSOrigins = append(cfg.CORSOrigins, origin)
			}
		}
	}

	policy := MissingFingerprintPolicy(getEnv("IDENTITY_MISSING_FINGERPRINT_POLICY", string(MissingFingerprintAllow)))
	switch policy {
	case MissingFingerprintAllow, MissingFingerprintBlock:
		cfg.MissingFingerprint = policy
	default:
		return cfg, fmt.Errorf("validate config: IDENTITY_MISSING_FINGERPRINT_POLICY must be allow or block, got %q", policy)
	}

	return cfg, cfg.validate()
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("validate config: IDENTITY_JWT_SECRET is required")
	}
	if c.MagicLinkTTL <= 0 {
		return fmt.Errorf("validate config: IDENTITY_MAGIC_LINK_TTL must be positive")
	}
	if c.InstanceCodeTTL <= 0 {
		return fmt.Errorf("validate config: IDENTITY_INSTANCE_CODE_TTL must be positive")
	}
	if c.GuestTTL <= 0 || c.SessionTTL <= 0 {
		return fmt.Errorf("validate config: guest and session TTLs must be positive")
	}
	if c.ProjectCodeLength < 4 || c.ProjectCodeLength > 8 {
		return fmt.Errorf("validate config: IDENTITY_PROJECT_CODE_LENGTH must be between 4 and 8")
	}
	if c.ProjectCodeAttempts < 1 {
		return fmt.Errorf("validate config: IDENTITY_PROJECT_CODE_ATTEMPTS must be at least 1")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return d, nil
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}

func getBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("parse %s: %w", key, err)
	}
	return b, nil
}
