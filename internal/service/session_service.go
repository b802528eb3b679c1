package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/smarthubultra/identity-service/internal/domain"
	"github.com/smarthubultra/identity-service/internal/observability"
	"github.com/smarthubultra/identity-service/internal/repository"
	"github.com/smarthubultra/identity-service/internal/security"
)

var guestNamePool = []string{
	"Nova Guest",
	"Pulse Guest",
	"Velocity Guest",
	"Orbit Guest",
	"Flux Guest",
}

// LoginResult pairs the resolved profile with the session created for
// it. The session is the caller's session context; persisting "current
// session" state is the caller's concern, not this service's.
type LoginResult struct {
	Profile *domain.UserProfile `json:"profile"`
	Session *domain.Session     `json:"session"`
	// ProjectCode is set on project logins only.
	ProjectCode string `json:"project_code,omitempty"`
}

// SessionService turns redeemed credentials into profiles and sessions.
type SessionService struct {
	sessions repository.SessionRepository
	identity *IdentityService
	tokens   *TokenService
	store    CredentialStore
	users    repository.UserRepository
	logger   *slog.Logger
}

func NewSessionService(sessions repository.SessionRepository, users repository.UserRepository, identity *IdentityService, tokens *TokenService, store CredentialStore, logger *slog.Logger) *SessionService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionService{
		sessions: sessions,
		identity: identity,
		tokens:   tokens,
		store:    store,
		users:    users,
		logger:   logger,
	}
}

// CreateSession writes one login event for the profile. The profile's
// session counter update is best effort: a counter failure is logged and
// swallowed, the session itself stands.
func (s *SessionService) CreateSession(ctx context.Context, profile *domain.UserProfile, method, instanceCode, userAgent string) (*domain.Session, error) {
	now := time.Now().UTC()
	session := &domain.Session{
		ID:           security.NewSessionID(now),
		UserKey:      profile.Key,
		Email:        profile.Email,
		Method:       method,
		InstanceCode: instanceCode,
		UserAgent:    userAgent,
		CreatedAt:    now,
	}
	if err := s.sessions.Create(session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	if err := s.users.TouchSession(profile.Key, now); err != nil {
		s.logger.Warn("session counter update failed",
			slog.String("user", profile.Key),
			slog.String("session", session.ID),
			slog.String("error", err.Error()))
	} else {
		profile.Sessions++
		profile.LastSessionAt = &now
	}
	observability.RecordSessionCreated(method)
	return session, nil
}

// RedeemMagicLink consumes a magic link token exactly once and signs the
// bearer in, applying any overrides the credential carries.
func (s *SessionService) RedeemMagicLink(ctx context.Context, token, userAgent string) (*LoginResult, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("%w: token required", ErrInvalidArgument)
	}
	cred, err := s.store.Redeem(ctx, domain.NamespaceMagicLink, token, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	overrides := cred.Meta.Overrides
	overrides.LastSignInMethod = cred.Meta.Method
	profile, err := s.identity.Resolve(ctx, cred.Email, overrides)
	if err != nil {
		return nil, err
	}
	session, err := s.CreateSession(ctx, profile, cred.Meta.Method, "", userAgent)
	if err != nil {
		return nil, err
	}
	observability.RecordCredentialRedeemed(domain.NamespaceMagicLink, "redeemed")
	return &LoginResult{Profile: profile, Session: session}, nil
}

// RedeemInstanceCode consumes an instance code for the given email. The
// code does not carry an identity; the presenter supplies one.
func (s *SessionService) RedeemInstanceCode(ctx context.Context, code, email, userAgent string) (*LoginResult, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, fmt.Errorf("%w: code required", ErrInvalidArgument)
	}
	if strings.TrimSpace(email) == "" {
		return nil, fmt.Errorf("%w: email required", ErrInvalidArgument)
	}
	if _, err := s.store.Redeem(ctx, domain.NamespaceInstanceCode, code, time.Now().UTC()); err != nil {
		return nil, err
	}
	profile, err := s.identity.Resolve(ctx, email, domain.ProfileOverrides{
		LastSignInMethod: domain.MethodInstanceCode,
	})
	if err != nil {
		return nil, err
	}
	session, err := s.CreateSession(ctx, profile, domain.MethodInstanceCode, code, userAgent)
	if err != nil {
		return nil, err
	}
	observability.RecordCredentialRedeemed(domain.NamespaceInstanceCode, "redeemed")
	return &LoginResult{Profile: profile, Session: session}, nil
}

// StartGuestSession fabricates an ephemeral guest identity and signs it
// in. Guests are reaped by the maintenance sweeper once stale.
func (s *SessionService) StartGuestSession(ctx context.Context, userAgent string) (*LoginResult, error) {
	now := time.Now().UTC()
	ms := now.UnixMilli()
	name := guestNamePool[ms%int64(len(guestNamePool))]
	email := fmt.Sprintf("guest+%d@guest.smarthub", ms)
	profile, err := s.identity.Resolve(ctx, email, domain.ProfileOverrides{
		Username:         name,
		Role:             domain.RoleGuest,
		AccessTier:       domain.TierGuest,
		LastSignInMethod: domain.MethodGuest,
		Guest:            &domain.GuestInfo{CreatedAt: &now, Label: name},
	})
	if err != nil {
		return nil, err
	}
	session, err := s.CreateSession(ctx, profile, domain.MethodGuest, "", userAgent)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Profile: profile, Session: session}, nil
}

// StartProjectSession reserves a fresh durable project code and creates
// the project identity behind it.
func (s *SessionService) StartProjectSession(ctx context.Context, userAgent string) (*LoginResult, error) {
	now := time.Now().UTC()
	code, err := s.tokens.IssueProjectCode(ctx, "")
	if err != nil {
		return nil, err
	}
	email := "project+" + strings.ToLower(code) + "@projects.smarthub"
	profile, err := s.identity.Resolve(ctx, email, domain.ProfileOverrides{
		Username:         "Project " + code,
		Role:             domain.RoleCreator,
		AccessTier:       domain.TierBuilder,
		LastSignInMethod: domain.MethodProjectCode,
		Project:          &domain.ProjectInfo{Code: code, CreatedAt: &now, Label: "Project " + code},
	})
	if err != nil {
		return nil, err
	}
	session, err := s.CreateSession(ctx, profile, domain.MethodProjectCode, "", userAgent)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Profile: profile, Session: session, ProjectCode: code}, nil
}

// ResumeProjectSession signs back in with an existing project code. The
// code is durable: resuming does not consume it, only touches
// lastAccessed.
func (s *SessionService) ResumeProjectSession(ctx context.Context, code, userAgent string) (*LoginResult, error) {
	code = security.NormalizeProjectCode(code)
	if code == "" {
		return nil, fmt.Errorf("%w: project code required", ErrInvalidArgument)
	}
	if _, err := s.store.Get(ctx, domain.NamespaceProjectCode, code); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	email := "project+" + strings.ToLower(code) + "@projects.smarthub"
	profile, err := s.identity.Resolve(ctx, email, domain.ProfileOverrides{
		LastSignInMethod: domain.MethodProjectCode,
		Project:          &domain.ProjectInfo{Code: code, LastAccessed: &now},
	})
	if err != nil {
		return nil, err
	}
	session, err := s.CreateSession(ctx, profile, domain.MethodProjectCode, "", userAgent)
	if err != nil {
		return nil, err
	}
	observability.RecordCredentialRedeemed(domain.NamespaceProjectCode, "resumed")
	return &LoginResult{Profile: profile, Session: session, ProjectCode: code}, nil
}
