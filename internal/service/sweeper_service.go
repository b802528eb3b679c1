package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/smarthubultra/identity-service/internal/domain"
	"github.com/smarthubultra/identity-service/internal/observability"
	"github.com/smarthubultra/identity-service/internal/repository"
)

// Namespaces the sweeper prunes for expiry. Project codes are durable
// and never swept.
var sweptNamespaces = []string{
	domain.NamespaceMagicLink,
	domain.NamespaceInstanceCode,
	domain.NamespaceRecoveryCode,
}

// SweeperService prunes expired credentials, stale guest profiles and
// the stale guests' old sessions, in that fixed order. Each pass is
// idempotent: re-running after a partial failure only removes what the
// previous pass missed.
type SweeperService struct {
	store      CredentialStore
	users      repository.UserRepository
	sessions   repository.SessionRepository
	audits     repository.AuditRepository
	guestTTL   time.Duration
	sessionTTL time.Duration
	logger     *slog.Logger
}

func NewSweeperService(store CredentialStore, users repository.UserRepository, sessions repository.SessionRepository, audits repository.AuditRepository, guestTTL, sessionTTL time.Duration, logger *slog.Logger) *SweeperService {
	if guestTTL <= 0 {
		guestTTL = 48 * time.Hour
	}
	if sessionTTL <= 0 {
		sessionTTL = 48 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SweeperService{
		store:      store,
		users:      users,
		sessions:   sessions,
		audits:     audits,
		guestTTL:   guestTTL,
		sessionTTL: sessionTTL,
		logger:     logger,
	}
}

// Sweep runs one maintenance pass and appends a maintenance log entry
// with the counts and cutoffs used.
func (s *SweeperService) Sweep(ctx context.Context) (*domain.SweepReport, error) {
	now := time.Now().UTC()
	report := &domain.SweepReport{}

	for _, namespace := range sweptNamespaces {
		removed, err := s.sweepNamespace(ctx, namespace, now)
		if err != nil {
			return report, err
		}
		report.MagicLinks += removed
	}

	guestCutoff := now.Add(-s.guestTTL)
	staleKeys, err := s.collectStaleGuests(guestCutoff)
	if err != nil {
		return report, err
	}
	if len(staleKeys) > 0 {
		removed, err := s.users.DeleteByKeys(staleKeys)
		if err != nil {
			return report, fmt.Errorf("delete stale guests: %w", err)
		}
		report.GuestUsers = removed

		sessionCutoff := now.Add(-s.sessionTTL)
		removedSessions, err := s.sessions.DeleteStaleForUsers(staleKeys, sessionCutoff)
		if err != nil {
			return report, fmt.Errorf("delete stale guest sessions: %w", err)
		}
		report.Sessions = removedSessions
	}

	entry := &domain.MaintenanceLog{
		ID:          uuid.NewString(),
		RanAt:       now,
		Removed:     *report,
		GuestCutoff: guestCutoff,
		SessionTTL:  s.sessionTTL,
	}
	if err := s.audits.AppendMaintenanceLog(entry); err != nil {
		return report, fmt.Errorf("append maintenance log: %w", err)
	}

	observability.RecordSweepRemoved("credentials", report.MagicLinks)
	observability.RecordSweepRemoved("guest_users", report.GuestUsers)
	observability.RecordSweepRemoved("sessions", report.Sessions)
	s.logger.Info("maintenance sweep complete",
		slog.Int64("credentials", report.MagicLinks),
		slog.Int64("guest_users", report.GuestUsers),
		slog.Int64("sessions", report.Sessions))
	return report, nil
}

// Run executes Sweep on a fixed interval until ctx is cancelled. Sweep
// errors are logged, never fatal to the loop.
func (s *SweeperService) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.Error("maintenance sweep failed", slog.String("error", err.Error()))
			}
		}
	}
}

func (s *SweeperService) sweepNamespace(ctx context.Context, namespace string, now time.Time) (int64, error) {
	var expired []string
	err := s.store.Scan(ctx, namespace, func(cred *domain.Credential) error {
		if cred.Expired(now) {
			expired = append(expired, cred.Token)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("sweep %s: %w", namespace, err)
	}
	if len(expired) == 0 {
		return 0, nil
	}
	removed, err := s.store.Delete(ctx, namespace, expired...)
	if err != nil {
		return 0, fmt.Errorf("sweep %s: %w", namespace, err)
	}
	return removed, nil
}

// collectStaleGuests returns guests whose marker age (falling back to
// the profile's own CreatedAt) and last session are both older than the
// cutoff. A guest active since creation is kept.
func (s *SweeperService) collectStaleGuests(cutoff time.Time) ([]string, error) {
	guests, err := s.users.ListGuests()
	if err != nil {
		return nil, fmt.Errorf("list guests: %w", err)
	}
	var stale []string
	for _, guest := range guests {
		created := guest.CreatedAt
		if guest.Guest != nil && guest.Guest.CreatedAt != nil {
			created = *guest.Guest.CreatedAt
		}
		if !created.Before(cutoff) {
			continue
		}
		if guest.LastSessionAt != nil && !guest.LastSessionAt.Before(cutoff) {
			continue
		}
		stale = append(stale, guest.Key)
	}
	return stale, nil
}
