package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/smarthubultra/identity-service/internal/domain"
	"github.com/smarthubultra/identity-service/internal/repository"
	"github.com/smarthubultra/identity-service/internal/security"
)

// What a missing fingerprint means at validation time.
const (
	PolicyAllow = "allow"
	PolicyBlock = "block"
)

// Default behavior profile snapshot taken at fingerprint time.
var (
	defaultAllowedActions    = domain.StringSet{"execute", "log"}
	defaultRestrictedActions = domain.StringSet{"delete", "modify"}
)

const defaultMaxRuntimeMillis = 5000

// IntegrityService records behavioral fingerprints for bots and checks
// later submissions against them.
type IntegrityService struct {
	fingerprints  repository.FingerprintRepository
	missingPolicy string
}

func NewIntegrityService(fingerprints repository.FingerprintRepository, missingPolicy string) *IntegrityService {
	if missingPolicy == "" {
		missingPolicy = PolicyAllow
	}
	return &IntegrityService{fingerprints: fingerprints, missingPolicy: missingPolicy}
}

// GenerateFingerprint hashes the bot's current payload and snapshots its
// behavior profile. Regenerating replaces the previous fingerprint
// wholesale; fingerprints are never patched in place.
func (s *IntegrityService) GenerateFingerprint(ctx context.Context, botID, purpose, code string) (*domain.Fingerprint, error) {
	if strings.TrimSpace(botID) == "" {
		return nil, fmt.Errorf("%w: bot id required", ErrInvalidArgument)
	}
	fp := &domain.Fingerprint{
		BotID:    botID,
		Purpose:  purpose,
		CodeHash: security.CodeHash(code),
		Profile: domain.BehaviorProfile{
			Intent:            intentOf(purpose),
			AllowedActions:    defaultAllowedActions,
			RestrictedActions: defaultRestrictedActions,
			MaxRuntime:        defaultMaxRuntimeMillis,
		},
		CreatedAt: time.Now().UTC(),
	}
	if err := s.fingerprints.Save(fp); err != nil {
		return nil, fmt.Errorf("save fingerprint: %w", err)
	}
	return fp, nil
}

// Validate checks a bot submission against its recorded fingerprint. A
// missing fingerprint passes or fails per the configured policy; it is
// never an error.
func (s *IntegrityService) Validate(ctx context.Context, bot domain.Bot) (*domain.Verdict, error) {
	fp, err := s.fingerprints.FindByBotID(bot.ID)
	if errors.Is(err, repository.ErrFingerprintNotFound) {
		if s.missingPolicy == PolicyBlock {
			return &domain.Verdict{Valid: false, Issues: []string{"No behavioral fingerprint on record"}}, nil
		}
		return &domain.Verdict{Valid: true, Issues: []string{}}, nil
	}
	if err != nil {
		return nil, err
	}

	issues := []string{}
	if security.CodeHash(bot.Code) != fp.CodeHash {
		issues = append(issues, "Code tampering detected")
	}
	if bot.Runtime > fp.Profile.MaxRuntime {
		issues = append(issues, "Excessive runtime detected")
	}
	return &domain.Verdict{Valid: len(issues) == 0, Issues: issues}, nil
}

// intentOf reduces a free-form purpose to its leading word.
func intentOf(purpose string) string {
	fields := strings.Fields(strings.TrimSpace(purpose))
	if len(fields) == 0 {
		return "unknown"
	}
	return strings.ToLower(fields[0])
}
