package repository

import (
	"context"
	"errors"
	"time"

	"github.com/smarthubultra/identity-service/internal/domain"
	"github.com/smarthubultra/identity-service/internal/observability"

	"gorm.io/gorm"
)

var ErrSessionNotFound = errors.New("session not found")

type SessionRepository interface {
	Create(session *domain.Session) error
	FindByID(id string) (*domain.Session, error)
	ListByUserKey(userKey string) ([]domain.Session, error)
	// DeleteStaleForUsers removes sessions owned by any of the given
	// identity keys that were created before the cutoff.
	DeleteStaleForUsers(userKeys []string, cutoff time.Time) (int64, error)
}

type GormSessionRepository struct{ db *gorm.DB }

func NewSessionRepository(db *gorm.DB) SessionRepository { return &GormSessionRepository{db: db} }

func (r *GormSessionRepository) Create(session *domain.Session) error {
	err := r.db.Create(session).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "session", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "create", "success")
	return nil
}

func (r *GormSessionRepository) FindByID(id string) (*domain.Session, error) {
	var session domain.Session
	err := r.db.Where("id = ?", id).First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "session", "find_by_id", "not_found")
			return nil, ErrSessionNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "session", "find_by_id", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "find_by_id", "success")
	return &session, nil
}

func (r *GormSessionRepository) ListByUserKey(userKey string) ([]domain.Session, error) {
	var sessions []domain.Session
	err := r.db.Where("user_key = ?", userKey).Order("created_at DESC").Find(&sessions).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "session", "list_by_user_key", "error")
		return sessions, err
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "list_by_user_key", "success")
	return sessions, nil
}

func (r *GormSessionRepository) DeleteStaleForUsers(userKeys []string, cutoff time.Time) (int64, error) {
	if len(userKeys) == 0 {
		return 0, nil
	}
	res := r.db.Where("user_key IN ? AND created_at < ?", userKeys, cutoff).Delete(&domain.Session{})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "session", "delete_stale_for_users", "error")
		return res.RowsAffected, res.Error
	}
	observability.RecordRepositoryOperation(context.Background(), "session", "delete_stale_for_users", "success")
	return res.RowsAffected, nil
}
