package repository

import (
	"context"
	"errors"

	"github.com/smarthubultra/identity-service/internal/domain"
	"github.com/smarthubultra/identity-service/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrFingerprintNotFound = errors.New("fingerprint not found")

type FingerprintRepository interface {
	// Save replaces the fingerprint for a bot: DNA records are
	// regenerated on payload change, never mutated in place.
	Save(fp *domain.Fingerprint) error
	FindByBotID(botID string) (*domain.Fingerprint, error)
	DeleteByBotID(botID string) error
}

type GormFingerprintRepository struct{ db *gorm.DB }

func NewFingerprintRepository(db *gorm.DB) FingerprintRepository {
	return &GormFingerprintRepository{db: db}
}

func (r *GormFingerprintRepository) Save(fp *domain.Fingerprint) error {
	err := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "bot_id"}},
		UpdateAll: true,
	}).Create(fp).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "fingerprint", "save", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "fingerprint", "save", "success")
	return nil
}

func (r *GormFingerprintRepository) FindByBotID(botID string) (*domain.Fingerprint, error) {
	var fp domain.Fingerprint
	err := r.db.Where("bot_id = ?", botID).First(&fp).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "fingerprint", "find_by_bot_id", "not_found")
			return nil, ErrFingerprintNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "fingerprint", "find_by_bot_id", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "fingerprint", "find_by_bot_id", "success")
	return &fp, nil
}

func (r *GormFingerprintRepository) DeleteByBotID(botID string) error {
	err := r.db.Where("bot_id = ?", botID).Delete(&domain.Fingerprint{}).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "fingerprint", "delete_by_bot_id", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "fingerprint", "delete_by_bot_id", "success")
	return nil
}
