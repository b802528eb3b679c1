package repository

import (
	"context"
	"errors"
	"time"

	"github.com/smarthubultra/identity-service/internal/domain"
	"github.com/smarthubultra/identity-service/internal/observability"

	"gorm.io/gorm"
)

var ErrProfileNotFound = errors.New("profile not found")

type UserListQuery struct {
	PageRequest
	Role  string
	Email string
}

type UserRepository interface {
	Create(profile *domain.UserProfile) error
	FindByKey(key string) (*domain.UserProfile, error)
	// Merge applies a shallow update; fields absent from updates are
	// left untouched.
	Merge(key string, updates map[string]any) error
	// TouchSession bumps the session counter and lastSessionAt.
	TouchSession(key string, at time.Time) error
	ListPaged(query UserListQuery) (PageResult[domain.UserProfile], error)
	ListGuests() ([]domain.UserProfile, error)
	DeleteByKeys(keys []string) (int64, error)
}

type GormUserRepository struct{ db *gorm.DB }

func NewUserRepository(db *gorm.DB) UserRepository { return &GormUserRepository{db: db} }

func (r *GormUserRepository) Create(profile *domain.UserProfile) error {
	err := r.db.Create(profile).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "user", "create", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "create", "success")
	return nil
}

func (r *GormUserRepository) FindByKey(key string) (*domain.UserProfile, error) {
	var profile domain.UserProfile
	err := r.db.Where("key = ?", key).First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			observability.RecordRepositoryOperation(context.Background(), "user", "find_by_key", "not_found")
			return nil, ErrProfileNotFound
		}
		observability.RecordRepositoryOperation(context.Background(), "user", "find_by_key", "error")
		return nil, err
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "find_by_key", "success")
	return &profile, nil
}

func (r *GormUserRepository) Merge(key string, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	err := r.db.Model(&domain.UserProfile{}).Where("key = ?", key).Updates(updates).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "user", "merge", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "merge", "success")
	return nil
}

func (r *GormUserRepository) TouchSession(key string, at time.Time) error {
	err := r.db.Model(&domain.UserProfile{}).
		Where("key = ?", key).
		Updates(map[string]any{
			"sessions":        gorm.Expr("sessions + 1"),
			"last_session_at": at,
		}).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "user", "touch_session", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "touch_session", "success")
	return nil
}

func (r *GormUserRepository) ListPaged(query UserListQuery) (PageResult[domain.UserProfile], error) {
	req := normalizePageRequest(query.PageRequest)
	result := PageResult[domain.UserProfile]{
		Page:     req.Page,
		PageSize: req.PageSize,
	}

	base := r.db.Model(&domain.UserProfile{})
	if query.Role != "" {
		base = base.Where("role = ?", query.Role)
	}
	if query.Email != "" {
		base = base.Where("email LIKE ?", query.Email+"%")
	}

	if err := base.Session(&gorm.Session{}).Count(&result.Total).Error; err != nil {
		observability.RecordRepositoryOperation(context.Background(), "user", "list_paged", "error")
		return PageResult[domain.UserProfile]{}, err
	}

	offset := (req.Page - 1) * req.PageSize
	if err := base.Order("created_at DESC").Offset(offset).Limit(req.PageSize).Find(&result.Items).Error; err != nil {
		observability.RecordRepositoryOperation(context.Background(), "user", "list_paged", "error")
		return PageResult[domain.UserProfile]{}, err
	}
	result.TotalPages = calcTotalPages(result.Total, req.PageSize)
	observability.RecordRepositoryOperation(context.Background(), "user", "list_paged", "success")
	return result, nil
}

func (r *GormUserRepository) ListGuests() ([]domain.UserProfile, error) {
	var guests []domain.UserProfile
	err := r.db.Where("role = ?", domain.RoleGuest).Find(&guests).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "user", "list_guests", "error")
		return guests, err
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "list_guests", "success")
	return guests, nil
}

func (r *GormUserRepository) DeleteByKeys(keys []string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	res := r.db.Where("key IN ?", keys).Delete(&domain.UserProfile{})
	if res.Error != nil {
		observability.RecordRepositoryOperation(context.Background(), "user", "delete_by_keys", "error")
		return res.RowsAffected, res.Error
	}
	observability.RecordRepositoryOperation(context.Background(), "user", "delete_by_keys", "success")
	return res.RowsAffected, nil
}
