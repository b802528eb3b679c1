package repository

import (
	"context"

	"github.com/smarthubultra/identity-service/internal/domain"
	"github.com/smarthubultra/identity-service/internal/observability"

	"gorm.io/gorm"
)

// AuditRepository is append-only: grants, invites and maintenance logs
// are never updated or deleted.
type AuditRepository interface {
	AppendAdminGrant(entry *domain.AdminGrant) error
	AppendInvite(entry *domain.InviteRecord) error
	AppendMaintenanceLog(entry *domain.MaintenanceLog) error
	ListAdminGrants(limit int) ([]domain.AdminGrant, error)
}

type GormAuditRepository struct{ db *gorm.DB }

func NewAuditRepository(db *gorm.DB) AuditRepository { return &GormAuditRepository{db: db} }

func (r *GormAuditRepository) AppendAdminGrant(entry *domain.AdminGrant) error {
	err := r.db.Create(entry).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "audit", "append_admin_grant", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "audit", "append_admin_grant", "success")
	return nil
}

func (r *GormAuditRepository) AppendInvite(entry *domain.InviteRecord) error {
	err := r.db.Create(entry).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "audit", "append_invite", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "audit", "append_invite", "success")
	return nil
}

func (r *GormAuditRepository) AppendMaintenanceLog(entry *domain.MaintenanceLog) error {
	err := r.db.Create(entry).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "audit", "append_maintenance_log", "error")
		return err
	}
	observability.RecordRepositoryOperation(context.Background(), "audit", "append_maintenance_log", "success")
	return nil
}

func (r *GormAuditRepository) ListAdminGrants(limit int) ([]domain.AdminGrant, error) {
	if limit <= 0 {
		limit = 50
	}
	var grants []domain.AdminGrant
	err := r.db.Order("created_at DESC").Limit(limit).Find(&grants).Error
	if err != nil {
		observability.RecordRepositoryOperation(context.Background(), "audit", "list_admin_grants", "error")
		return grants, err
	}
	observability.RecordRepositoryOperation(context.Background(), "audit", "list_admin_grants", "success")
	return grants, nil
}
