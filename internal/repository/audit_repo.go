package repository

import (
	"context"

	"bastportal/internal/model"
	"bastportal/pkg/pagination"

	"gorm.io/gorm"
)

type AuditFilter struct {
	Action     string
	EntityID   string
	ActorEmail string
	Page       int
	Limit      int
}

type AuditRepository interface {
	Log(ctx context.Context, entry *model.AuditLog) error
	List(ctx context.Context, filter AuditFilter) ([]model.AuditLog, int64, error)
}

type auditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) AuditRepository {
	return &auditRepository{db: db}
}

func (r *auditRepository) Log(ctx context.Context, entry *model.AuditLog) error {
	return GetDB(ctx, r.db).Create(entry).Error
}

func (r *auditRepository) List(ctx context.Context, filter AuditFilter) ([]model.AuditLog, int64, error) {
	var logs []model.AuditLog
	var total int64

	scoped := func() *gorm.DB {
		query := GetDB(ctx, r.db).Model(&model.AuditLog{})
		if filter.Action != "" {
			query = query.Where("action = ?", filter.Action)
		}
		if filter.EntityID != "" {
			query = query.Where("entity_id = ?", filter.EntityID)
		}
		if filter.ActorEmail != "" {
			query = query.Where("actor_email = ?", filter.ActorEmail)
		}
		return query
	}

	if err := scoped().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if err := scoped().Order("created_at desc").Scopes(pagination.Scope(filter.Page, filter.Limit)).Find(&logs).Error; err != nil {
		return nil, 0, err
	}

	return logs, total, nil
}
