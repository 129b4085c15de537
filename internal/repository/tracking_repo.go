package repository

import (
	"context"
	"fmt"

	"bastportal/internal/model"

	"gorm.io/gorm"
)

type TrackingRepository interface {
	Append(ctx context.Context, entry *model.TrackingLog) error
	ListByParent(ctx context.Context, parentType, parentID string) ([]model.TrackingLog, error)
}

type trackingRepository struct {
	db *gorm.DB
}

func NewTrackingRepository(db *gorm.DB) TrackingRepository {
	return &trackingRepository{db: db}
}

// Append writes entry as the next item of its parent's history. It should run
// in the same transaction as the status change it records; the unique
// (parent, seq) index rejects a concurrent append of the same position.
func (r *trackingRepository) Append(ctx context.Context, entry *model.TrackingLog) error {
	db := GetDB(ctx, r.db)

	var last int
	if err := db.Model(&model.TrackingLog{}).
		Where("parent_type = ? AND parent_id = ?", entry.ParentType, entry.ParentID).
		Select("COALESCE(MAX(seq), 0)").
		Scan(&last).Error; err != nil {
		return fmt.Errorf("failed to read tracking sequence: %w", err)
	}
	entry.Seq = last + 1

	if err := db.Create(entry).Error; err != nil {
		if isDuplicate(err) {
			return conflict(entry.ParentType + " " + entry.ParentID + " history")
		}
		return fmt.Errorf("failed to append tracking log: %w", err)
	}
	return nil
}

func (r *trackingRepository) ListByParent(ctx context.Context, parentType, parentID string) ([]model.TrackingLog, error) {
	var logs []model.TrackingLog
	if err := GetDB(ctx, r.db).
		Where("parent_type = ? AND parent_id = ?", parentType, parentID).
		Order("changed_at asc, seq asc").
		Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch tracking log: %w", err)
	}
	return logs, nil
}
