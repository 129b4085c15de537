package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Tracking parent types.
const (
	ParentBast    = "BAST"
	ParentInvoice = "INVOICE"
)

// TrackingLog is one status change of a BAST or an invoice. Rows are append
// only; Seq is the 1-based position within the parent's history.
type TrackingLog struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ParentType       string    `gorm:"type:varchar(10);not null;uniqueIndex:idx_tracking_parent_seq" json:"parent_type"`
	ParentID         string    `gorm:"type:varchar(64);not null;uniqueIndex:idx_tracking_parent_seq" json:"parent_id"`
	Seq              int       `gorm:"not null;uniqueIndex:idx_tracking_parent_seq" json:"seq"`
	StatusSebelumnya string    `gorm:"type:varchar(30)" json:"status_sebelumnya"`
	StatusBaru       string    `gorm:"type:varchar(30);not null" json:"status_baru"`
	Event            string    `gorm:"type:varchar(30);not null" json:"event"`
	ChangedBy        string    `gorm:"type:varchar(255);not null" json:"changed_by"`
	ChangedAt        time.Time `gorm:"not null;index" json:"changed_at"`
	Note             string    `gorm:"type:text" json:"note,omitempty"`
}

func (l *TrackingLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
