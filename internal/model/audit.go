package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ActionCreateBast          = "CREATE_BAST"
	ActionSaveBastDraft       = "SAVE_BAST_DRAFT"
	ActionAddSupportingDoc    = "ADD_SUPPORTING_DOC"
	ActionRemoveSupportingDoc = "REMOVE_SUPPORTING_DOC"
	ActionInputSagr           = "INPUT_SAGR"
	ActionUploadInvoice       = "UPLOAD_INVOICE"
	ActionAssignPic           = "ASSIGN_PIC"
	ActionUploadFile          = "UPLOAD_FILE"
)

// AuditLog tracks Who, What, and When for actions that do not change a
// document status. Status changes go to TrackingLog.
type AuditLog struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	ActorEmail string         `gorm:"type:varchar(255);index" json:"actor_email"`
	ActorRole  string         `gorm:"type:varchar(20)" json:"actor_role"`
	Action     string         `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string         `gorm:"type:varchar(64);index" json:"entity_id"`        // BAST id, invoice uuid or file ref
	EntityName string         `gorm:"type:varchar(255)" json:"entity_name,omitempty"` // Human readable name
	Details    datatypes.JSON `json:"details"`                                        // Serialized JSON payload of the action
	CreatedAt  time.Time      `gorm:"index" json:"created_at"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
