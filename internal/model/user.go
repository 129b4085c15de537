package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is a directory entry. Credentials live with the identity provider;
// the portal only needs the role and, for vendor accounts, the vendor.
type User struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Email     string         `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Name      string         `gorm:"type:varchar(255);not null" json:"name"`
	Role      string         `gorm:"type:varchar(50);not null;index" json:"role"` // vendor, reviewer, approver, staff, admin
	VendorID  *uuid.UUID     `gorm:"type:uuid;index" json:"vendor_id,omitempty"`
	IsActive  bool           `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"` // GORM soft delete
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
