package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Vendor is an entry of the vendor registry.
type Vendor struct {
	ID        uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Kode      string         `gorm:"type:varchar(30);uniqueIndex;not null" json:"kode"`
	Nama      string         `gorm:"type:varchar(255);not null" json:"nama"`
	Npwp      string         `gorm:"type:varchar(30)" json:"npwp"`
	Email     string         `gorm:"type:varchar(255)" json:"email"`
	IsActive  bool           `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (v *Vendor) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}
