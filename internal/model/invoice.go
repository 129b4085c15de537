package model

import (
	"time"

	"bastportal/internal/workflow"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Invoice is a standalone vendor invoice routed to a PIC. NomorInvoice is
// unique per vendor.
type Invoice struct {
	ID                uuid.UUID              `gorm:"type:uuid;primaryKey" json:"id"`
	NomorInvoice      string                 `gorm:"type:varchar(60);not null;uniqueIndex:idx_invoice_vendor_nomor" json:"nomor_invoice" validate:"required"`
	VendorID          uuid.UUID              `gorm:"type:uuid;not null;uniqueIndex:idx_invoice_vendor_nomor;index" json:"vendor_id"`
	Vendor            *Vendor                `gorm:"foreignKey:VendorID" json:"vendor,omitempty" validate:"-"`
	TipeInvoiceID     uuid.UUID              `gorm:"type:uuid;not null;index" json:"tipe_invoice_id"`
	TipeInvoice       *InvoiceType           `gorm:"foreignKey:TipeInvoiceID" json:"tipe_invoice,omitempty" validate:"-"`
	JumlahTagihan     decimal.Decimal        `gorm:"type:decimal(18,0);not null" json:"jumlah_tagihan"`
	TanggalInvoice    time.Time              `gorm:"not null" json:"tanggal_invoice"`
	TanggalJatuhTempo time.Time              `gorm:"not null;index" json:"tanggal_jatuh_tempo"`
	Keterangan        string                 `gorm:"type:text" json:"keterangan"`
	Dokumen           string                 `gorm:"type:varchar(512);not null" json:"dokumen" validate:"required"`
	PicEmail          string                 `gorm:"type:varchar(255);index" json:"pic_email"`
	Status            workflow.InvoiceStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	CreatedBy         string                 `gorm:"type:varchar(255);not null" json:"created_by"`
	Version           int                    `gorm:"not null" json:"version"`
	CreatedAt         time.Time              `json:"created_at"`
	UpdatedAt         time.Time              `json:"updated_at"`
}

// InvoiceType is an entry of the invoice-type catalog.
type InvoiceType struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Kode      string    `gorm:"type:varchar(30);uniqueIndex;not null" json:"kode"`
	Nama      string    `gorm:"type:varchar(255);not null" json:"nama"`
	IsActive  bool      `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (i *Invoice) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

func (t *InvoiceType) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
