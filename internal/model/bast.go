package model

import (
	"time"

	"bastportal/internal/attachment"
	"bastportal/internal/finance"
	"bastportal/internal/workflow"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Bast is a berita acara serah terima: the vendor's handover certificate for
// delivered work. Rows are never deleted; every change of Status is paired
// with a TrackingLog entry written in the same transaction.
type Bast struct {
	ID                    string              `gorm:"type:varchar(40);primaryKey" json:"id_bast"`
	VendorID              uuid.UUID           `gorm:"type:uuid;not null;index" json:"vendor_id"`
	Vendor                *Vendor             `gorm:"foreignKey:VendorID" json:"vendor,omitempty" validate:"-"`
	Status                workflow.BastStatus `gorm:"type:varchar(30);not null;index" json:"status"`
	NomorPo               string              `gorm:"type:varchar(100)" json:"nomor_po" validate:"required"`
	NomorKontrak          string              `gorm:"type:varchar(100)" json:"nomor_kontrak" validate:"required"`
	Perihal               string              `gorm:"type:text" json:"perihal" validate:"required"`
	TanggalMulaiKontrak   *time.Time          `json:"tanggal_mulai_kontrak" validate:"required"`
	TanggalAkhirKontrak   *time.Time          `json:"tanggal_akhir_kontrak" validate:"required"`
	TanggalSerahTerima    *time.Time          `json:"tanggal_serah_terima" validate:"required"`
	ReviewerEmail         string              `gorm:"type:varchar(255);index" json:"reviewer_email" validate:"required,email"`
	Kesesuaian            finance.Conformance `gorm:"type:varchar(20)" json:"kesesuaian_spesifikasi" validate:"required,oneof=Sesuai TidakSesuai"`
	AlasanKetidaksesuaian string              `gorm:"type:text" json:"alasan_ketidaksesuaian" validate:"required_if=Kesesuaian TidakSesuai"`
	DendaKeterlambatan    decimal.Decimal     `gorm:"type:decimal(18,0);not null;default:0" json:"denda_keterlambatan"`
	CopyKontrak           string              `gorm:"type:varchar(512)" json:"copy_kontrak"`
	Items                 []BastItem          `gorm:"foreignKey:BastID;constraint:OnDelete:CASCADE" json:"items" validate:"min=1,dive"`
	Dokumen               []BastSupportingDoc `gorm:"foreignKey:BastID;constraint:OnDelete:CASCADE" json:"dokumen_pendukung" validate:"dive"`
	FakturPajak           *FakturPajak        `gorm:"foreignKey:BastID;constraint:OnDelete:CASCADE" json:"faktur_pajak" validate:"required"`
	Sagr                  *SagrReference      `gorm:"foreignKey:BastID" json:"sagr,omitempty" validate:"-"`
	Subtotal              decimal.Decimal     `gorm:"type:decimal(18,0);not null;default:0" json:"subtotal"`
	Deduction             decimal.Decimal     `gorm:"type:decimal(18,0);not null;default:0" json:"deduction"`
	Total                 decimal.Decimal     `gorm:"type:decimal(18,0);not null;default:0" json:"total"`
	CreatedBy             string              `gorm:"type:varchar(255);not null" json:"created_by"`
	Version               int                 `gorm:"not null" json:"version"` // bumped by every write, compared on update
	CreatedAt             time.Time           `json:"created_at"`
	UpdatedAt             time.Time           `json:"updated_at"`
}

// BastItem is one line of work billed by a BAST. No is the 1-based position.
type BastItem struct {
	ID              uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	BastID          string          `gorm:"type:varchar(40);not null;index" json:"-"`
	No              int             `gorm:"not null" json:"no"`
	Pekerjaan       string          `gorm:"type:text;not null" json:"pekerjaan" validate:"required"`
	ProgressPercent int             `gorm:"not null;default:0" json:"progress_percent" validate:"gte=0,lte=100"`
	NilaiTagihan    decimal.Decimal `gorm:"type:decimal(18,0);not null" json:"nilai_tagihan"`
	Keterangan      string          `gorm:"type:text" json:"keterangan"`
}

// BastSupportingDoc is a dokumen pendukung slot. Urutan keeps upload order.
type BastSupportingDoc struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	BastID string    `gorm:"type:varchar(40);not null;index" json:"-"`
	Urutan int       `gorm:"not null" json:"urutan"`
	Nama   string    `gorm:"type:varchar(255)" json:"nama" validate:"required"`
	File   string    `gorm:"type:varchar(512)" json:"file"`
}

// FakturPajak is the tax invoice attached to a BAST.
type FakturPajak struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	BastID        string          `gorm:"type:varchar(40);not null;uniqueIndex" json:"-"`
	NomorFaktur   string          `gorm:"type:varchar(100)" json:"nomor_faktur" validate:"required"`
	TanggalFaktur *time.Time      `json:"tanggal_faktur" validate:"required"`
	Npwp          string          `gorm:"type:varchar(30)" json:"npwp" validate:"required"`
	Dpp           decimal.Decimal `gorm:"type:decimal(18,0);not null;default:0" json:"dpp"`
	Ppn           decimal.Decimal `gorm:"type:decimal(18,0);not null;default:0" json:"ppn"`
	Berkas        string          `gorm:"type:varchar(512)" json:"berkas"`
}

// SagrReference is the SA/GR posting that reconciles a BAST. Total is the
// payable amount at the time of reconciliation.
type SagrReference struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	BastID    string          `gorm:"type:varchar(40);not null;uniqueIndex" json:"id_bast"`
	NomorSagr string          `gorm:"type:varchar(100);not null" json:"nomor_sagr"`
	File      string          `gorm:"type:varchar(512);not null" json:"file"`
	Total     decimal.Decimal `gorm:"type:decimal(18,0);not null" json:"total"`
	InputBy   string          `gorm:"type:varchar(255);not null" json:"input_by"`
	InputAt   time.Time       `gorm:"not null" json:"input_at"`
}

func (i *BastItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

func (d *BastSupportingDoc) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

func (f *FakturPajak) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}

func (s *SagrReference) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// ComputeTotals runs the financial calculator over the current line items.
func (b *Bast) ComputeTotals() finance.Totals {
	amounts := make([]decimal.Decimal, len(b.Items))
	for i, it := range b.Items {
		amounts[i] = it.NilaiTagihan
	}
	return finance.ComputeTotals(amounts, b.Kesesuaian, b.DendaKeterlambatan)
}

// ApplyTotals stores the calculator result on the row.
func (b *Bast) ApplyTotals() finance.Totals {
	t := b.ComputeTotals()
	b.Subtotal = t.Subtotal
	b.Deduction = t.Deduction
	b.Total = t.Total
	return t
}

// Attachments returns the attachment state checked by the stage policy.
func (b *Bast) Attachments() attachment.Set {
	set := attachment.Set{CopyKontrak: b.CopyKontrak}
	for _, d := range b.Dokumen {
		set.Docs = append(set.Docs, attachment.Doc{Nama: d.Nama, File: d.File})
	}
	if b.FakturPajak != nil {
		set.FakturBerkas = b.FakturPajak.Berkas
	}
	if b.Sagr != nil {
		set.SagrFile = b.Sagr.File
	}
	return set
}
