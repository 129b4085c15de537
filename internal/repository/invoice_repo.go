package repository

import (
	"context"
	"fmt"

	"bastportal/internal/model"
	"bastportal/internal/workflow"
	"bastportal/pkg/pagination"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type InvoiceFilter struct {
	Status   string
	VendorID string
	PicEmail string
	Search   string // matches nomor invoice or keterangan
	Page     int
	Limit    int
}

type InvoiceRepository interface {
	Create(ctx context.Context, invoice *model.Invoice) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Invoice, error)
	FindByIDWithRelations(ctx context.Context, id uuid.UUID) (*model.Invoice, error)
	List(ctx context.Context, filter InvoiceFilter) ([]model.Invoice, int64, error)
	ListOpen(ctx context.Context, filter InvoiceFilter) ([]model.Invoice, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to workflow.InvoiceStatus, expectedVersion int) error
	UpdatePic(ctx context.Context, id uuid.UUID, picEmail string, expectedVersion int) error
	CountByStatus(ctx context.Context, filter InvoiceFilter) ([]model.StatusCount, error)
}

type invoiceRepository struct {
	db *gorm.DB
}

func NewInvoiceRepository(db *gorm.DB) InvoiceRepository {
	return &invoiceRepository{db: db}
}

func (r *invoiceRepository) Create(ctx context.Context, invoice *model.Invoice) error {
	return translate(GetDB(ctx, r.db).Create(invoice).Error, "invoice "+invoice.NomorInvoice)
}

func (r *invoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	var invoice model.Invoice
	if err := GetDB(ctx, r.db).First(&invoice, "id = ?", id).Error; err != nil {
		return nil, translate(err, "invoice "+id.String())
	}
	return &invoice, nil
}

func (r *invoiceRepository) FindByIDWithRelations(ctx context.Context, id uuid.UUID) (*model.Invoice, error) {
	var invoice model.Invoice
	if err := GetDB(ctx, r.db).Preload("Vendor").Preload("TipeInvoice").First(&invoice, "id = ?", id).Error; err != nil {
		return nil, translate(err, "invoice "+id.String())
	}
	return &invoice, nil
}

func (r *invoiceRepository) filtered(ctx context.Context, filter InvoiceFilter) *gorm.DB {
	query := GetDB(ctx, r.db).Model(&model.Invoice{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.VendorID != "" {
		query = query.Where("vendor_id = ?", filter.VendorID)
	}
	if filter.PicEmail != "" {
		query = query.Where("pic_email = ?", filter.PicEmail)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where("nomor_invoice LIKE ? OR keterangan LIKE ?", like, like)
	}
	return query
}

func (r *invoiceRepository) List(ctx context.Context, filter InvoiceFilter) ([]model.Invoice, int64, error) {
	var invoices []model.Invoice
	var total int64

	if err := r.filtered(ctx, filter).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count invoices: %w", err)
	}

	if err := r.filtered(ctx, filter).Preload("Vendor").Preload("TipeInvoice").
		Order("tanggal_jatuh_tempo asc, created_at desc").Scopes(pagination.Scope(filter.Page, filter.Limit)).
		Find(&invoices).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch invoices: %w", err)
	}

	return invoices, total, nil
}

// ListOpen returns the invoices still awaiting payment (sent or received),
// earliest due date first. Status in the filter is ignored.
func (r *invoiceRepository) ListOpen(ctx context.Context, filter InvoiceFilter) ([]model.Invoice, error) {
	filter.Status = ""
	var invoices []model.Invoice
	if err := r.filtered(ctx, filter).
		Where("status IN ?", []string{string(workflow.InvoiceSent), string(workflow.InvoiceReceived)}).
		Order("tanggal_jatuh_tempo asc").
		Find(&invoices).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch open invoices: %w", err)
	}
	return invoices, nil
}

// UpdateStatus is a compare and swap on (status, version).
func (r *invoiceRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to workflow.InvoiceStatus, expectedVersion int) error {
	res := GetDB(ctx, r.db).Model(&model.Invoice{}).
		Where("id = ? AND status = ? AND version = ?", id, from, expectedVersion).
		Updates(map[string]interface{}{
			"status":  to,
			"version": expectedVersion + 1,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to update invoice %s status: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return conflict("invoice " + id.String())
	}
	return nil
}

// UpdatePic sets the PIC while the invoice is unpaid and unchanged since it
// was read.
func (r *invoiceRepository) UpdatePic(ctx context.Context, id uuid.UUID, picEmail string, expectedVersion int) error {
	res := GetDB(ctx, r.db).Model(&model.Invoice{}).
		Where("id = ? AND version = ? AND status <> ?", id, expectedVersion, string(workflow.InvoicePaid)).
		Updates(map[string]interface{}{
			"pic_email": picEmail,
			"version":   expectedVersion + 1,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to assign pic on invoice %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return conflict("invoice " + id.String())
	}
	return nil
}

func (r *invoiceRepository) CountByStatus(ctx context.Context, filter InvoiceFilter) ([]model.StatusCount, error) {
	filter.Status = ""
	var rows []model.StatusCount
	if err := r.filtered(ctx, filter).
		Select("status, count(*) as count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count invoices by status: %w", err)
	}
	return rows, nil
}
