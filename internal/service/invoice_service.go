package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"bastportal/internal/apperror"
	"bastportal/internal/finance"
	"bastportal/internal/model"
	"bastportal/internal/repository"
	"bastportal/internal/validation"
	"bastportal/internal/workflow"

	"github.com/google/uuid"
)

const (
	actionUploadInvoice = "upload"
	actionAssignPic     = "assign-pic"
)

// --- DTOs ---

// InvoiceUploadRequest is the vendor upload form. Dates use DateLayout and
// the amount may carry thousands separators. Required fields are checked by
// the service so every missing field is reported at once.
type InvoiceUploadRequest struct {
	NomorInvoice      string `json:"nomor_invoice"`
	VendorID          string `json:"vendor_id"`
	TipeInvoiceID     string `json:"tipe_invoice_id"`
	JumlahTagihan     string `json:"jumlah_tagihan"`
	TanggalInvoice    string `json:"tanggal_invoice"`
	TanggalJatuhTempo string `json:"tanggal_jatuh_tempo"`
	Keterangan        string `json:"keterangan"`
	Dokumen           string `json:"dokumen"`
}

type InvoiceListFilter struct {
	Status   string
	VendorID string
	PicEmail string
	Search   string
	Page     int
	Limit    int
}

// InvoiceView is an invoice with its derived time remaining.
type InvoiceView struct {
	model.Invoice
	TimeRemaining string `json:"time_remaining"`
	DaysRemaining int    `json:"days_remaining"`
}

type InvoiceDetail struct {
	InvoiceView
	NextEvents []workflow.InvoiceEvent `json:"next_events"`
	Tracking   []model.TrackingLog     `json:"tracking"`
}

// --- Interface ---

type InvoiceService interface {
	UploadInvoice(ctx context.Context, actor workflow.Actor, req InvoiceUploadRequest) (*model.Invoice, error)
	// AssignPic sets the PIC of an unpaid invoice. Admins assign anyone with
	// the staff role; staff may only claim an invoice for themselves.
	AssignPic(ctx context.Context, id string, picEmail string, actor workflow.Actor) (*model.Invoice, error)
	TransitionInvoice(ctx context.Context, id string, event string, actor workflow.Actor, note string) (*model.Invoice, error)
	GetInvoiceDetail(ctx context.Context, id string, actor workflow.Actor) (*InvoiceDetail, error)
	ListInvoices(ctx context.Context, filter InvoiceListFilter) ([]InvoiceView, int64, error)
	GetInvoiceSummary(ctx context.Context, filter InvoiceListFilter) (model.InvoiceSummary, error)
	// DueReminders lists unpaid invoices that are overdue or due today.
	DueReminders(ctx context.Context) ([]InvoiceView, error)
}

type invoiceService struct {
	deps Deps
}

func NewInvoiceService(deps Deps) InvoiceService {
	return &invoiceService{deps: deps.withDefaults()}
}

// --- Implementation ---

func (s *invoiceService) UploadInvoice(ctx context.Context, actor workflow.Actor, req InvoiceUploadRequest) (*model.Invoice, error) {
	if actor.Role != workflow.RoleVendor {
		return nil, workflow.Unauthorized("(none)", actionUploadInvoice, actor.Role, "only vendors upload invoices")
	}

	errs := validation.Errors{}
	inv := &model.Invoice{
		NomorInvoice: strings.TrimSpace(req.NomorInvoice),
		Keterangan:   req.Keterangan,
		Dokumen:      strings.TrimSpace(req.Dokumen),
		Status:       workflow.InvoiceSent,
		CreatedBy:    actor.Email,
		Version:      1,
	}

	vendorID := strings.TrimSpace(req.VendorID)
	if vendorID == "" {
		vendorID = actor.VendorID
	}
	inv.VendorID = optionalUUID(errs, "vendor_id", vendorID)
	inv.TipeInvoiceID = optionalUUID(errs, "tipe_invoice_id", req.TipeInvoiceID)
	inv.JumlahTagihan = parseAmount(errs, "jumlah_tagihan", req.JumlahTagihan)
	if d := parseDate(errs, "tanggal_invoice", req.TanggalInvoice); d != nil {
		inv.TanggalInvoice = *d
	}
	if d := parseDate(errs, "tanggal_jatuh_tempo", req.TanggalJatuhTempo); d != nil {
		inv.TanggalJatuhTempo = *d
	}
	if err := mergeFieldErrors(errs, validation.Invoice(inv)); err != nil {
		return nil, err
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	if err := checkVendorOwnership(actor, inv.VendorID, "(none)", actionUploadInvoice); err != nil {
		return nil, err
	}
	if _, err := s.deps.Vendors.FindByID(ctx, inv.VendorID); err != nil {
		if err := mergeFieldErrors(errs, lookupField(err, "vendor_id")); err != nil {
			return nil, err
		}
	}
	if _, err := s.deps.InvoiceTypes.FindByID(ctx, inv.TipeInvoiceID); err != nil {
		if err := mergeFieldErrors(errs, lookupField(err, "tipe_invoice_id")); err != nil {
			return nil, err
		}
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	err := s.deps.TxManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.deps.Invoices.Create(txCtx, inv); err != nil {
			if errors.Is(err, apperror.ErrDuplicate) {
				return validation.Field("nomor_invoice", validation.Duplicate)
			}
			return fmt.Errorf("failed to create invoice: %w", err)
		}
		return writeAudit(txCtx, s.deps.Audit, actor, model.ActionUploadInvoice, inv.ID.String(), inv.NomorInvoice, map[string]interface{}{
			"vendor_id":           inv.VendorID.String(),
			"jumlah_tagihan":      finance.Plain(inv.JumlahTagihan),
			"tanggal_jatuh_tempo": inv.TanggalJatuhTempo.Format(DateLayout),
		})
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[INVOICE] %s (%s) uploaded by %s", inv.NomorInvoice, inv.ID, actor.Email)
	return inv, nil
}

func optionalUUID(errs validation.Errors, field, s string) uuid.UUID {
	s = strings.TrimSpace(s)
	if s == "" {
		return uuid.Nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		errs.Add(field, validation.InvalidValue)
		return uuid.Nil
	}
	return id
}

// mergeFieldErrors copies the field errors of err into errs. Any other error
// is returned.
func mergeFieldErrors(errs validation.Errors, err error) error {
	if err == nil {
		return nil
	}
	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		return err
	}
	for field, code := range verrs {
		errs.Add(field, code)
	}
	return nil
}

func (s *invoiceService) findInvoice(ctx context.Context, id string) (*model.Invoice, error) {
	invoiceID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invoice %s: %w", id, apperror.ErrNotFound)
	}
	return s.deps.Invoices.FindByID(ctx, invoiceID)
}

func (s *invoiceService) AssignPic(ctx context.Context, id string, picEmail string, actor workflow.Actor) (*model.Invoice, error) {
	pic := strings.ToLower(strings.TrimSpace(picEmail))
	if pic == "" {
		return nil, validation.Field("pic_email", validation.Required)
	}

	var inv *model.Invoice
	var previous string
	err := retryOnConflict(func() error {
		var err error
		inv, err = s.findInvoice(ctx, id)
		if err != nil {
			return err
		}
		switch actor.Role {
		case workflow.RoleAdmin:
		case workflow.RoleStaff:
			if !strings.EqualFold(pic, strings.TrimSpace(actor.Email)) {
				return workflow.Unauthorized(string(inv.Status), actionAssignPic, actor.Role, "staff may only claim an invoice for themselves")
			}
		default:
			return workflow.Unauthorized(string(inv.Status), actionAssignPic, actor.Role, "")
		}
		if !workflow.CanAssignPic(inv.Status) {
			return &workflow.TransitionError{
				Kind:    apperror.ErrInvalidTransition,
				Current: string(inv.Status),
				Event:   actionAssignPic,
				Role:    actor.Role,
			}
		}

		user, err := s.deps.Directory.FindByEmail(ctx, pic)
		if err != nil {
			return lookupField(err, "pic_email")
		}
		if role, _ := workflow.ParseRole(user.Role); role != workflow.RoleStaff {
			return validation.Field("pic_email", validation.WrongRole)
		}

		previous = inv.PicEmail
		now := s.deps.Now()
		err = s.deps.TxManager.RunInTx(ctx, func(txCtx context.Context) error {
			if err := s.deps.Invoices.UpdatePic(txCtx, inv.ID, pic, inv.Version); err != nil {
				return err
			}
			if err := appendLog(txCtx, s.deps.Tracking, model.TrackingLog{
				ParentType:       model.ParentInvoice,
				ParentID:         inv.ID.String(),
				StatusSebelumnya: string(inv.Status),
				StatusBaru:       string(inv.Status),
				Event:            actionAssignPic,
				ChangedBy:        actor.Email,
				ChangedAt:        now,
				Note:             picNote(previous, pic),
			}); err != nil {
				return err
			}
			return writeAudit(txCtx, s.deps.Audit, actor, model.ActionAssignPic, inv.ID.String(), inv.NomorInvoice, map[string]interface{}{
				"previous": previous,
				"pic":      pic,
			})
		})
		if err != nil {
			return err
		}
		inv.PicEmail = pic
		inv.Version++
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("[INVOICE] %s PIC %q -> %q by %s", inv.ID, previous, pic, actor.Email)
	s.deps.Notifier.Publish(TopicInvoicePic, map[string]interface{}{
		"id":        inv.ID.String(),
		"vendor_id": inv.VendorID.String(),
		"pic_email": pic,
		"by":        actor.Email,
	})
	return inv, nil
}

func picNote(previous, pic string) string {
	if previous == "" {
		return "PIC: " + pic
	}
	return fmt.Sprintf("PIC: %s -> %s", previous, pic)
}

func (s *invoiceService) TransitionInvoice(ctx context.Context, id string, event string, actor workflow.Actor, note string) (*model.Invoice, error) {
	ev := workflow.InvoiceEvent(strings.TrimSpace(event))

	var inv *model.Invoice
	var from workflow.InvoiceStatus
	now := s.deps.Now()
	err := retryOnConflict(func() error {
		var err error
		inv, err = s.findInvoice(ctx, id)
		if err != nil {
			return err
		}
		from = inv.Status
		to, err := workflow.NextInvoiceStatus(from, ev, actor.Role)
		if err != nil {
			return err
		}
		err = s.deps.TxManager.RunInTx(ctx, func(txCtx context.Context) error {
			if err := s.deps.Invoices.UpdateStatus(txCtx, inv.ID, from, to, inv.Version); err != nil {
				return err
			}
			return appendLog(txCtx, s.deps.Tracking, model.TrackingLog{
				ParentType:       model.ParentInvoice,
				ParentID:         inv.ID.String(),
				StatusSebelumnya: string(from),
				StatusBaru:       string(to),
				Event:            string(ev),
				ChangedBy:        actor.Email,
				ChangedAt:        now,
				Note:             strings.TrimSpace(note),
			})
		})
		if err != nil {
			return err
		}
		inv.Status = to
		inv.Version++
		return nil
	})
	if err != nil {
		return nil, err
	}

	logTransition("INVOICE", inv.ID.String(), string(from), string(inv.Status), string(ev), actor.Email)
	s.deps.Notifier.Publish(TopicInvoiceStatus, StatusChange{
		ID:        inv.ID.String(),
		VendorID:  inv.VendorID.String(),
		From:      string(from),
		To:        string(inv.Status),
		Event:     string(ev),
		ChangedBy: actor.Email,
		ChangedAt: now,
	})
	return inv, nil
}

func (s *invoiceService) view(inv model.Invoice) InvoiceView {
	now := s.deps.Now()
	return InvoiceView{
		Invoice:       inv,
		TimeRemaining: workflow.TimeRemaining(inv.TanggalJatuhTempo, now, inv.Status),
		DaysRemaining: workflow.DaysRemaining(inv.TanggalJatuhTempo, now),
	}
}

func (s *invoiceService) GetInvoiceDetail(ctx context.Context, id string, actor workflow.Actor) (*InvoiceDetail, error) {
	invoiceID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invoice %s: %w", id, apperror.ErrNotFound)
	}
	inv, err := s.deps.Invoices.FindByIDWithRelations(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if err := checkVisible(actor, inv.VendorID, "invoice "+id); err != nil {
		return nil, err
	}
	logs, err := s.deps.Tracking.ListByParent(ctx, model.ParentInvoice, inv.ID.String())
	if err != nil {
		return nil, err
	}

	var next []workflow.InvoiceEvent
	for _, ev := range workflow.InvoiceEvents {
		if _, err := workflow.NextInvoiceStatus(inv.Status, ev, workflow.RoleStaff); err == nil {
			next = append(next, ev)
		}
	}
	return &InvoiceDetail{InvoiceView: s.view(*inv), NextEvents: next, Tracking: logs}, nil
}

func (s *invoiceService) ListInvoices(ctx context.Context, filter InvoiceListFilter) ([]InvoiceView, int64, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if filter.Status != "" {
		if _, ok := workflow.ParseInvoiceStatus(filter.Status); !ok {
			return nil, 0, validation.Field("status", validation.InvalidValue)
		}
	}

	invoices, total, err := s.deps.Invoices.List(ctx, toRepoInvoiceFilter(filter))
	if err != nil {
		return nil, 0, err
	}
	result := make([]InvoiceView, 0, len(invoices))
	for _, inv := range invoices {
		result = append(result, s.view(inv))
	}
	return result, total, nil
}

// GetInvoiceSummary counts invoices per status, zero filled, and how many
// unpaid ones are overdue or due today.
func (s *invoiceService) GetInvoiceSummary(ctx context.Context, filter InvoiceListFilter) (model.InvoiceSummary, error) {
	repoFilter := toRepoInvoiceFilter(filter)
	rows, err := s.deps.Invoices.CountByStatus(ctx, repoFilter)
	if err != nil {
		return model.InvoiceSummary{}, err
	}
	now := s.deps.Now()
	summary := model.InvoiceSummary{
		Counts:      make(map[string]int64, len(workflow.InvoiceStatuses)),
		GeneratedAt: now,
	}
	for _, st := range workflow.InvoiceStatuses {
		summary.Counts[string(st)] = 0
	}
	for _, r := range rows {
		if _, ok := summary.Counts[r.Status]; !ok {
			log.Printf("[INVOICE] summary: ignoring unknown status %q", r.Status)
			continue
		}
		summary.Counts[r.Status] = r.Count
		summary.Total += r.Count
	}

	open, err := s.deps.Invoices.ListOpen(ctx, repoFilter)
	if err != nil {
		return model.InvoiceSummary{}, err
	}
	for _, inv := range open {
		switch days := workflow.DaysRemaining(inv.TanggalJatuhTempo, now); {
		case days < 0:
			summary.Overdue++
		case days == 0:
			summary.DueToday++
		}
	}
	return summary, nil
}

func (s *invoiceService) DueReminders(ctx context.Context) ([]InvoiceView, error) {
	open, err := s.deps.Invoices.ListOpen(ctx, repository.InvoiceFilter{})
	if err != nil {
		return nil, err
	}
	var due []InvoiceView
	for _, inv := range open {
		if v := s.view(inv); v.DaysRemaining <= 0 {
			due = append(due, v)
		}
	}
	return due, nil
}

func toRepoInvoiceFilter(f InvoiceListFilter) repository.InvoiceFilter {
	return repository.InvoiceFilter{
		Status:   f.Status,
		VendorID: f.VendorID,
		PicEmail: f.PicEmail,
		Search:   f.Search,
		Page:     f.Page,
		Limit:    f.Limit,
	}
}
