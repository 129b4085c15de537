package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"bastportal/internal/apperror"
	"bastportal/internal/attachment"
	"bastportal/internal/finance"
	"bastportal/internal/model"
	"bastportal/internal/repository"
	"bastportal/internal/validation"
	"bastportal/internal/workflow"

	"github.com/google/uuid"
)

const maxBastIDLength = 40

// Edit actions that are not lifecycle events.
const (
	actionAddDocument    = "add-document"
	actionRemoveDocument = "remove-document"
)

type BastListFilter struct {
	Status        string
	VendorID      string
	ReviewerEmail string
	Search        string
	Page          int
	Limit         int
}

// BastDetail is the read-only projection of one BAST.
type BastDetail struct {
	*model.Bast
	Totals     finance.Totals       `json:"totals"`
	NextEvents []workflow.BastEvent `json:"next_events"`
	Tracking   []model.TrackingLog  `json:"tracking"`
}

// --- Interface ---

type BastService interface {
	CreateBast(ctx context.Context, actor workflow.Actor, req BastPayload) (*model.Bast, error)
	SaveDraft(ctx context.Context, id string, actor workflow.Actor, req BastPayload) (*model.Bast, error)
	// SubmitBast sends a DRAFT or REJECT_FROM_REVIEW BAST to review. A nil
	// req submits the stored payload.
	SubmitBast(ctx context.Context, id string, actor workflow.Actor, req *BastPayload) (*model.Bast, error)
	TransitionBast(ctx context.Context, id string, event string, actor workflow.Actor, note string) (*model.Bast, error)
	GetBastDetail(ctx context.Context, id string, actor workflow.Actor) (*BastDetail, error)
	ListBasts(ctx context.Context, filter BastListFilter) ([]model.Bast, int64, error)
	GetBastSummary(ctx context.Context, filter BastListFilter) (model.BastSummary, error)
	AddSupportingDocument(ctx context.Context, id string, actor workflow.Actor, doc SupportingDocPayload) (*model.Bast, error)
	RemoveSupportingDocument(ctx context.Context, id string, index int, actor workflow.Actor) (*model.Bast, error)
}

type bastService struct {
	deps    Deps
	machine *bastMachine
}

func NewBastService(deps Deps) BastService {
	deps = deps.withDefaults()
	return &bastService{deps: deps, machine: &bastMachine{deps: deps}}
}

// --- Implementation ---

func (s *bastService) CreateBast(ctx context.Context, actor workflow.Actor, req BastPayload) (*model.Bast, error) {
	status, err := workflow.CreateBastStatus(actor.Role)
	if err != nil {
		return nil, err
	}

	b := &model.Bast{
		ID:        strings.TrimSpace(req.IDBast),
		Status:    status,
		CreatedBy: actor.Email,
		Version:   1,
	}
	if len(b.ID) > maxBastIDLength {
		return nil, validation.Field("id_bast", validation.InvalidValue)
	}
	if err := req.applyTo(b); err != nil {
		return nil, err
	}
	if b.VendorID == uuid.Nil && actor.VendorID != "" {
		if b.VendorID, err = parseUUID("vendor_id", actor.VendorID); err != nil {
			return nil, err
		}
	}
	if b.VendorID == uuid.Nil {
		return nil, validation.Field("vendor_id", validation.Required)
	}
	if err := checkVendorOwnership(actor, b.VendorID, "(none)", string(workflow.EventCreate)); err != nil {
		return nil, err
	}
	if _, err := s.deps.Vendors.FindByID(ctx, b.VendorID); err != nil {
		return nil, lookupField(err, "vendor_id")
	}
	if err := validation.Draft(b); err != nil {
		return nil, err
	}
	b.ApplyTotals()

	generated := b.ID == ""
	for attempt := 1; ; attempt++ {
		if generated {
			if b.ID, err = s.nextBastID(ctx); err != nil {
				return nil, err
			}
		}
		err = s.deps.TxManager.RunInTx(ctx, func(txCtx context.Context) error {
			if createErr := s.deps.Basts.Create(txCtx, b); createErr != nil {
				if errors.Is(createErr, apperror.ErrDuplicate) && !generated {
					return validation.Field("id_bast", validation.Duplicate)
				}
				return fmt.Errorf("failed to create bast: %w", createErr)
			}
			return writeAudit(txCtx, s.deps.Audit, actor, model.ActionCreateBast, b.ID, b.Perihal, map[string]interface{}{
				"vendor_id": b.VendorID.String(),
				"items":     len(b.Items),
				"total":     finance.Plain(b.Total),
			})
		})
		if !generated || !errors.Is(err, apperror.ErrDuplicate) {
			break
		}
		if attempt == maxIDAttempts {
			return nil, fmt.Errorf("failed to allocate bast id after %d attempts: %w", attempt, apperror.ErrConcurrencyConflict)
		}
		log.Printf("[BAST] generated id %s already taken, retrying", b.ID)
	}
	if err != nil {
		return nil, err
	}

	log.Printf("[BAST] %s created as %s by %s", b.ID, b.Status, actor.Email)
	return b, nil
}

// maxIDAttempts bounds how often a generated id is re-drawn after losing
// the insert to another create.
const maxIDAttempts = 5

// nextBastID returns BAST-YYYYMMDD-NNNNN, one past the highest number used
// today, including numbers vendors supplied themselves.
func (s *bastService) nextBastID(ctx context.Context) (string, error) {
	prefix := "BAST-" + s.deps.Now().Format("20060102") + "-"
	last, err := s.deps.Basts.MaxSequence(ctx, prefix)
	if err != nil {
		return "", fmt.Errorf("failed to generate bast id: %w", err)
	}
	return fmt.Sprintf("%s%05d", prefix, last+1), nil
}

func (s *bastService) SaveDraft(ctx context.Context, id string, actor workflow.Actor, req BastPayload) (*model.Bast, error) {
	var b *model.Bast
	err := retryOnConflict(func() error {
		var err error
		b, err = s.deps.Basts.FindByIDWithRelations(ctx, id)
		if err != nil {
			return err
		}
		if _, err := workflow.NextBastStatus(b.Status, workflow.EventSaveDraft, actor.Role); err != nil {
			return err
		}
		if err := s.applyPayload(ctx, b, req, workflow.EventSaveDraft, actor); err != nil {
			return err
		}
		if err := validation.Draft(b); err != nil {
			return err
		}
		b.ApplyTotals()

		return s.deps.TxManager.RunInTx(ctx, func(txCtx context.Context) error {
			if err := s.deps.Basts.SavePayload(txCtx, b, b.Version); err != nil {
				return err
			}
			return writeAudit(txCtx, s.deps.Audit, actor, model.ActionSaveBastDraft, b.ID, b.Perihal, map[string]interface{}{
				"items":   len(b.Items),
				"dokumen": len(b.Dokumen),
				"total":   finance.Plain(b.Total),
			})
		})
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// applyPayload overwrites b with req on behalf of actor. A vendor may not
// move the document to another vendor.
func (s *bastService) applyPayload(ctx context.Context, b *model.Bast, req BastPayload, ev workflow.BastEvent, actor workflow.Actor) error {
	if err := checkVendorOwnership(actor, b.VendorID, string(b.Status), string(ev)); err != nil {
		return err
	}
	vendorID := b.VendorID
	if err := req.applyTo(b); err != nil {
		return err
	}
	if b.VendorID == vendorID {
		return nil
	}
	if err := checkVendorOwnership(actor, b.VendorID, string(b.Status), string(ev)); err != nil {
		return err
	}
	if _, err := s.deps.Vendors.FindByID(ctx, b.VendorID); err != nil {
		return lookupField(err, "vendor_id")
	}
	b.Vendor = nil
	return nil
}

// submitEvent picks submit or resubmit for callers that do not name the
// event themselves.
func submitEvent(current workflow.BastStatus) workflow.BastEvent {
	if current == workflow.BastRejectFromReview {
		return workflow.EventResubmit
	}
	return workflow.EventSubmit
}

// SubmitBast sends a DRAFT or rejected BAST to review, choosing submit or
// resubmit from the current status.
func (s *bastService) SubmitBast(ctx context.Context, id string, actor workflow.Actor, req *BastPayload) (*model.Bast, error) {
	return s.submit(ctx, id, actor, req, "")
}

// submit applies requested, or the event submitEvent picks when requested
// is empty, after validating the full form.
func (s *bastService) submit(ctx context.Context, id string, actor workflow.Actor, req *BastPayload, requested workflow.BastEvent) (*model.Bast, error) {
	var b *model.Bast
	err := retryOnConflict(func() error {
		var err error
		b, err = s.deps.Basts.FindByIDWithRelations(ctx, id)
		if err != nil {
			return err
		}
		ev := requested
		if ev == "" {
			ev = submitEvent(b.Status)
		}
		to, err := workflow.NextBastStatus(b.Status, ev, actor.Role)
		if err != nil {
			return err
		}
		if err := checkBastActor(b, ev, actor); err != nil {
			return err
		}
		if req != nil {
			if err := s.applyPayload(ctx, b, *req, ev, actor); err != nil {
				return err
			}
		}
		if err := s.checkSubmission(ctx, b); err != nil {
			return err
		}
		b.ApplyTotals()

		return s.machine.apply(ctx, b, to, ev, actor, "", func(txCtx context.Context) error {
			if req == nil {
				return nil
			}
			return s.deps.Basts.SavePayload(txCtx, b, b.Version)
		})
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// checkSubmission runs the batch validation and the reviewer directory check
// and reports their field errors together.
func (s *bastService) checkSubmission(ctx context.Context, b *model.Bast) error {
	errs := validation.Errors{}
	if err := validation.Submission(b); err != nil {
		var verrs validation.Errors
		if !errors.As(err, &verrs) {
			return err
		}
		errs = verrs
	}
	if !errs.Has("reviewer_email") {
		if err := s.checkReviewer(ctx, b.ReviewerEmail); err != nil {
			var verrs validation.Errors
			if !errors.As(err, &verrs) {
				return err
			}
			for field, code := range verrs {
				errs.Add(field, code)
			}
		}
	}
	return errs.Err()
}

func (s *bastService) checkReviewer(ctx context.Context, email string) error {
	user, err := s.deps.Directory.FindByEmail(ctx, email)
	if err != nil {
		return lookupField(err, "reviewer_email")
	}
	role, _ := workflow.ParseRole(user.Role)
	if role != workflow.RoleReviewer && role != workflow.RoleAdmin {
		return validation.Field("reviewer_email", validation.WrongRole)
	}
	return nil
}

// checkBastActor applies the identity rules on top of the role table: a
// reviewer acts only on BASTs addressed to them and a vendor only on its
// own documents.
func checkBastActor(b *model.Bast, ev workflow.BastEvent, actor workflow.Actor) error {
	switch actor.Role {
	case workflow.RoleReviewer:
		if !strings.EqualFold(strings.TrimSpace(actor.Email), b.ReviewerEmail) {
			return workflow.Unauthorized(string(b.Status), string(ev), actor.Role, "BAST is assigned to another reviewer")
		}
	case workflow.RoleVendor:
		return checkVendorOwnership(actor, b.VendorID, string(b.Status), string(ev))
	}
	return nil
}

func (s *bastService) TransitionBast(ctx context.Context, id string, event string, actor workflow.Actor, note string) (*model.Bast, error) {
	ev := workflow.BastEvent(strings.TrimSpace(event))
	if ev == workflow.EventSubmit || ev == workflow.EventResubmit {
		return s.submit(ctx, id, actor, nil, ev)
	}
	note = strings.TrimSpace(note)

	var b *model.Bast
	err := retryOnConflict(func() error {
		var err error
		b, err = s.deps.Basts.FindByIDWithRelations(ctx, id)
		if err != nil {
			return err
		}
		to, err := workflow.NextBastStatus(b.Status, ev, actor.Role)
		if err != nil {
			return err
		}
		if err := checkBastActor(b, ev, actor); err != nil {
			return err
		}

		switch ev {
		case workflow.EventSaveDraft:
			// Nothing to store without a payload.
			return nil
		case workflow.EventInputSagr:
			return &ReconciliationError{Code: CodeMissingReference, Current: b.Status, Message: "nomor SA/GR is required"}
		case workflow.EventReject:
			if err := validation.Note(note); err != nil {
				return err
			}
		case workflow.EventFinalize:
			if t := b.ComputeTotals(); t.Underflow {
				return validation.Field("denda_keterlambatan", validation.ExceedsSubtotal)
			}
		}
		return s.machine.apply(ctx, b, to, ev, actor, note, nil)
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (s *bastService) GetBastDetail(ctx context.Context, id string, actor workflow.Actor) (*BastDetail, error) {
	b, err := s.deps.Basts.FindByIDWithRelations(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkVisible(actor, b.VendorID, "bast "+id); err != nil {
		return nil, err
	}
	logs, err := s.deps.Tracking.ListByParent(ctx, model.ParentBast, b.ID)
	if err != nil {
		return nil, err
	}
	return &BastDetail{
		Bast:       b,
		Totals:     b.ComputeTotals(),
		NextEvents: workflow.BastEventsFrom(b.Status, ""),
		Tracking:   logs,
	}, nil
}

func (s *bastService) ListBasts(ctx context.Context, filter BastListFilter) ([]model.Bast, int64, error) {
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if filter.Status != "" {
		if _, ok := workflow.ParseBastStatus(filter.Status); !ok {
			return nil, 0, validation.Field("status", validation.InvalidValue)
		}
	}
	return s.deps.Basts.List(ctx, toRepoBastFilter(filter))
}

// GetBastSummary counts BASTs per status. Every lifecycle status is present
// in the result.
func (s *bastService) GetBastSummary(ctx context.Context, filter BastListFilter) (model.BastSummary, error) {
	rows, err := s.deps.Basts.CountByStatus(ctx, toRepoBastFilter(filter))
	if err != nil {
		return model.BastSummary{}, err
	}
	summary := model.BastSummary{Counts: make(map[string]int64, len(workflow.BastStatuses))}
	for _, st := range workflow.BastStatuses {
		summary.Counts[string(st)] = 0
	}
	for _, r := range rows {
		if _, ok := summary.Counts[r.Status]; !ok {
			log.Printf("[BAST] summary: ignoring unknown status %q", r.Status)
			continue
		}
		summary.Counts[r.Status] = r.Count
		summary.Total += r.Count
	}
	return summary, nil
}

func toRepoBastFilter(f BastListFilter) repository.BastFilter {
	return repository.BastFilter{
		Status:        f.Status,
		VendorID:      f.VendorID,
		ReviewerEmail: f.ReviewerEmail,
		Search:        f.Search,
		Page:          f.Page,
		Limit:         f.Limit,
	}
}

func (s *bastService) AddSupportingDocument(ctx context.Context, id string, actor workflow.Actor, doc SupportingDocPayload) (*model.Bast, error) {
	nama := strings.TrimSpace(doc.Nama)
	if nama == "" {
		return nil, validation.Field("nama", validation.Required)
	}

	var b *model.Bast
	err := retryOnConflict(func() error {
		var err error
		b, err = s.deps.Basts.FindByIDWithRelations(ctx, id)
		if err != nil {
			return err
		}
		if err := checkEditable(b, actor, actionAddDocument); err != nil {
			return err
		}
		if err := attachment.CheckAdd(len(b.Dokumen)); err != nil {
			return err
		}
		b.Dokumen = append(b.Dokumen, model.BastSupportingDoc{Nama: nama, File: strings.TrimSpace(doc.File)})

		return s.deps.TxManager.RunInTx(ctx, func(txCtx context.Context) error {
			if err := s.deps.Basts.ReplaceSupportingDocs(txCtx, b, b.Version); err != nil {
				return err
			}
			return writeAudit(txCtx, s.deps.Audit, actor, model.ActionAddSupportingDoc, b.ID, nama, map[string]interface{}{
				"file":  doc.File,
				"count": len(b.Dokumen),
			})
		})
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// RemoveSupportingDocument drops the document at index (0-based).
func (s *bastService) RemoveSupportingDocument(ctx context.Context, id string, index int, actor workflow.Actor) (*model.Bast, error) {
	var b *model.Bast
	err := retryOnConflict(func() error {
		var err error
		b, err = s.deps.Basts.FindByIDWithRelations(ctx, id)
		if err != nil {
			return err
		}
		if err := checkEditable(b, actor, actionRemoveDocument); err != nil {
			return err
		}
		if index < 0 || index >= len(b.Dokumen) {
			return fmt.Errorf("dokumen pendukung %d: %w", index+1, apperror.ErrNotFound)
		}
		if err := attachment.CheckRemove(len(b.Dokumen)); err != nil {
			return err
		}
		removed := b.Dokumen[index]
		docs := make([]model.BastSupportingDoc, 0, len(b.Dokumen)-1)
		docs = append(docs, b.Dokumen[:index]...)
		b.Dokumen = append(docs, b.Dokumen[index+1:]...)

		return s.deps.TxManager.RunInTx(ctx, func(txCtx context.Context) error {
			if err := s.deps.Basts.ReplaceSupportingDocs(txCtx, b, b.Version); err != nil {
				return err
			}
			return writeAudit(txCtx, s.deps.Audit, actor, model.ActionRemoveSupportingDoc, b.ID, removed.Nama, map[string]interface{}{
				"file":  removed.File,
				"count": len(b.Dokumen),
			})
		})
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

func checkEditable(b *model.Bast, actor workflow.Actor, action string) error {
	if actor.Role != workflow.RoleVendor {
		return workflow.Unauthorized(string(b.Status), action, actor.Role, "only the vendor edits a BAST")
	}
	if err := checkVendorOwnership(actor, b.VendorID, string(b.Status), action); err != nil {
		return err
	}
	if !b.Status.Editable() {
		return workflow.NotEditable(b.Status, action, actor.Role)
	}
	return nil
}

// bastMachine commits BAST status changes. The status compare and swap, the
// tracking entry and any extra writes share one transaction.
type bastMachine struct {
	deps Deps
}

func (m *bastMachine) apply(ctx context.Context, b *model.Bast, to workflow.BastStatus, ev workflow.BastEvent, actor workflow.Actor, note string, within func(txCtx context.Context) error) error {
	from := b.Status
	now := m.deps.Now()

	err := m.deps.TxManager.RunInTx(ctx, func(txCtx context.Context) error {
		if within != nil {
			if err := within(txCtx); err != nil {
				return err
			}
		}
		if err := m.deps.Basts.UpdateStatus(txCtx, b.ID, from, to, b.Version); err != nil {
			return err
		}
		return appendLog(txCtx, m.deps.Tracking, model.TrackingLog{
			ParentType:       model.ParentBast,
			ParentID:         b.ID,
			StatusSebelumnya: string(from),
			StatusBaru:       string(to),
			Event:            string(ev),
			ChangedBy:        actor.Email,
			ChangedAt:        now,
			Note:             note,
		})
	})
	if err != nil {
		return err
	}

	b.Status = to
	b.Version++
	logTransition("BAST", b.ID, string(from), string(to), string(ev), actor.Email)
	m.deps.Notifier.Publish(TopicBastStatus, StatusChange{
		ID:        b.ID,
		VendorID:  b.VendorID.String(),
		From:      string(from),
		To:        string(to),
		Event:     string(ev),
		ChangedBy: actor.Email,
		ChangedAt: now,
	})
	return nil
}
