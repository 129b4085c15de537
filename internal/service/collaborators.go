package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"bastportal/internal/apperror"
	"bastportal/internal/model"
	"bastportal/internal/repository"
	"bastportal/internal/validation"
	"bastportal/internal/workflow"

	"github.com/google/uuid"
)

// Directory resolves portal users by email.
type Directory interface {
	FindByEmail(ctx context.Context, email string) (*model.User, error)
}

// VendorLookup checks vendor references at creation time.
type VendorLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.Vendor, error)
}

// InvoiceTypeLookup checks invoice-type references at upload time.
type InvoiceTypeLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.InvoiceType, error)
}

// Notifier pushes events to connected clients. Publish must not block.
type Notifier interface {
	Publish(topic string, payload interface{})
}

type nopNotifier struct{}

func (nopNotifier) Publish(string, interface{}) {}

// Push topics.
const (
	TopicBastStatus      = "bast.status_changed"
	TopicInvoiceStatus   = "invoice.status_changed"
	TopicInvoicePic      = "invoice.pic_assigned"
	TopicInvoiceReminder = "invoice.due_reminder"
)

// StatusChange is the payload of a status push.
type StatusChange struct {
	ID        string    `json:"id"`
	VendorID  string    `json:"vendor_id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Event     string    `json:"event"`
	ChangedBy string    `json:"changed_by"`
	ChangedAt time.Time `json:"changed_at"`
}

// Deps bundles what the services share.
type Deps struct {
	Basts        repository.BastRepository
	Invoices     repository.InvoiceRepository
	Tracking     repository.TrackingRepository
	Audit        repository.AuditRepository
	Directory    Directory
	Vendors      VendorLookup
	InvoiceTypes InvoiceTypeLookup
	TxManager    repository.TransactionManager
	Notifier     Notifier
	Now          func() time.Time
}

func (d Deps) withDefaults() Deps {
	if d.Notifier == nil {
		d.Notifier = nopNotifier{}
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

// retryOnConflict runs fn once more when it lost a compare and swap. fn must
// re-read the document, so the second attempt validates against the state
// the winning request left behind.
func retryOnConflict(fn func() error) error {
	err := fn()
	if errors.Is(err, apperror.ErrConcurrencyConflict) {
		err = fn()
	}
	return err
}

// lookupField turns a missing master-data row into a field error. Other
// failures, such as an unreachable store, pass through.
func lookupField(err error, field string) error {
	if errors.Is(err, apperror.ErrNotFound) {
		return validation.Field(field, validation.NotFound)
	}
	return err
}

// checkVendorOwnership fails when a vendor actor acts on another vendor's
// document.
func checkVendorOwnership(actor workflow.Actor, vendorID uuid.UUID, current, event string) error {
	if actor.Role != workflow.RoleVendor || actor.VendorID == "" {
		return nil
	}
	if actor.VendorID != vendorID.String() {
		return workflow.Unauthorized(current, event, actor.Role, "document belongs to another vendor")
	}
	return nil
}

// checkVisible hides another vendor's document from a vendor actor. The
// document is reported as missing so its id does not leak.
func checkVisible(actor workflow.Actor, vendorID uuid.UUID, what string) error {
	if actor.Role == workflow.RoleVendor && actor.VendorID != vendorID.String() {
		return fmt.Errorf("%s: %w", what, apperror.ErrNotFound)
	}
	return nil
}

func parseUUID(field, s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, validation.Field(field, validation.InvalidValue)
	}
	return id, nil
}

// appendLog writes the tracking entry of a status change. It must run inside
// the transaction that changed the status.
func appendLog(ctx context.Context, repo repository.TrackingRepository, entry model.TrackingLog) error {
	if err := repo.Append(ctx, &entry); err != nil {
		return fmt.Errorf("failed to append tracking log: %w", err)
	}
	return nil
}

func logTransition(prefix, id, from, to, event, actor string) {
	log.Printf("[%s] %s %s -> %s (%s by %s)", prefix, id, from, to, event, actor)
}
