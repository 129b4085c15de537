package workflow

import (
	"fmt"
	"math"
	"time"

	"bastportal/internal/apperror"
)

// InvoiceStatus is the tracking status of a standalone vendor invoice.
type InvoiceStatus string

const (
	InvoiceSent     InvoiceStatus = "sent"
	InvoiceReceived InvoiceStatus = "received"
	InvoiceRejected InvoiceStatus = "rejected"
	InvoicePaid     InvoiceStatus = "paid"
)

// InvoiceStatuses lists invoice statuses in workflow order.
var InvoiceStatuses = []InvoiceStatus{InvoiceSent, InvoiceReceived, InvoiceRejected, InvoicePaid}

// ParseInvoiceStatus returns the status named by s.
func ParseInvoiceStatus(s string) (InvoiceStatus, bool) {
	for _, st := range InvoiceStatuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// Terminal reports whether no event leaves s.
func (s InvoiceStatus) Terminal() bool {
	return s == InvoicePaid || s == InvoiceRejected
}

// InvoiceEvent is an action applied to an invoice.
type InvoiceEvent string

const (
	InvoiceEventReceive InvoiceEvent = "receive"
	InvoiceEventReject  InvoiceEvent = "reject"
	InvoiceEventPay     InvoiceEvent = "pay"
)

// InvoiceEvents lists every invoice event.
var InvoiceEvents = []InvoiceEvent{InvoiceEventReceive, InvoiceEventReject, InvoiceEventPay}

// ParseInvoiceEvent returns the event named by s.
func ParseInvoiceEvent(s string) (InvoiceEvent, bool) {
	for _, ev := range InvoiceEvents {
		if string(ev) == s {
			return ev, true
		}
	}
	return "", false
}

type invoiceKey struct {
	from  InvoiceStatus
	event InvoiceEvent
}

var invoiceTransitions = map[invoiceKey]InvoiceStatus{
	{InvoiceSent, InvoiceEventReceive}:    InvoiceReceived,
	{InvoiceReceived, InvoiceEventReject}: InvoiceRejected,
	{InvoiceReceived, InvoiceEventPay}:    InvoicePaid,
}

var invoiceRoles = []Role{RoleStaff}

// NextInvoiceStatus applies ev to from on behalf of role.
func NextInvoiceStatus(from InvoiceStatus, ev InvoiceEvent, role Role) (InvoiceStatus, error) {
	to, ok := invoiceTransitions[invoiceKey{from, ev}]
	if !ok {
		return from, &TransitionError{
			Kind:    apperror.ErrInvalidTransition,
			Current: string(from),
			Event:   string(ev),
			Role:    role,
			Allowed: invoiceSuccessors(from),
		}
	}
	if !containsRole(invoiceRoles, role) {
		return from, &TransitionError{
			Kind:    apperror.ErrUnauthorizedTransition,
			Current: string(from),
			Event:   string(ev),
			Role:    role,
			Allowed: invoiceSuccessors(from),
		}
	}
	return to, nil
}

// CanAssignPic reports whether the PIC of an invoice in status s may still
// be changed.
func CanAssignPic(s InvoiceStatus) bool { return s != InvoicePaid }

func invoiceSuccessors(from InvoiceStatus) []string {
	var out []string
	for _, st := range InvoiceStatuses {
		for k, to := range invoiceTransitions {
			if k.from == from && to == st {
				out = append(out, string(st))
				break
			}
		}
	}
	return out
}

// Time-remaining labels.
const (
	RemainingPaid    = "-"
	RemainingOverdue = "Terlambat"
	RemainingToday   = "Hari ini"
)

// DaysRemaining is ceil((deadline-now) / 24h).
func DaysRemaining(deadline, now time.Time) int {
	diff := deadline.Sub(now)
	return int(math.Ceil(float64(diff) / float64(24*time.Hour)))
}

// TimeRemaining labels how long is left before an invoice falls due.
func TimeRemaining(deadline, now time.Time, status InvoiceStatus) string {
	if status == InvoicePaid {
		return RemainingPaid
	}
	days := DaysRemaining(deadline, now)
	switch {
	case days < 0:
		return RemainingOverdue
	case days == 0:
		return RemainingToday
	case days == 1:
		return "1 hari"
	default:
		return fmt.Sprintf("%d hari", days)
	}
}
