package workflow

import (
	"bastportal/internal/apperror"
)

// BastStatus is the lifecycle state of a BAST. The string values are the
// canonical wire values.
type BastStatus string

const (
	BastDraft             BastStatus = "DRAFT"
	BastWaitingReview     BastStatus = "WAITING_REVIEW"
	BastRejectFromReview  BastStatus = "REJECT_FROM_REVIEW"
	BastWaitingApprover   BastStatus = "WAITING_APPROVER"
	BastDisetujuiApprover BastStatus = "DISETUJUI_APPROVER"
	BastDisetujuiVendor   BastStatus = "DISETUJUI_VENDOR"
	BastInputSagr         BastStatus = "INPUT_SAGR"
	BastDone              BastStatus = "BAST_DONE"

	// bastNone is the pseudo state before creation.
	bastNone BastStatus = ""
)

// BastStatuses lists the lifecycle states in workflow order.
var BastStatuses = []BastStatus{
	BastDraft,
	BastWaitingReview,
	BastRejectFromReview,
	BastWaitingApprover,
	BastDisetujuiApprover,
	BastDisetujuiVendor,
	BastInputSagr,
	BastDone,
}

// ParseBastStatus returns the status named by s.
func ParseBastStatus(s string) (BastStatus, bool) {
	for _, st := range BastStatuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// Terminal reports whether no event leaves s.
func (s BastStatus) Terminal() bool { return s == BastDone }

// Editable reports whether the vendor may change the payload in state s.
func (s BastStatus) Editable() bool {
	return s == BastDraft || s == BastRejectFromReview
}

// BastEvent is an action applied to a BAST.
type BastEvent string

const (
	EventCreate        BastEvent = "create"
	EventSaveDraft     BastEvent = "save-draft"
	EventSubmit        BastEvent = "submit"
	EventReject        BastEvent = "reject"
	EventResubmit      BastEvent = "resubmit"
	EventApproveReview BastEvent = "approve-review"
	EventApprove       BastEvent = "approve"
	EventVendorConfirm BastEvent = "vendor-confirm"
	EventInputSagr     BastEvent = "input-sagr"
	EventFinalize      BastEvent = "finalize"
)

// BastEvents lists every BAST event.
var BastEvents = []BastEvent{
	EventCreate,
	EventSaveDraft,
	EventSubmit,
	EventReject,
	EventResubmit,
	EventApproveReview,
	EventApprove,
	EventVendorConfirm,
	EventInputSagr,
	EventFinalize,
}

// ParseBastEvent returns the event named by s.
func ParseBastEvent(s string) (BastEvent, bool) {
	for _, ev := range BastEvents {
		if string(ev) == s {
			return ev, true
		}
	}
	return "", false
}

// Logged reports whether applying ev appends a tracking-log entry.
func (ev BastEvent) Logged() bool {
	return ev != EventCreate && ev != EventSaveDraft
}

type bastKey struct {
	from  BastStatus
	event BastEvent
}

type bastRule struct {
	to    BastStatus
	roles []Role
}

var bastTransitions = map[bastKey]bastRule{
	{bastNone, EventCreate}:                     {BastDraft, []Role{RoleVendor}},
	{BastDraft, EventSaveDraft}:                 {BastDraft, []Role{RoleVendor}},
	{BastDraft, EventSubmit}:                    {BastWaitingReview, []Role{RoleVendor}},
	{BastWaitingReview, EventReject}:            {BastRejectFromReview, []Role{RoleReviewer}},
	{BastRejectFromReview, EventResubmit}:       {BastWaitingReview, []Role{RoleVendor}},
	{BastWaitingReview, EventApproveReview}:     {BastWaitingApprover, []Role{RoleReviewer}},
	{BastWaitingApprover, EventApprove}:         {BastDisetujuiApprover, []Role{RoleApprover}},
	{BastDisetujuiApprover, EventVendorConfirm}: {BastDisetujuiVendor, []Role{RoleVendor}},
	{BastDisetujuiVendor, EventInputSagr}:       {BastInputSagr, []Role{RoleStaff}},
	{BastInputSagr, EventFinalize}:              {BastDone, []Role{RoleSystem, RoleStaff}},
}

// NextBastStatus applies ev to from on behalf of role. An event with no row
// for from yields InvalidTransition; a row that exists but does not list role
// yields UnauthorizedTransition.
func NextBastStatus(from BastStatus, ev BastEvent, role Role) (BastStatus, error) {
	rule, ok := bastTransitions[bastKey{from, ev}]
	if !ok {
		return from, &TransitionError{
			Kind:    apperror.ErrInvalidTransition,
			Current: bastLabel(from),
			Event:   string(ev),
			Role:    role,
			Allowed: statusStrings(BastSuccessors(from)),
		}
	}
	if !containsRole(rule.roles, role) {
		return from, &TransitionError{
			Kind:    apperror.ErrUnauthorizedTransition,
			Current: bastLabel(from),
			Event:   string(ev),
			Role:    role,
			Allowed: statusStrings(BastSuccessors(from)),
		}
	}
	return rule.to, nil
}

// BastSuccessors returns the distinct states reachable from from in one event,
// in workflow order.
func BastSuccessors(from BastStatus) []BastStatus {
	seen := make(map[BastStatus]bool)
	for k, r := range bastTransitions {
		if k.from == from {
			seen[r.to] = true
		}
	}
	out := make([]BastStatus, 0, len(seen))
	for _, st := range BastStatuses {
		if seen[st] {
			out = append(out, st)
		}
	}
	return out
}

// BastEventsFrom returns the events with a row for from, for the given role.
// An empty role returns events for every role.
func BastEventsFrom(from BastStatus, role Role) []BastEvent {
	var out []BastEvent
	for _, ev := range BastEvents {
		rule, ok := bastTransitions[bastKey{from, ev}]
		if !ok {
			continue
		}
		if role == "" || containsRole(rule.roles, role) {
			out = append(out, ev)
		}
	}
	return out
}

// BastRoles returns the roles allowed to apply ev from from.
func BastRoles(from BastStatus, ev BastEvent) []Role {
	rule, ok := bastTransitions[bastKey{from, ev}]
	if !ok {
		return nil
	}
	return append([]Role(nil), rule.roles...)
}

func bastLabel(s BastStatus) string {
	if s == bastNone {
		return "(none)"
	}
	return string(s)
}

func statusStrings(sts []BastStatus) []string {
	out := make([]string, len(sts))
	for i, s := range sts {
		out[i] = string(s)
	}
	return out
}

// NotEditable reports an edit of the payload outside DRAFT and
// REJECT_FROM_REVIEW.
func NotEditable(current BastStatus, action string, role Role) *TransitionError {
	return &TransitionError{
		Kind:    apperror.ErrInvalidTransition,
		Current: bastLabel(current),
		Event:   action,
		Role:    role,
		Allowed: statusStrings(BastSuccessors(current)),
	}
}

// CreateBastStatus is the state a newly created BAST starts in, or an error
// when role may not create one.
func CreateBastStatus(role Role) (BastStatus, error) {
	return NextBastStatus(bastNone, EventCreate, role)
}
