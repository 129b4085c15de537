package workflow

import (
	"errors"
	"fmt"
	"strings"

	"bastportal/internal/apperror"
)

// TransitionError reports an event that cannot be applied. Kind is either
// apperror.ErrInvalidTransition or apperror.ErrUnauthorizedTransition.
type TransitionError struct {
	Kind    error
	Current string
	Event   string
	Role    Role
	Allowed []string // successor states reachable from Current
	Reason  string
}

func (e *TransitionError) Error() string {
	if errors.Is(e.Kind, apperror.ErrUnauthorizedTransition) {
		msg := fmt.Sprintf("role %q may not apply %q from %s", e.Role, e.Event, e.Current)
		if e.Reason != "" {
			msg += ": " + e.Reason
		}
		return msg
	}
	return fmt.Sprintf("cannot apply %q from %s (allowed successors: [%s])", e.Event, e.Current, strings.Join(e.Allowed, ", "))
}

func (e *TransitionError) Unwrap() error { return e.Kind }

// Unauthorized builds an UnauthorizedTransition for identity checks made
// outside the transition table, such as a reviewer acting on a BAST that is
// assigned to somebody else.
func Unauthorized(current, event string, role Role, reason string) *TransitionError {
	return &TransitionError{
		Kind:    apperror.ErrUnauthorizedTransition,
		Current: current,
		Event:   event,
		Role:    role,
		Reason:  reason,
	}
}
