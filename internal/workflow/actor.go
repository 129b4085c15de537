// Package workflow holds the BAST and invoice lifecycles: the closed status
// enumerations, the transition tables and the roles allowed to fire each event.
// Callers always pass the acting user explicitly.
package workflow

import "strings"

// Role is the portal role of an actor.
type Role string

const (
	RoleVendor   Role = "vendor"
	RoleReviewer Role = "reviewer"
	RoleApprover Role = "approver"
	RoleStaff    Role = "staff" // PIC
	RoleAdmin    Role = "admin"
	RoleSystem   Role = "system"
)

// Roles lists every role known to the portal.
var Roles = []Role{RoleVendor, RoleReviewer, RoleApprover, RoleStaff, RoleAdmin, RoleSystem}

// ParseRole returns the role named by s, or false when it is unknown.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Roles {
		if r == known {
			return r, true
		}
	}
	return "", false
}

// Actor is the user performing an operation.
type Actor struct {
	Email    string `json:"email"`
	Role     Role   `json:"role"`
	VendorID string `json:"vendor_id,omitempty"`
}

// SystemActor is used for transitions the portal applies on its own.
var SystemActor = Actor{Email: "system", Role: RoleSystem}

func containsRole(roles []Role, r Role) bool {
	for _, x := range roles {
		if x == r {
			return true
		}
	}
	return false
}
