package auth

import (
	"errors"

	"bedlog-backend/internal/bed"
)

// ErrSessionInvalid marks an authenticated credential without a role record.
var ErrSessionInvalid = errors.New("session has no role record")

// Session is a signed-in identity with its resolved role.
type Session struct {
	UID   string   `json:"uid"`
	Email string   `json:"email"`
	Role  bed.Role `json:"role"`
	// Claim is the role stamped into the credential at issue time. It may
	// be empty for identities created before claims were stamped.
	Claim bed.Role `json:"-"`
}

// IsAdmin reports whether the resolved role is Admin.
func (s Session) IsAdmin() bool {
	return s.Role == bed.RoleAdmin
}

// CanManageUsers gates user creation and role changes.
func (s Session) CanManageUsers() bool {
	return s.IsAdmin()
}

// CanEditAdminFields gates asset number, serial number and purchase order.
func (s Session) CanEditAdminFields() bool {
	return s.IsAdmin()
}
