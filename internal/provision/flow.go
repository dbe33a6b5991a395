package provision

import (
	"context"
	"fmt"

	"bedlog-backend/internal/apperr"
	"bedlog-backend/internal/auth"
	"bedlog-backend/internal/bed"
)

// Flow is the admin-side entry point to provisioning. Its checks are a
// convenience; Service enforces the real contract.
type Flow struct {
	caller Caller
}

// NewFlow creates a flow dispatching through caller.
func NewFlow(caller Caller) *Flow {
	return &Flow{caller: caller}
}

// CreateUser rejects short passwords before dispatching.
func (f *Flow) CreateUser(ctx context.Context, email, password string, role bed.Role) (CreatedUser, error) {
	if auth.PasswordTooShort(password) {
		return CreatedUser{}, apperr.New(apperr.InvalidArgument,
			fmt.Sprintf("Password must be at least %d characters long.", auth.MinPasswordLength))
	}
	return f.caller.CreateUser(ctx, CreateUserRequest{Email: email, Password: password, Role: string(role)})
}

// SetRole dispatches directly.
func (f *Flow) SetRole(ctx context.Context, uid string, role bed.Role) (RoleAssignment, error) {
	return f.caller.SetRole(ctx, SetRoleRequest{UID: uid, Role: string(role)})
}
