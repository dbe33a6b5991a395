package provision

import (
	"context"

	"bedlog-backend/internal/bed"
)

// CreateUserRequest is the body of the createUser operation. Role is kept
// as text so an unknown value can be rejected as an invalid argument.
type CreateUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// CreatedUser is the createUser result.
type CreatedUser struct {
	UID   string   `json:"uid"`
	Email string   `json:"email"`
	Role  bed.Role `json:"role"`
}

// SetRoleRequest is the body of the setRole operation.
type SetRoleRequest struct {
	UID  string `json:"uid"`
	Role string `json:"role"`
}

// RoleAssignment is the setRole result.
type RoleAssignment struct {
	UID  string   `json:"uid"`
	Role bed.Role `json:"role"`
}

// Caller dispatches the two administrative operations on behalf of the
// signed-in session.
type Caller interface {
	CreateUser(ctx context.Context, req CreateUserRequest) (CreatedUser, error)
	SetRole(ctx context.Context, req SetRoleRequest) (RoleAssignment, error)
}
