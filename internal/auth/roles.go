package auth

import (
	"context"
	"errors"
	"fmt"

	"bedlog-backend/internal/bed"
	"bedlog-backend/internal/model"
	"bedlog-backend/internal/store"
)

// UserReader reads role records.
type UserReader interface {
	GetUser(ctx context.Context, uid string) (model.AppUser, error)
}

// StoreRoles resolves roles from the role records in the database.
type StoreRoles struct {
	users UserReader
}

// NewStoreRoles creates a RoleLookup over users.
func NewStoreRoles(users UserReader) *StoreRoles {
	return &StoreRoles{users: users}
}

// LookupRole returns ErrRoleNotFound for a missing or unrecognised record.
func (r *StoreRoles) LookupRole(ctx context.Context, uid string) (bed.Role, error) {
	u, err := r.users.GetUser(ctx, uid)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrRoleNotFound
		}
		return "", fmt.Errorf("failed to look up role for %s: %w", uid, err)
	}
	role, ok := bed.ParseRole(u.Role)
	if !ok {
		return "", fmt.Errorf("%w: unrecognised role %q", ErrRoleNotFound, u.Role)
	}
	return role, nil
}
