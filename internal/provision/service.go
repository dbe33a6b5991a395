package provision

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"bedlog-backend/internal/apperr"
	"bedlog-backend/internal/auth"
	"bedlog-backend/internal/bed"
	"bedlog-backend/internal/model"
	"bedlog-backend/internal/store"
)

// Identities is the part of the store provisioning reads and writes.
type Identities interface {
	GetIdentity(ctx context.Context, uid string) (model.Identity, error)
	CreateIdentity(ctx context.Context, email, passwordHash string, role bed.Role) (model.Identity, error)
	SetRole(ctx context.Context, uid string, role bed.Role) error
}

// Service runs createUser and setRole server side. The caller's own
// session is never touched.
type Service struct {
	ids   Identities
	roles auth.RoleLookup
	log   *zap.Logger
}

// NewService creates the provisioning service.
func NewService(ids Identities, roles auth.RoleLookup, log *zap.Logger) *Service {
	return &Service{ids: ids, roles: roles, log: log}
}

// Authorize trusts the Admin claim first and falls back to the role record.
// The claim is read from the caller's identity as it stands now; the copy in
// the session token predates any later setRole.
func (s *Service) Authorize(ctx context.Context, caller *auth.Session) error {
	if caller == nil || caller.UID == "" {
		return apperr.New(apperr.Unauthenticated, "You must be signed in.")
	}
	ident, err := s.ids.GetIdentity(ctx, caller.UID)
	switch {
	case err == nil && ident.RoleClaim == string(bed.RoleAdmin):
		return nil
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return apperr.Wrap(apperr.Internal, "Failed to verify privileges.", err)
	}
	role, err := s.roles.LookupRole(ctx, caller.UID)
	switch {
	case err == nil && role == bed.RoleAdmin:
		return nil
	case err != nil && !errors.Is(err, auth.ErrRoleNotFound):
		return apperr.Wrap(apperr.Internal, "Failed to verify privileges.", err)
	}
	return apperr.New(apperr.PermissionDenied, "Admin privileges are required.")
}

// CreateUser creates an identity stamped with role and its role record.
func (s *Service) CreateUser(ctx context.Context, caller *auth.Session, req CreateUserRequest) (CreatedUser, error) {
	if err := s.Authorize(ctx, caller); err != nil {
		return CreatedUser{}, err
	}

	email := store.NormalizeEmail(req.Email)
	if email == "" || req.Password == "" || strings.TrimSpace(req.Role) == "" {
		return CreatedUser{}, apperr.New(apperr.InvalidArgument, "email, password, and role are required.")
	}
	role, ok := bed.ParseRole(req.Role)
	if !ok {
		return CreatedUser{}, apperr.New(apperr.InvalidArgument, `role must be "Admin" or "User".`)
	}
	if auth.PasswordTooShort(req.Password) {
		return CreatedUser{}, apperr.New(apperr.InvalidArgument,
			fmt.Sprintf("Password must be at least %d characters long.", auth.MinPasswordLength))
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return CreatedUser{}, apperr.Wrap(apperr.Internal, "Failed to create user", err)
	}
	ident, err := s.ids.CreateIdentity(ctx, email, hash, role)
	if err != nil {
		if errors.Is(err, store.ErrEmailExists) {
			return CreatedUser{}, apperr.Wrap(apperr.AlreadyExists, "This email is already registered.", err)
		}
		return CreatedUser{}, apperr.Wrap(apperr.Internal, "Failed to create user", err)
	}

	s.log.Info("user created",
		zap.String("uid", ident.UID),
		zap.String("role", string(role)),
		zap.String("by", caller.Email))
	return CreatedUser{UID: ident.UID, Email: ident.Email, Role: role}, nil
}

// SetRole re-stamps the claim and role record of an existing identity.
func (s *Service) SetRole(ctx context.Context, caller *auth.Session, req SetRoleRequest) (RoleAssignment, error) {
	if err := s.Authorize(ctx, caller); err != nil {
		return RoleAssignment{}, err
	}

	if strings.TrimSpace(req.UID) == "" || strings.TrimSpace(req.Role) == "" {
		return RoleAssignment{}, apperr.New(apperr.InvalidArgument, "uid and role are required.")
	}
	role, ok := bed.ParseRole(req.Role)
	if !ok {
		return RoleAssignment{}, apperr.New(apperr.InvalidArgument, `role must be "Admin" or "User".`)
	}

	if err := s.ids.SetRole(ctx, req.UID, role); err != nil {
		return RoleAssignment{}, apperr.Wrap(apperr.Internal, "Failed to set role", err)
	}

	s.log.Info("role set",
		zap.String("uid", req.UID),
		zap.String("role", string(role)),
		zap.String("by", caller.Email))
	return RoleAssignment{UID: req.UID, Role: role}, nil
}

// As binds the service to caller so it can back a Flow in process.
func (s *Service) As(caller auth.Session) Caller {
	return boundCaller{svc: s, caller: caller}
}

type boundCaller struct {
	svc    *Service
	caller auth.Session
}

func (b boundCaller) CreateUser(ctx context.Context, req CreateUserRequest) (CreatedUser, error) {
	return b.svc.CreateUser(ctx, &b.caller, req)
}

func (b boundCaller) SetRole(ctx context.Context, req SetRoleRequest) (RoleAssignment, error) {
	return b.svc.SetRole(ctx, &b.caller, req)
}

// Bootstrap creates the first Admin when email is not registered yet. It
// runs at start-up without a caller, so an empty log can be administered.
func (s *Service) Bootstrap(ctx context.Context, email, password string) (created bool, err error) {
	email = store.NormalizeEmail(email)
	if email == "" {
		return false, nil
	}
	if auth.PasswordTooShort(password) {
		return false, apperr.New(apperr.InvalidArgument, "bootstrap admin password is too short")
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return false, err
	}
	ident, err := s.ids.CreateIdentity(ctx, email, hash, bed.RoleAdmin)
	if err != nil {
		if errors.Is(err, store.ErrEmailExists) {
			return false, nil
		}
		return false, err
	}
	s.log.Info("bootstrap admin created", zap.String("uid", ident.UID), zap.String("email", ident.Email))
	return true, nil
}
