package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"bedlog-backend/internal/apperr"
	"bedlog-backend/internal/auth"
	"bedlog-backend/internal/bed"
	"bedlog-backend/internal/store"
)

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginResponse struct {
	Token string   `json:"token"`
	UID   string   `json:"uid"`
	Email string   `json:"email"`
	Role  bed.Role `json:"role,omitempty"`
}

// Login handles POST /api/auth/login.
func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Email and password are required.", err)
		return
	}

	ctx := c.Request.Context()
	ident, err := h.store.FindIdentityByEmail(ctx, req.Email)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		writeError(c, apperr.Wrap(apperr.Unavailable, "Sign-in is unavailable. Please retry.", err))
		return
	}
	if err != nil || !auth.CheckPassword(ident.PasswordHash, req.Password) {
		writeError(c, apperr.New(apperr.Unauthenticated, "Invalid email or password."))
		return
	}

	claim, _ := bed.ParseRole(ident.RoleClaim)
	token, err := h.issuer.Issue(ident.UID, ident.Email, claim)
	if err != nil {
		writeError(c, apperr.Wrap(apperr.Internal, "Failed to start a session.", err))
		return
	}

	// A missing role record is left for the session gate to handle.
	role, err := h.roles.LookupRole(ctx, ident.UID)
	if err != nil && !errors.Is(err, auth.ErrRoleNotFound) {
		h.log.Warn("role lookup failed at sign-in", zap.String("uid", ident.UID), zap.Error(err))
	}

	h.log.Info("signed in", zap.String("uid", ident.UID))
	c.JSON(http.StatusOK, loginResponse{Token: token, UID: ident.UID, Email: ident.Email, Role: role})
}

// Logout handles POST /api/auth/logout.
func (h *Handler) Logout(c *gin.Context) {
	if err := h.issuer.Revoke(auth.BearerToken(c)); err != nil {
		h.log.Debug("logout with unusable token", zap.Error(err))
	}
	c.Status(http.StatusNoContent)
}

// ResetMailer hands a password-reset token to its owner.
type ResetMailer interface {
	SendPasswordReset(ctx context.Context, email, token string) error
}

// logResetMailer is used when no mail transport is wired. Tokens only reach
// the log at Debug level.
type logResetMailer struct {
	log *zap.Logger
}

func (m logResetMailer) SendPasswordReset(_ context.Context, email, token string) error {
	m.log.Debug("password reset token", zap.String("email", email), zap.String("reset_token", token))
	return nil
}

type resetRequest struct {
	Email string `json:"email" binding:"required"`
}

// RequestPasswordReset handles POST /api/auth/password-reset. The answer
// never reveals whether the address is registered.
func (h *Handler) RequestPasswordReset(c *gin.Context) {
	var req resetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Email is required.", err)
		return
	}

	ctx := c.Request.Context()
	ident, err := h.store.FindIdentityByEmail(ctx, req.Email)
	switch {
	case err == nil:
		token := h.issuer.IssueReset(ident.UID)
		if err := h.resets.SendPasswordReset(ctx, ident.Email, token); err != nil {
			h.log.Warn("password reset delivery failed", zap.String("uid", ident.UID), zap.Error(err))
			break
		}
		h.log.Info("password reset issued", zap.String("uid", ident.UID))
	case !errors.Is(err, store.ErrNotFound):
		h.log.Warn("password reset lookup failed", zap.Error(err))
	}
	c.Status(http.StatusAccepted)
}

type confirmResetRequest struct {
	Token    string `json:"token" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// ConfirmPasswordReset handles POST /api/auth/password-reset/confirm.
func (h *Handler) ConfirmPasswordReset(c *gin.Context) {
	var req confirmResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Token and password are required.", err)
		return
	}
	if auth.PasswordTooShort(req.Password) {
		writeError(c, apperr.New(apperr.InvalidArgument, "Password must be at least 6 characters."))
		return
	}

	uid, ok := h.issuer.ConsumeReset(req.Token)
	if !ok {
		writeError(c, apperr.New(apperr.InvalidArgument, "This reset link is invalid or has expired."))
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(c, apperr.Wrap(apperr.Internal, "Failed to update password.", err))
		return
	}
	if err := h.store.UpdatePassword(c.Request.Context(), uid, hash); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(c, apperr.New(apperr.NotFound, "Account not found."))
			return
		}
		writeError(c, apperr.Wrap(apperr.Unavailable, "Failed to update password.", err))
		return
	}
	c.Status(http.StatusNoContent)
}
