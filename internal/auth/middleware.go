package auth

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"bedlog-backend/internal/apperr"
)

const sessionKey = "bedlog.session"

// BearerToken extracts the token from an Authorization header.
func BearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	// EventSource cannot set headers.
	return c.Query("access_token")
}

// RequireSession verifies the bearer token and resolves the caller's role
// record. A credential without a role record is rejected like a missing one.
func RequireSession(issuer *Issuer, roles RoleLookup, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ident, err := issuer.Verify(BearerToken(c))
		if err != nil {
			abort(c, apperr.Wrap(apperr.Unauthenticated, "Please sign in.", err))
			return
		}

		role, err := roles.LookupRole(c.Request.Context(), ident.UID)
		if err != nil {
			if errors.Is(err, ErrRoleNotFound) {
				log.Warn("rejecting credential without role record", zap.String("uid", ident.UID))
				abort(c, apperr.Wrap(apperr.Unauthenticated, "Your session is no longer valid. Please sign in again.", ErrSessionInvalid))
				return
			}
			abort(c, apperr.Wrap(apperr.Unavailable, "Could not verify your session. Please retry.", err))
			return
		}

		c.Set(sessionKey, Session{UID: ident.UID, Email: ident.Email, Role: role, Claim: ident.Claim})
		c.Next()
	}
}

// RequireAdmin must run after RequireSession.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := SessionFrom(c)
		if !ok || !s.CanManageUsers() {
			abort(c, apperr.New(apperr.PermissionDenied, "Permission denied."))
			return
		}
		c.Next()
	}
}

// SessionFrom returns the session stored by RequireSession.
func SessionFrom(c *gin.Context) (Session, bool) {
	v, ok := c.Get(sessionKey)
	if !ok {
		return Session{}, false
	}
	s, ok := v.(Session)
	return s, ok
}

func abort(c *gin.Context, err error) {
	status, body := apperr.Response(err)
	c.AbortWithStatusJSON(status, body)
}
