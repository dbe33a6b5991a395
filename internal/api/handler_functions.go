package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"bedlog-backend/internal/apperr"
	"bedlog-backend/internal/provision"
)

// CreateUser handles POST /api/functions/createUser. The caller is
// authorized before the body is read.
func (h *Handler) CreateUser(c *gin.Context) {
	sess := session(c)
	ctx := c.Request.Context()
	if err := h.prov.Authorize(ctx, &sess); err != nil {
		h.metrics.IncProvision("createUser", codeLabel(err))
		writeError(c, err)
		return
	}

	var req provision.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "email, password, and role are required.", err)
		return
	}

	out, err := h.prov.CreateUser(ctx, &sess, req)
	h.metrics.IncProvision("createUser", codeLabel(err))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// SetRole handles POST /api/functions/setRole.
func (h *Handler) SetRole(c *gin.Context) {
	sess := session(c)
	ctx := c.Request.Context()
	if err := h.prov.Authorize(ctx, &sess); err != nil {
		h.metrics.IncProvision("setRole", codeLabel(err))
		writeError(c, err)
		return
	}

	var req provision.SetRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "uid and role are required.", err)
		return
	}

	out, err := h.prov.SetRole(ctx, &sess, req)
	h.metrics.IncProvision("setRole", codeLabel(err))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func codeLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return string(apperr.CodeOf(err))
}
