package api

import (
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"bedlog-backend/internal/apperr"
	"bedlog-backend/internal/bed"
	"bedlog-backend/internal/model"
	"bedlog-backend/internal/store"
)

type userResponse struct {
	UID       string    `json:"uid"`
	Email     string    `json:"email"`
	Role      bed.Role  `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

func toUserResponse(u model.AppUser) userResponse {
	return userResponse{UID: u.UID, Email: u.Email, Role: bed.Role(u.Role), CreatedAt: u.CreatedAt}
}

// Me handles GET /api/users/me.
func (h *Handler) Me(c *gin.Context) {
	h.writeUser(c, session(c).UID)
}

// GetUser handles GET /api/users/:uid. Users may read their own record,
// admins any record.
func (h *Handler) GetUser(c *gin.Context) {
	uid := c.Param("uid")
	if sess := session(c); sess.UID != uid && !sess.CanManageUsers() {
		writeError(c, apperr.New(apperr.PermissionDenied, "Permission denied."))
		return
	}
	h.writeUser(c, uid)
}

func (h *Handler) writeUser(c *gin.Context, uid string) {
	u, err := h.store.GetUser(c.Request.Context(), uid)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(c, apperr.New(apperr.NotFound, "User not found."))
			return
		}
		writeError(c, apperr.Wrap(apperr.Unavailable, "Could not load the user.", err))
		return
	}
	c.JSON(http.StatusOK, toUserResponse(u))
}

// ListUsers handles GET /api/users?q=. Admins come first, then by email.
func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.store.ListUsers(c.Request.Context())
	if err != nil {
		writeError(c, apperr.Wrap(apperr.Unavailable, "Could not load users.", err))
		return
	}

	q := strings.ToLower(strings.TrimSpace(c.Query("q")))
	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		if q != "" && !strings.Contains(strings.ToLower(u.Email), q) {
			continue
		}
		out = append(out, toUserResponse(u))
	}
	sort.SliceStable(out, func(i, j int) bool {
		ai, aj := out[i].Role == bed.RoleAdmin, out[j].Role == bed.RoleAdmin
		if ai != aj {
			return ai
		}
		return out[i].Email < out[j].Email
	})
	c.JSON(http.StatusOK, out)
}
