package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"bedlog-backend/internal/apperr"
	"bedlog-backend/internal/model"
	"bedlog-backend/internal/store"
)

type putSubscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
	P256DH   string `json:"p256dh" binding:"required"`
	Auth     string `json:"auth" binding:"required"`
}

// PutSubscription registers the caller's browser for out-of-service alerts.
func (h *Handler) PutSubscription(c *gin.Context) {
	var req putSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "endpoint, p256dh and auth are required.", err)
		return
	}

	sub := model.PushSubscription{
		Endpoint:  req.Endpoint,
		P256DH:    req.P256DH,
		Auth:      req.Auth,
		Owner:     session(c).Email,
		CreatedAt: h.clock().UTC(),
	}
	if err := h.store.PutPushSubscription(c.Request.Context(), sub); err != nil {
		writeError(c, apperr.Wrap(apperr.Unavailable, "Failed to save the subscription.", err))
		return
	}

	c.Status(http.StatusCreated)
}

type deleteSubscriptionRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
}

// DeleteSubscription handles the deletion of a subscription.
func (h *Handler) DeleteSubscription(c *gin.Context) {
	var req deleteSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "endpoint is required.", err)
		return
	}

	if err := h.store.DeletePushSubscription(c.Request.Context(), req.Endpoint); err != nil {
		writeError(c, apperr.Wrap(apperr.Unavailable, "Failed to delete the subscription.", err))
		return
	}

	c.Status(http.StatusNoContent)
}

// rawQueryParam returns the undecoded value; push endpoints are matched
// byte for byte.
func rawQueryParam(rawQuery, key string) (string, bool) {
	for _, kv := range strings.Split(rawQuery, "&") {
		if strings.HasPrefix(kv, key+"=") {
			return kv[len(key)+1:], true
		}
	}
	return "", false
}

// GetSubscription reports whether an endpoint is registered.
func (h *Handler) GetSubscription(c *gin.Context) {
	raw, ok := rawQueryParam(c.Request.URL.RawQuery, "endpoint")
	if !ok || raw == "" {
		writeError(c, apperr.New(apperr.InvalidArgument, "endpoint is required."))
		return
	}

	sub, err := h.store.GetPushSubscription(c.Request.Context(), raw)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(c, apperr.New(apperr.NotFound, "Subscription not found."))
			return
		}
		writeError(c, apperr.Wrap(apperr.Unavailable, "Failed to load the subscription.", err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"endpoint": sub.Endpoint, "owner": sub.Owner, "created_at": sub.CreatedAt})
}
