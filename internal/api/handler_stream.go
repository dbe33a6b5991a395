package api

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"bedlog-backend/internal/apperr"
	"bedlog-backend/internal/live"
)

const streamPingInterval = 25 * time.Second

type streamError struct {
	Code    apperr.Code `json:"code"`
	Message string      `json:"message"`
}

// StreamBeds handles GET /api/beds/stream. Every connection mounts its own
// mirror on the hub and receives the derived view as a "beds" event after
// each change, or an "error" event while the feed is failing.
func (h *Handler) StreamBeds(c *gin.Context) {
	search, sortCfg, err := viewQuery(c)
	if err != nil {
		badRequest(c, "Unknown sort column.", err)
		return
	}

	mirror := live.NewMirror(h.hub, h.log)
	changed := make(chan struct{}, 1)
	stop := mirror.OnChange(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer stop()

	release, err := mirror.Mount(c.Request.Context())
	if err != nil {
		writeError(c, apperr.Wrap(apperr.Internal, "Failed to open the bed stream.", err))
		return
	}
	defer release()

	h.metrics.StreamOpened()
	defer h.metrics.StreamClosed()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")

	ping := time.NewTicker(streamPingInterval)
	defer ping.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case <-changed:
			if mirror.Err() != nil {
				c.SSEvent("error", streamError{Code: apperr.Unavailable, Message: "Live updates are unavailable. Retrying."})
				return true
			}
			c.SSEvent("beds", mirror.View(search, sortCfg))
			return true
		case <-ping.C:
			c.SSEvent("ping", h.clock().UTC().Unix())
			return true
		}
	})
	h.log.Debug("bed stream closed", zap.String("client_ip", c.ClientIP()))
}

// Healthz handles GET /healthz.
func (h *Handler) Healthz(c *gin.Context) {
	if !h.mirror.Ready() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "starting"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "subscribers": h.hub.Subscribers()})
}
