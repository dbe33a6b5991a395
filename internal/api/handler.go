package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"bedlog-backend/internal/apperr"
	"bedlog-backend/internal/auth"
	"bedlog-backend/internal/bed"
	"bedlog-backend/internal/live"
	"bedlog-backend/internal/metrics"
	"bedlog-backend/internal/notification"
	"bedlog-backend/internal/provision"
	"bedlog-backend/internal/store"
)

// Deps are the collaborators of the API handlers.
type Deps struct {
	Store     store.Store
	Hub       *live.Hub
	Mirror    *live.Mirror
	Issuer    *auth.Issuer
	Roles     auth.RoleLookup
	Provision *provision.Service
	// Alerts may be nil when web push is not configured.
	Alerts *notification.WorkerPool
	// Metrics defaults to a private registry.
	Metrics *metrics.Registry
	Webpush *webpush.Options
	// Resets delivers password-reset tokens. It defaults to a Debug log line.
	Resets      ResetMailer
	SeedEnabled bool
	Log         *zap.Logger
	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store       store.Store
	hub         *live.Hub
	mirror      *live.Mirror
	issuer      *auth.Issuer
	roles       auth.RoleLookup
	prov        *provision.Service
	alerts      *notification.WorkerPool
	metrics     *metrics.Registry
	webpush     *webpush.Options
	resets      ResetMailer
	seedEnabled bool
	log         *zap.Logger
	clock       func() time.Time
}

// NewHandler creates a new API handler.
func NewHandler(d Deps) *Handler {
	clock := d.Clock
	if clock == nil {
		clock = time.Now
	}
	reg := d.Metrics
	if reg == nil {
		reg = metrics.NewRegistry()
	}
	resets := d.Resets
	if resets == nil {
		resets = logResetMailer{log: d.Log}
	}
	return &Handler{
		store:       d.Store,
		hub:         d.Hub,
		mirror:      d.Mirror,
		issuer:      d.Issuer,
		roles:       d.Roles,
		prov:        d.Provision,
		alerts:      d.Alerts,
		metrics:     reg,
		webpush:     d.Webpush,
		resets:      resets,
		seedEnabled: d.SeedEnabled,
		log:         d.Log,
		clock:       clock,
	}
}

// writeError renders err in the API error envelope.
func writeError(c *gin.Context, err error) {
	status, body := apperr.Response(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, body)
}

func badRequest(c *gin.Context, msg string, err error) {
	writeError(c, apperr.Wrap(apperr.InvalidArgument, msg, err))
}

// session returns the caller. Routes using it are mounted behind
// auth.RequireSession, so a missing session is a wiring bug.
func session(c *gin.Context) auth.Session {
	s, ok := auth.SessionFrom(c)
	if !ok {
		panic("api: handler mounted without auth.RequireSession")
	}
	return s
}

// bedWriter persists through the store and then republishes the
// collection, counts the write and raises out-of-service alerts.
type bedWriter struct {
	h    *Handler
	prev *bed.Record
}

func (h *Handler) writer(prev *bed.Record) bedWriter {
	return bedWriter{h: h, prev: prev}
}

func (w bedWriter) CreateBed(ctx context.Context, p bed.Payload) (bed.Record, error) {
	rec, err := w.h.store.CreateBed(ctx, p)
	w.h.metrics.IncBedWrite("create", err)
	if err != nil {
		return bed.Record{}, err
	}
	w.h.afterWrite(ctx, w.prev, rec)
	return rec, nil
}

func (w bedWriter) UpdateBed(ctx context.Context, id string, p bed.Payload, expectedVersion int) (bed.Record, error) {
	rec, err := w.h.store.UpdateBed(ctx, id, p, expectedVersion)
	w.h.metrics.IncBedWrite("update", err)
	if err != nil {
		return bed.Record{}, err
	}
	w.h.afterWrite(ctx, w.prev, rec)
	return rec, nil
}

func (h *Handler) afterWrite(ctx context.Context, prev *bed.Record, rec bed.Record) {
	ctx = context.WithoutCancel(ctx)
	if err := h.hub.Changed(ctx); err != nil {
		h.log.Warn("failed to republish beds after write", zap.String("bed_id", rec.ID), zap.Error(err))
	}

	wentOutOfService := rec.Status == bed.StatusOutOfService &&
		(prev == nil || prev.Status != bed.StatusOutOfService)
	if wentOutOfService && h.alerts != nil {
		h.alerts.Dispatch(notification.AlertFor(rec))
	}
}

// waitMirror blocks until the mirror has its first snapshot and reports a
// feed failure as unavailable.
func (h *Handler) waitMirror(c *gin.Context) bool {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()
	if err := h.mirror.WaitReady(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			writeError(c, apperr.Wrap(apperr.Unavailable, "Bed data is unavailable. Please refresh and try again.", err))
		}
		return false
	}
	return true
}
