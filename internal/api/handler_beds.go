package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"bedlog-backend/internal/apperr"
	"bedlog-backend/internal/bed"
	"bedlog-backend/internal/export"
	"bedlog-backend/internal/form"
	"bedlog-backend/internal/store"
)

// viewQuery reads ?q=&sort=&dir=. Without sort the default view applies;
// sort=none keeps feed order.
func viewQuery(c *gin.Context) (string, bed.SortConfig, error) {
	search := c.Query("q")
	key, ok := c.GetQuery("sort")
	if !ok || key == "" {
		return search, bed.DefaultSort, nil
	}
	if key == "none" {
		return search, bed.SortConfig{}, nil
	}
	f, ok := bed.ParseField(key)
	if !ok {
		return "", bed.SortConfig{}, fmt.Errorf("unknown sort key %q", key)
	}
	return search, bed.SortConfig{Key: f, Direction: bed.ParseDirection(c.Query("dir"))}, nil
}

// ListBeds handles GET /api/beds.
func (h *Handler) ListBeds(c *gin.Context) {
	search, sortCfg, err := viewQuery(c)
	if err != nil {
		badRequest(c, "Unknown sort column.", err)
		return
	}
	if !h.waitMirror(c) {
		return
	}
	c.JSON(http.StatusOK, h.mirror.View(search, sortCfg))
}

// GetBed handles GET /api/beds/:id.
func (h *Handler) GetBed(c *gin.Context) {
	rec, err := h.store.GetBed(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(c, apperr.New(apperr.NotFound, "Bed not found."))
			return
		}
		writeError(c, apperr.Wrap(apperr.Unavailable, "Could not load the bed.", err))
		return
	}
	c.JSON(http.StatusOK, rec)
}

type summaryResponse struct {
	Entries []bed.SummaryEntry `json:"entries"`
	Totals  bed.Counts         `json:"totals"`
}

// GetSummary handles GET /api/beds/summary.
func (h *Handler) GetSummary(c *gin.Context) {
	if !h.waitMirror(c) {
		return
	}
	s := h.mirror.Summary()
	c.JSON(http.StatusOK, summaryResponse{Entries: s.Entries(), Totals: s.Totals()})
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ExportBeds handles GET /api/beds/export.xlsx.
func (h *Handler) ExportBeds(c *gin.Context) {
	search, sortCfg, err := viewQuery(c)
	if err != nil {
		badRequest(c, "Unknown sort column.", err)
		return
	}
	if !h.waitMirror(c) {
		return
	}

	view := h.mirror.View(search, sortCfg)
	data, err := export.Workbook(view, bed.Summarize(view))
	if err != nil {
		writeError(c, apperr.Wrap(apperr.Internal, "Failed to build the export.", err))
		return
	}
	filename := fmt.Sprintf("beds-%s.xlsx", h.clock().UTC().Format("2006-01-02"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, xlsxContentType, data)
}

// CreateBed handles POST /api/beds.
func (h *Handler) CreateBed(c *gin.Context) {
	var in bed.Draft
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid bed payload.", err)
		return
	}

	ctrl := form.New(session(c), nil, h.writer(nil), h.clock)
	if err := ctrl.Apply(in); err != nil {
		writeError(c, err)
		return
	}
	if err := ctrl.Submit(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, ctrl.Saved())
}

// UpdateBed handles PUT /api/beds/:id. The body replaces the record; an
// If-Match header turns on the stale-write check.
func (h *Handler) UpdateBed(c *gin.Context) {
	var in bed.Draft
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, "Invalid bed payload.", err)
		return
	}

	expected := 0
	if v := strings.Trim(c.GetHeader("If-Match"), `" `); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			badRequest(c, "If-Match must be a record version.", err)
			return
		}
		expected = n
	}

	prev, err := h.store.GetBed(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(c, apperr.New(apperr.NotFound, "Bed not found."))
			return
		}
		writeError(c, apperr.Wrap(apperr.Unavailable, "Could not load the bed.", err))
		return
	}

	ctrl := form.New(session(c), &prev, h.writer(&prev), h.clock)
	ctrl.ExpectVersion(expected)
	if err := ctrl.Apply(in); err != nil {
		writeError(c, err)
		return
	}
	if err := ctrl.Submit(c.Request.Context()); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, ctrl.Saved())
}

// SeedSamples handles POST /api/beds/sample.
func (h *Handler) SeedSamples(c *gin.Context) {
	if !h.seedEnabled {
		writeError(c, apperr.New(apperr.FailedPrecondition, "Sample seeding is disabled."))
		return
	}

	sess := session(c)
	created := make([]bed.Record, 0, 4)
	for _, d := range bed.SampleDrafts() {
		ctrl := form.New(sess, nil, h.writer(nil), h.clock)
		if err := ctrl.Apply(d); err != nil {
			writeError(c, err)
			return
		}
		if err := ctrl.Submit(c.Request.Context()); err != nil {
			writeError(c, err)
			return
		}
		created = append(created, ctrl.Saved())
	}
	c.JSON(http.StatusCreated, created)
}
