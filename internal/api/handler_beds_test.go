package api

import (
	"bytes"
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"bedlog-backend/internal/apperr"
	"bedlog-backend/internal/bed"
)

func TestBeds_RequireSession(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(http.MethodGet, "/api/beds", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"error":{"code":"unauthenticated","message":"Please sign in."}}`, w.Body.String())
}

func TestCreateBed_StampsAuditFields(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.signIn("nurse@example.org", bed.RoleUser)

	d := validDraft()
	w := env.do(http.MethodPost, "/api/beds", token, d)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	rec := decode[bed.Record](t, w)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, "nurse@example.org", rec.LastEditedBy)
	assert.True(t, fixedNow.Equal(rec.LastEditedDate))
	assert.Equal(t, 1, rec.Version)
	assert.Equal(t, "Room 4", rec.Location)

	w = env.do(http.MethodGet, "/api/beds/"+rec.ID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, rec.ID, decode[bed.Record](t, w).ID)

	assert.Eventually(t, func() bool {
		w := env.do(http.MethodGet, "/api/beds", token, nil)
		return w.Code == http.StatusOK && len(decode[[]bed.Record](t, w)) == 1
	}, testWait, testTick)
}

func TestCreateBed_ValidationFields(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.signIn("nurse@example.org", bed.RoleUser)

	d := validDraft()
	d.Status = bed.StatusAssigned
	d.IsRental = true
	w := env.do(http.MethodPost, "/api/beds", token, d)
	require.Equal(t, http.StatusBadRequest, w.Code)

	body := decode[apperr.Body](t, w)
	assert.Equal(t, apperr.InvalidArgument, body.Error.Code)
	assert.Contains(t, body.Error.Fields, "patientLastName")
	assert.Contains(t, body.Error.Fields, "vendorConfirmation")
}

func TestCreateBed_AdminFieldsRequireAdmin(t *testing.T) {
	env := newTestEnv(t)
	userToken, _ := env.signIn("nurse@example.org", bed.RoleUser)
	adminToken, _ := env.signIn("admin@example.org", bed.RoleAdmin)

	d := validDraft()
	d.AssetNumber = "HR-1"

	w := env.do(http.MethodPost, "/api/beds", userToken, d)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, apperr.PermissionDenied, decode[apperr.Body](t, w).Error.Code)

	w = env.do(http.MethodPost, "/api/beds", adminToken, d)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "HR-1", decode[bed.Record](t, w).AssetNumber)
}

func TestUpdateBed(t *testing.T) {
	env := newTestEnv(t)
	adminToken, _ := env.signIn("admin@example.org", bed.RoleAdmin)
	userToken, _ := env.signIn("nurse@example.org", bed.RoleUser)

	d := validDraft()
	d.AssetNumber = "HR-1"
	w := env.do(http.MethodPost, "/api/beds", adminToken, d)
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode[bed.Record](t, w)
	path := "/api/beds/" + created.ID

	t.Run("user keeps admin field unchanged", func(t *testing.T) {
		upd := created.Draft
		upd.Notes = "rail fixed"
		w := env.do(http.MethodPut, path, userToken, upd)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		rec := decode[bed.Record](t, w)
		assert.Equal(t, "rail fixed", rec.Notes)
		assert.Equal(t, "HR-1", rec.AssetNumber)
		assert.Equal(t, "nurse@example.org", rec.LastEditedBy)
		assert.Equal(t, 2, rec.Version)
	})

	t.Run("user cannot change admin field", func(t *testing.T) {
		upd := created.Draft
		upd.AssetNumber = "HR-2"
		w := env.do(http.MethodPut, path, userToken, upd)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("out of service pins location", func(t *testing.T) {
		upd := created.Draft
		upd.Status = bed.StatusOutOfService
		upd.Location = "Hallway"
		w := env.do(http.MethodPut, path, userToken, upd)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, bed.OutOfServiceLocation, decode[bed.Record](t, w).Location)
	})

	t.Run("stale if-match", func(t *testing.T) {
		w := env.do(http.MethodPut, path, userToken, created.Draft, "If-Match", strconv.Itoa(created.Version))
		assert.Equal(t, http.StatusPreconditionFailed, w.Code)
		assert.Equal(t, apperr.FailedPrecondition, decode[apperr.Body](t, w).Error.Code)
	})

	t.Run("malformed if-match", func(t *testing.T) {
		w := env.do(http.MethodPut, path, userToken, created.Draft, "If-Match", "abc")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown bed", func(t *testing.T) {
		w := env.do(http.MethodPut, "/api/beds/does-not-exist", userToken, created.Draft)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestListBeds_SearchAndSort(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.signIn("nurse@example.org", bed.RoleUser)

	for _, loc := range []string{"Room 9", "Room 1", "Storage"} {
		d := validDraft()
		d.Location = loc
		require.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/api/beds", token, d).Code)
	}

	var got []bed.Record
	require.Eventually(t, func() bool {
		w := env.do(http.MethodGet, "/api/beds?q=room&sort=location&dir=asc", token, nil)
		if w.Code != http.StatusOK {
			return false
		}
		got = decode[[]bed.Record](t, w)
		return len(got) == 2
	}, testWait, testTick)
	assert.Equal(t, "Room 1", got[0].Location)
	assert.Equal(t, "Room 9", got[1].Location)

	w := env.do(http.MethodGet, "/api/beds?sort=bogus", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSummary_FlushedOnChange(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.signIn("nurse@example.org", bed.RoleUser)

	w := env.do(http.MethodGet, "/api/beds/summary", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[summaryResponse](t, w).Entries)

	require.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/api/beds", token, validDraft()).Code)

	assert.Eventually(t, func() bool {
		w := env.do(http.MethodGet, "/api/beds/summary", token, nil)
		s := decode[summaryResponse](t, w)
		return len(s.Entries) == 1 && s.Totals.Total == 1 && s.Totals.Available == 1
	}, testWait, testTick)
}

func TestExportBeds(t *testing.T) {
	env := newTestEnv(t)
	token, _ := env.signIn("nurse@example.org", bed.RoleUser)
	require.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/api/beds", token, validDraft()).Code)

	var data []byte
	require.Eventually(t, func() bool {
		env.cache.Flush()
		w := env.do(http.MethodGet, "/api/beds/export.xlsx", token, nil)
		if w.Code != http.StatusOK {
			return false
		}
		data = w.Body.Bytes()
		f, err := excelize.OpenReader(bytes.NewReader(data))
		if err != nil {
			return false
		}
		defer f.Close()
		rows, err := f.GetRows("Beds")
		return err == nil && len(rows) == 2
	}, testWait, testTick)

	w := env.do(http.MethodGet, "/api/beds/export.xlsx", token, nil)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "beds-2024-05-02.xlsx")
}

func TestSeedSamples(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		env := newTestEnv(t)
		token, _ := env.signIn("admin@example.org", bed.RoleAdmin)
		w := env.do(http.MethodPost, "/api/beds/sample", token, nil)
		assert.Equal(t, http.StatusPreconditionFailed, w.Code)
	})

	t.Run("admin only", func(t *testing.T) {
		env := newTestEnv(t, withSeed())
		token, _ := env.signIn("nurse@example.org", bed.RoleUser)
		w := env.do(http.MethodPost, "/api/beds/sample", token, nil)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("inserts samples", func(t *testing.T) {
		env := newTestEnv(t, withSeed())
		token, _ := env.signIn("admin@example.org", bed.RoleAdmin)
		w := env.do(http.MethodPost, "/api/beds/sample", token, nil)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

		recs := decode[[]bed.Record](t, w)
		require.Len(t, recs, len(bed.SampleDrafts()))
		for _, r := range recs {
			assert.Equal(t, "admin@example.org", r.LastEditedBy)
		}
	})
}
