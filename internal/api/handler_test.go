package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"bedlog-backend/internal/auth"
	"bedlog-backend/internal/bed"
	"bedlog-backend/internal/db"
	"bedlog-backend/internal/live"
	"bedlog-backend/internal/mw"
	"bedlog-backend/internal/provision"
	"bedlog-backend/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var fixedNow = time.Date(2024, 5, 2, 14, 30, 0, 0, time.UTC)

const (
	testWait = 2 * time.Second
	testTick = 10 * time.Millisecond
)

type testEnv struct {
	t      *testing.T
	store  store.Store
	hub    *live.Hub
	mirror *live.Mirror
	issuer *auth.Issuer
	cache  *mw.ResponseCache
	router *gin.Engine
}

type envOption func(*Deps)

func withSeed() envOption {
	return func(d *Deps) { d.SeedEnabled = true }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	// The hub reloads from its own goroutine; one connection keeps sqlite
	// from reporting a locked shared-cache table.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.Migrate(gormDB))

	log := zap.NewNop()
	s := store.NewGormStore(gormDB)
	hub := live.NewHub(s, nil, log)
	mirror := live.NewMirror(hub, log)
	release, err := mirror.Mount(context.Background())
	require.NoError(t, err)
	t.Cleanup(release)

	roles := auth.NewStoreRoles(s)
	issuer := auth.NewIssuer("test-secret", time.Hour, time.Hour)
	deps := Deps{
		Store:     s,
		Hub:       hub,
		Mirror:    mirror,
		Issuer:    issuer,
		Roles:     roles,
		Provision: provision.NewService(s, roles, log),
		Log:       log,
		Clock:     func() time.Time { return fixedNow },
	}
	for _, o := range opts {
		o(&deps)
	}

	cache := mw.NewResponseCache(time.Minute)
	stop := mirror.OnChange(cache.Flush)
	t.Cleanup(stop)

	router := NewRouter(NewHandler(deps), RouterOptions{
		RateLimit: rate.Inf,
		RateBurst: 1,
		Cache:     cache,
	})
	return &testEnv{t: t, store: s, hub: hub, mirror: mirror, issuer: issuer, cache: cache, router: router}
}

// signIn creates an identity with a role record and returns its token.
func (e *testEnv) signIn(email string, role bed.Role) (string, auth.Session) {
	e.t.Helper()
	hash, err := auth.HashPassword("secret-pw")
	require.NoError(e.t, err)
	ident, err := e.store.CreateIdentity(context.Background(), email, hash, role)
	require.NoError(e.t, err)
	token, err := e.issuer.Issue(ident.UID, ident.Email, role)
	require.NoError(e.t, err)
	return token, auth.Session{UID: ident.UID, Email: ident.Email, Role: role, Claim: role}
}

func (e *testEnv) do(method, path, token string, body any, headers ...string) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, path, &buf)
	require.NoError(e.t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func validDraft() bed.Draft {
	return bed.Draft{
		BedType:  bed.TypeRegular,
		BedArea:  "ICU",
		Status:   bed.StatusAvailable,
		Location: "Room 4",
	}
}
