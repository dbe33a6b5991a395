package mw

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func get(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimiter(t *testing.T) {
	r := gin.New()
	r.GET("/", RateLimiter(rate.Limit(1), 2), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, get(r, "/").Code)
	assert.Equal(t, http.StatusOK, get(r, "/").Code)

	w := get(r, "/")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.JSONEq(t, `{"error":{"code":"unavailable","message":"Too many requests. Please slow down."}}`, w.Body.String())
}

func TestIPRateLimiter_ReusesLimiter(t *testing.T) {
	l := NewIPRateLimiter(rate.Limit(1), 1)

	assert.Same(t, l.GetLimiter("10.0.0.1"), l.GetLimiter("10.0.0.1"))
	assert.NotSame(t, l.GetLimiter("10.0.0.1"), l.GetLimiter("10.0.0.2"))
}

func TestResponseCache(t *testing.T) {
	rc := NewResponseCache(time.Minute)
	calls := 0
	r := gin.New()
	r.GET("/summary", rc.Handler(), func(c *gin.Context) {
		calls++
		c.JSON(http.StatusOK, gin.H{"calls": calls})
	})
	r.GET("/broken", rc.Handler(), func(c *gin.Context) {
		c.Status(http.StatusInternalServerError)
	})

	first := get(r, "/summary")
	second := get(r, "/summary")
	assert.JSONEq(t, `{"calls":1}`, first.Body.String())
	assert.JSONEq(t, `{"calls":1}`, second.Body.String())
	assert.Equal(t, "HIT", second.Header().Get("X-Cache"))
	assert.Equal(t, 1, rc.Len())

	rc.Flush()
	assert.JSONEq(t, `{"calls":2}`, get(r, "/summary").Body.String())

	get(r, "/broken")
	assert.Equal(t, 1, rc.Len())
}

type recordingObserver struct {
	mu     sync.Mutex
	routes []string
}

func (o *recordingObserver) ObserveRequest(method, route string, status int, d time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.routes = append(o.routes, method+" "+route)
}

func TestLoggerAndRecovery(t *testing.T) {
	obs := &recordingObserver{}
	r := gin.New()
	r.Use(Logger(zap.NewNop(), obs), Recovery(zap.NewNop()))
	r.GET("/beds/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/panic", func(c *gin.Context) { panic("boom") })

	assert.Equal(t, http.StatusOK, get(r, "/beds/42").Code)

	w := get(r, "/panic")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":{"code":"internal","message":"An internal error occurred."}}`, w.Body.String())

	get(r, "/nowhere")

	assert.Equal(t, []string{"GET /beds/:id", "GET /panic", "GET unmatched"}, obs.routes)
}

func TestResponseCache_SkipsResponseRenderedAcrossFlush(t *testing.T) {
	rc := NewResponseCache(time.Minute)
	r := gin.New()
	r.GET("/summary", rc.Handler(), func(c *gin.Context) {
		rc.Flush()
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	assert.Equal(t, http.StatusOK, get(r, "/summary").Code)
	assert.Equal(t, 0, rc.Len())
}
