package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"bedlog-backend/internal/apperr"
	"bedlog-backend/internal/auth"
	"bedlog-backend/internal/bed"
	"bedlog-backend/internal/provision"
)

func newTestServer(t *testing.T, setup func(r *gin.Engine)) *Client {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	setup(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return New(srv.URL, zap.NewNop())
}

func TestClient_LoginAndSignOut(t *testing.T) {
	var sawToken string
	c := newTestServer(t, func(r *gin.Engine) {
		r.POST("/api/auth/login", func(ctx *gin.Context) {
			ctx.JSON(http.StatusOK, gin.H{"token": "tok", "uid": "u1", "email": "a@example.org", "role": "User"})
		})
		r.POST("/api/auth/logout", func(ctx *gin.Context) {
			sawToken = ctx.GetHeader("Authorization")
			ctx.Status(http.StatusNoContent)
		})
	})

	var events []*auth.Identity
	unsubscribe := c.OnSessionChange(func(ident *auth.Identity) { events = append(events, ident) })
	defer unsubscribe()

	res, err := c.Login(context.Background(), "a@example.org", "pw")
	require.NoError(t, err)
	assert.Equal(t, bed.RoleUser, res.Role)
	assert.Equal(t, "tok", c.Token())

	require.NoError(t, c.SignOut(context.Background()))
	assert.Equal(t, "Bearer tok", sawToken)
	assert.Empty(t, c.Token())

	require.Len(t, events, 2)
	assert.Equal(t, "u1", events[0].UID)
	assert.Nil(t, events[1])
}

func TestClient_ErrorDecoding(t *testing.T) {
	c := newTestServer(t, func(r *gin.Engine) {
		r.GET("/api/users/:uid", func(ctx *gin.Context) {
			if ctx.Param("uid") == "known" {
				ctx.JSON(http.StatusOK, gin.H{"uid": "known", "email": "k@example.org", "role": "Admin"})
				return
			}
			status, body := apperr.Response(apperr.New(apperr.NotFound, "No role record."))
			ctx.JSON(status, body)
		})
		r.POST("/api/beds", func(ctx *gin.Context) {
			status, body := apperr.Response(&bed.ValidationError{Fields: bed.FieldErrors{bed.FieldLocation: "Location is required."}})
			ctx.JSON(status, body)
		})
		r.POST("/api/functions/createUser", func(ctx *gin.Context) {
			status, body := apperr.Response(apperr.New(apperr.PermissionDenied, "Admin privileges are required."))
			ctx.JSON(status, body)
		})
		r.GET("/api/beds/summary", func(ctx *gin.Context) {
			ctx.String(http.StatusBadGateway, "upstream")
		})
	})
	ctx := context.Background()

	role, err := c.LookupRole(ctx, "known")
	require.NoError(t, err)
	assert.Equal(t, bed.RoleAdmin, role)

	_, err = c.LookupRole(ctx, "ghost")
	assert.ErrorIs(t, err, auth.ErrRoleNotFound)

	_, err = c.CreateBed(ctx, bed.BuildPayload(bed.Draft{}, "x", bed.Record{}.LastEditedDate))
	var verr *bed.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "Location is required.", verr.Fields[bed.FieldLocation])

	_, err = c.CreateUser(ctx, provision.CreateUserRequest{Email: "a@example.org", Password: "secret1", Role: "User"})
	assert.Equal(t, apperr.PermissionDenied, apperr.CodeOf(err))
	assert.Equal(t, "Admin privileges are required.", apperr.MessageOf(err))

	_, err = c.Summary(ctx)
	assert.Equal(t, apperr.Unavailable, apperr.CodeOf(err))
}

func TestClient_UpdateSendsIfMatch(t *testing.T) {
	var ifMatch string
	c := newTestServer(t, func(r *gin.Engine) {
		r.PUT("/api/beds/:id", func(ctx *gin.Context) {
			ifMatch = ctx.GetHeader("If-Match")
			ctx.JSON(http.StatusOK, gin.H{"id": ctx.Param("id"), "version": 4})
		})
	})

	rec, err := c.UpdateBed(context.Background(), "b1", bed.BuildPayload(bed.Draft{}, "x", bed.Record{}.LastEditedDate), 3)
	require.NoError(t, err)
	assert.Equal(t, "3", ifMatch)
	assert.Equal(t, 4, rec.Version)
}
