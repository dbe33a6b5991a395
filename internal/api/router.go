package api

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"bedlog-backend/internal/auth"
	"bedlog-backend/internal/mw"
)

// RouterOptions tune the middleware stack.
type RouterOptions struct {
	RateLimit rate.Limit
	RateBurst int
	// Cache holds summary and export responses; nil disables caching.
	Cache *mw.ResponseCache
}

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, opts RouterOptions) *gin.Engine {
	r := gin.New()

	r.Use(mw.Logger(h.log, h.metrics), mw.Recovery(h.log))

	caching := func(c *gin.Context) { c.Next() }
	if opts.Cache != nil {
		caching = opts.Cache.Handler()
	}

	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", gin.WrapH(h.metrics.Handler()))

	api := r.Group("/api")
	api.Use(mw.RateLimiter(opts.RateLimit, opts.RateBurst))
	{
		api.POST("/auth/login", h.Login)
		api.POST("/auth/password-reset", h.RequestPasswordReset)
		api.POST("/auth/password-reset/confirm", h.ConfirmPasswordReset)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)

		signedIn := api.Group("")
		signedIn.Use(auth.RequireSession(h.issuer, h.roles, h.log))
		{
			signedIn.POST("/auth/logout", h.Logout)

			signedIn.GET("/users/me", h.Me)
			signedIn.GET("/users/:uid", h.GetUser)
			signedIn.GET("/users", auth.RequireAdmin(), h.ListUsers)

			signedIn.GET("/beds", h.ListBeds)
			signedIn.GET("/beds/summary", caching, h.GetSummary)
			signedIn.GET("/beds/stream", h.StreamBeds)
			signedIn.GET("/beds/export.xlsx", caching, h.ExportBeds)
			signedIn.GET("/beds/:id", h.GetBed)
			signedIn.POST("/beds", h.CreateBed)
			signedIn.PUT("/beds/:id", h.UpdateBed)
			signedIn.POST("/beds/sample", auth.RequireAdmin(), h.SeedSamples)

			signedIn.POST("/functions/createUser", h.CreateUser)
			signedIn.POST("/functions/setRole", h.SetRole)

			signedIn.GET("/subscriptions", h.GetSubscription)
			signedIn.PUT("/subscriptions", h.PutSubscription)
			signedIn.DELETE("/subscriptions", h.DeleteSubscription)
		}
	}

	return r
}
