package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"bedlog-backend/config"
	"bedlog-backend/internal/api"
	"bedlog-backend/internal/auth"
	"bedlog-backend/internal/db"
	"bedlog-backend/internal/live"
	"bedlog-backend/internal/logging"
	"bedlog-backend/internal/metrics"
	"bedlog-backend/internal/mw"
	"bedlog-backend/internal/notification"
	"bedlog-backend/internal/provision"
	"bedlog-backend/internal/store"
)

func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format, "bedlogd")
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer logger.Sync()
	logger.Info("configuration loaded", zap.String("path", configPath))

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize database
	gormDB, err := db.Init(&cfg.Database, logger)
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}

	// Create a context that can be cancelled
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB)
	reg := metrics.NewRegistry()

	var notifier live.Notifier
	var redisNotifier *live.RedisNotifier
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, cross-instance updates may lag", zap.Error(err))
		}
		redisNotifier = live.NewRedisNotifier(rdb, cfg.Redis.Channel, logger)
		notifier = redisNotifier
	}

	hub := live.NewHub(appStore, notifier, logger)
	if redisNotifier != nil {
		go redisNotifier.Run(ctx, hub)
	}

	respCache := mw.NewResponseCache(cfg.Server.CacheTTL)
	mirror := live.NewMirror(hub, logger)
	stopObserving := mirror.OnChange(func() {
		respCache.Flush()
		if mirror.Err() == nil {
			reg.ObserveSnapshot(mirror.Summary().Totals())
		}
	})
	defer stopObserving()
	release, err := mirror.Mount(ctx)
	if err != nil {
		logger.Fatal("failed to mount bed mirror", zap.Error(err))
	}
	defer release()

	var webpushOptions *webpush.Options
	var alerts *notification.WorkerPool
	if cfg.Push.Enabled() {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		alerts = notification.NewWorkerPool(cfg.WorkerPool.Size, appStore, webpushOptions, reg, logger)
		alerts.Start(ctx)
	} else {
		logger.Warn("VAPID keys are not configured, out-of-service alerts are disabled")
	}

	roles := auth.NewStoreRoles(appStore)
	provisioner := provision.NewService(appStore, roles, logger)
	if _, err := provisioner.Bootstrap(ctx, cfg.Auth.BootstrapAdminEmail, cfg.Auth.BootstrapAdminPassword); err != nil {
		logger.Fatal("failed to create bootstrap admin", zap.Error(err))
	}

	handler := api.NewHandler(api.Deps{
		Store:       appStore,
		Hub:         hub,
		Mirror:      mirror,
		Issuer:      auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, cfg.Auth.ResetTTL),
		Roles:       roles,
		Provision:   provisioner,
		Alerts:      alerts,
		Metrics:     reg,
		Webpush:     webpushOptions,
		SeedEnabled: cfg.Seed.Enabled,
		Log:         logger,
	})
	router := api.NewRouter(handler, api.RouterOptions{
		RateLimit: rate.Limit(cfg.Server.RateLimitPerSec),
		RateBurst: cfg.Server.RateLimitBurst,
		Cache:     respCache,
	})
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
		// Open bed streams end when ctx is cancelled.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	// Start the server in a goroutine
	go func() {
		logger.Info("HTTP server starting", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("HTTP server ListenAndServe", zap.Error(err))
		}
	}()

	// Setup signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	// Block until a signal is received.
	<-stop
	logger.Info("shutdown signal received, stopping services")
	cancel()

	// Create a deadline to wait for.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server Shutdown", zap.Error(err))
	}

	logger.Info("server gracefully stopped")
}
