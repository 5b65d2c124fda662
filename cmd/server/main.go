// Package main provides the entry point for the HTTP server.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/gitpulse/gitpulse/internal/activity/repository"
	"github.com/gitpulse/gitpulse/internal/cache"
	"github.com/gitpulse/gitpulse/internal/collector"
	appConfig "github.com/gitpulse/gitpulse/internal/config"
	"github.com/gitpulse/gitpulse/internal/database/database"
	"github.com/gitpulse/gitpulse/internal/database/migrate"
	"github.com/gitpulse/gitpulse/internal/health"
	"github.com/gitpulse/gitpulse/internal/middleware"
	metricsRouter "github.com/gitpulse/gitpulse/internal/metrics/router"
	registryRouter "github.com/gitpulse/gitpulse/internal/registry/router"
	syncjobRouter "github.com/gitpulse/gitpulse/internal/syncjob/router"
	"github.com/gitpulse/gitpulse/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := appConfig.LoadFromEnv()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	zapLogger, err := logger.NewWithConfig(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() { _ = zapLogger.Sync() }()

	gin.SetMode(cfg.GinMode)

	db, err := database.New()
	if err != nil {
		zapLogger.Fatalw("failed to connect to database", "error", err)
	}
	defer func() {
		if err := database.Close(db); err != nil {
			zapLogger.Errorw("failed to close database connection", "error", err)
		}
	}()

	if err := migrate.Migrate(db); err != nil {
		zapLogger.Fatalw("failed to apply migrations", "error", err)
	}

	store := repository.New(db, zapLogger)
	ghClient := collector.NewClient(cfg.GitHub.Token)
	dataCollector := collector.New(ghClient, zapLogger)

	cacheSvc := cache.NewService(cfg.Cache, store, zapLogger)
	cacheSvc.Start()
	defer cacheSvc.Stop()

	engine := gin.New()
	engine.Use(middleware.Logger(zapLogger), middleware.Recovery(zapLogger))

	engine.GET("/health", health.New(db, zapLogger).Check)

	api := engine.Group("/api/v1")
	syncjobRouter.RegisterRoutes(api, db, dataCollector, cacheSvc, cfg, zapLogger)
	registryRouter.RegisterRoutes(api, db, ghClient, dataCollector, cacheSvc, cfg, zapLogger)

	// Metrics reads go through the response cache.
	cached := api.Group("", cacheSvc.Middleware())
	metricsRouter.RegisterRoutes(cached, db, zapLogger)

	srv := &http.Server{
		Addr:         cfg.Server.GetAddress(),
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		zapLogger.Infow("starting server", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatalw("failed to start server", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zapLogger.Infow("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Errorw("forced shutdown", "error", err)
	}
	zapLogger.Infow("server stopped")
}
