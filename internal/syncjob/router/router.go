// Package router provides sync job module routes registration.
package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/gitpulse/gitpulse/internal/activity/repository"
	"github.com/gitpulse/gitpulse/internal/config"
	"github.com/gitpulse/gitpulse/internal/syncjob/handler"
	"github.com/gitpulse/gitpulse/internal/syncjob/service"
)

// RegisterRoutes registers sync job module routes. cache may be nil when no
// response cache is wired.
func RegisterRoutes(r gin.IRouter, db *gorm.DB, dc service.DataCollector, cache service.CacheInvalidator, cfg config.Config, logger *zap.SugaredLogger) {
	store := repository.New(db, logger)
	svc := service.New(store, dc, cache, cfg, logger)
	h := handler.New(svc, logger)

	r.POST("/jobs/sync", h.Sync)
}
