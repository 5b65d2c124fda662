// Package router provides registry module routes registration.
package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/gitpulse/gitpulse/internal/activity/repository"
	"github.com/gitpulse/gitpulse/internal/config"
	"github.com/gitpulse/gitpulse/internal/registry/handler"
	"github.com/gitpulse/gitpulse/internal/registry/service"
)

// RegisterRoutes registers registry module routes. cache may be nil when no
// response cache is wired.
func RegisterRoutes(r gin.IRouter, db *gorm.DB, gh service.GitHubReader, dc service.DataCollector, cache service.CacheInvalidator, cfg config.Config, logger *zap.SugaredLogger) {
	store := repository.New(db, logger)
	svc := service.New(store, gh, dc, cache, cfg, logger)
	h := handler.New(svc, logger)

	r.GET("/repositories", h.ListRepositories)
	r.POST("/repositories", h.AddRepository)
	r.POST("/repositories/batch", h.BatchAddRepositories)
	r.GET("/repositories/:id", h.GetRepository)
	r.DELETE("/repositories/:id", h.DeleteRepository)
	r.POST("/repositories/:id/sync", h.SyncRepository)

	r.GET("/members", h.ListMembers)

	r.GET("/bots", h.ListBotUsers)
	r.POST("/bots", h.AddBotUser)
	r.DELETE("/bots", h.DeleteBotUser)

	r.GET("/sprints", h.ListSprints)
	r.POST("/sprints", h.CreateSprint)
	r.GET("/sprints/:id", h.GetSprint)
}
