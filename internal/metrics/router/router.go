// Package router provides metrics module routes registration.
package router

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/gitpulse/gitpulse/internal/activity/repository"
	"github.com/gitpulse/gitpulse/internal/metrics/handler"
	"github.com/gitpulse/gitpulse/internal/metrics/service"
)

// RegisterRoutes registers metrics module routes.
func RegisterRoutes(r gin.IRouter, db *gorm.DB, logger *zap.SugaredLogger) {
	store := repository.New(db, logger)
	svc := service.New(store, logger)
	h := handler.New(svc, logger)

	r.GET("/metrics/cycle-time", h.GetCycleTime)
	r.GET("/metrics/reviews", h.GetReviews)
	r.GET("/metrics/delivery", h.GetDelivery)
	r.GET("/metrics/productivity-score", h.GetProductivityScore)
	r.GET("/metrics/daily", h.GetDailyRollups)
	r.GET("/metrics/sprints/:id", h.GetSprintPerformance)
	r.GET("/metrics/pull-requests", h.GetPullRequests)
}
