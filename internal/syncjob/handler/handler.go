// Package handler provides HTTP handlers for the sync job endpoint.
package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	activityModel "github.com/gitpulse/gitpulse/internal/activity/model"
	"github.com/gitpulse/gitpulse/internal/syncjob/model"
	"github.com/gitpulse/gitpulse/internal/syncjob/service"
)

// Handler handles HTTP requests for the sync job endpoint.
type Handler struct {
	service service.Service
	logger  *zap.SugaredLogger
}

// New creates a new sync job handler instance.
func New(svc service.Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{service: svc, logger: logger}
}

// parseSyncRequest reads parameters from query parameters first, then lets a
// JSON body override them. Range defaults to day.
func parseSyncRequest(c *gin.Context) model.SyncRequest {
	interval, _ := strconv.Atoi(c.Query("interval"))
	nolock, _ := strconv.ParseBool(c.Query("nolock"))
	force, _ := strconv.ParseBool(c.Query("force"))
	clearCache, _ := strconv.ParseBool(c.Query("clear_cache"))

	req := model.SyncRequest{
		Range:      c.Query("range"),
		Interval:   interval,
		Repo:       c.Query("repo"),
		NoLock:     nolock,
		Force:      force,
		ClearCache: clearCache,
	}

	if c.Request.Body != nil && c.Request.ContentLength != 0 {
		var body model.SyncRequest
		if err := c.ShouldBindJSON(&body); err == nil {
			if body.Range != "" {
				req.Range = body.Range
			}
			if body.Interval > 0 {
				req.Interval = body.Interval
			}
			if body.Repo != "" {
				req.Repo = body.Repo
			}
			if body.NoLock {
				req.NoLock = true
			}
			if body.Force {
				req.Force = true
			}
			if body.ClearCache {
				req.ClearCache = true
			}
		}
	}

	if req.Range == "" {
		req.Range = "day"
	}
	return req
}

// Sync handles POST /jobs/sync request.
// @Summary Run one sync pass over the registered repositories
// @Tags Jobs
// @Accept json
// @Produce json
// @Param range query string false "Collection window: day, week, month, full"
// @Param repo query string false "Pin the run to one repository"
// @Param interval query int false "Sync interval override in minutes"
// @Param nolock query bool false "Skip the lease lock"
// @Param force query bool false "Disable the sync-start guard for a pinned repo"
// @Param clear_cache query bool false "Invalidate the response cache after a successful sync"
// @Success 200 {object} model.SyncResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /jobs/sync [post] //nolint:godot // Swagger annotation should not end with period
func (h *Handler) Sync(c *gin.Context) {
	req := parseSyncRequest(c)

	resp, err := h.service.Sync(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, activityModel.ErrLeaseHeld) {
			c.JSON(http.StatusConflict, gin.H{
				"status":  model.StatusSkipped,
				"message": fmt.Sprintf("sync job already running: %s", err.Error()),
			})
			return
		}
		h.logger.Errorw("error running sync job", "error", err)
		errorResponse(c, "INTERNAL_ERROR", "internal server error", http.StatusInternalServerError)
		return
	}

	c.JSON(http.StatusOK, resp)
}
