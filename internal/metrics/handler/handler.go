// Package handler provides HTTP handlers for metrics endpoints.
package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	activityModel "github.com/gitpulse/gitpulse/internal/activity/model"
	"github.com/gitpulse/gitpulse/internal/metrics/service"
)

// Handler handles HTTP requests for metrics endpoints.
type Handler struct {
	service service.Service
	logger  *zap.SugaredLogger
}

// New creates a new metrics handler instance.
func New(svc service.Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{service: svc, logger: logger}
}

// parseQuery builds a metrics query from request parameters. The window
// defaults to the trailing month; exclude_bots defaults to true and is
// ignored when bots_only is set.
func parseQuery(c *gin.Context) service.Query {
	end := time.Now().UTC()
	start := end.AddDate(0, -1, 0)

	if s := c.Query("start"); s != "" {
		if t, err := time.Parse("2006-01-02", s); err == nil {
			start = t
		}
	}
	if e := c.Query("end"); e != "" {
		if t, err := time.Parse("2006-01-02", e); err == nil {
			end = t
		}
	}

	botsOnly := c.Query("bots_only") == "true"
	excludeBots := !botsOnly && c.Query("exclude_bots") != "false"

	return service.Query{
		RepositoryIDs: c.QueryArray("repository"),
		Start:         start,
		End:           end,
		ExcludeBots:   excludeBots,
		BotsOnly:      botsOnly,
	}
}

// GetCycleTime handles GET /metrics/cycle-time request.
// @Summary Get cycle time metrics with daily breakdown
// @Tags Metrics
// @Produce json
// @Param start query string false "Window start (YYYY-MM-DD)"
// @Param end query string false "Window end (YYYY-MM-DD)"
// @Param repository query []string false "Repository IDs (all when omitted)"
// @Success 200 {object} model.CycleTimeMetrics
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /metrics/cycle-time [get] //nolint:godot // Swagger annotation should not end with period
func (h *Handler) GetCycleTime(c *gin.Context) {
	resp, err := h.service.CycleTime(c.Request.Context(), parseQuery(c))
	if err != nil {
		h.respondError(c, "error getting cycle time metrics", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetReviews handles GET /metrics/reviews request.
// @Summary Get review analysis metrics
// @Tags Metrics
// @Produce json
// @Success 200 {object} model.ReviewMetrics
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /metrics/reviews [get] //nolint:godot // Swagger annotation should not end with period
func (h *Handler) GetReviews(c *gin.Context) {
	resp, err := h.service.Reviews(c.Request.Context(), parseQuery(c))
	if err != nil {
		h.respondError(c, "error getting review metrics", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetDelivery handles GET /metrics/delivery request.
// @Summary Get deployment cadence and change outcome metrics
// @Tags Metrics
// @Produce json
// @Success 200 {object} model.DeliveryMetrics
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /metrics/delivery [get] //nolint:godot // Swagger annotation should not end with period
func (h *Handler) GetDelivery(c *gin.Context) {
	resp, err := h.service.Delivery(c.Request.Context(), parseQuery(c))
	if err != nil {
		h.respondError(c, "error getting delivery metrics", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetProductivityScore handles GET /metrics/productivity-score request.
// @Summary Get the weighted composite productivity score
// @Tags Metrics
// @Produce json
// @Success 200 {object} model.ProductivityScore
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /metrics/productivity-score [get] //nolint:godot // Swagger annotation should not end with period
func (h *Handler) GetProductivityScore(c *gin.Context) {
	resp, err := h.service.ProductivityScore(c.Request.Context(), parseQuery(c))
	if err != nil {
		h.respondError(c, "error getting productivity score", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetDailyRollups handles GET /metrics/daily request.
// @Summary Get per-day aggregates merged across repositories
// @Tags Metrics
// @Produce json
// @Success 200 {array} activityModel.DailyRollup
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /metrics/daily [get] //nolint:godot // Swagger annotation should not end with period
func (h *Handler) GetDailyRollups(c *gin.Context) {
	resp, err := h.service.DailyRollups(c.Request.Context(), parseQuery(c))
	if err != nil {
		h.respondError(c, "error getting daily rollups", err)
		return
	}
	if resp == nil {
		resp = []*activityModel.DailyRollup{}
	}
	c.JSON(http.StatusOK, resp)
}

// GetSprintPerformance handles GET /metrics/sprints/:id request.
// @Summary Get performance summary for one sprint
// @Tags Metrics
// @Produce json
// @Param id path string true "Sprint ID"
// @Success 200 {object} model.SprintPerformance
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /metrics/sprints/{id} [get] //nolint:godot // Swagger annotation should not end with period
func (h *Handler) GetSprintPerformance(c *gin.Context) {
	resp, err := h.service.SprintPerformance(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, activityModel.ErrSprintNotFound) {
			notFoundResponse(c, "sprint not found")
			return
		}
		h.respondError(c, "error getting sprint performance", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// GetPullRequests handles GET /metrics/pull-requests request.
// @Summary List pull requests in the window with derived durations
// @Tags Metrics
// @Produce json
// @Success 200 {array} model.PullRequestSummary
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /metrics/pull-requests [get] //nolint:godot // Swagger annotation should not end with period
func (h *Handler) GetPullRequests(c *gin.Context) {
	resp, err := h.service.PullRequests(c.Request.Context(), parseQuery(c))
	if err != nil {
		h.respondError(c, "error getting pull requests", err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) respondError(c *gin.Context, logMsg string, err error) {
	if errors.Is(err, activityModel.ErrInvalidDateRange) {
		errorResponse(c, "INVALID_RANGE", "start date must not be after end date", http.StatusBadRequest)
		return
	}
	h.logger.Errorw(logMsg, "error", err)
	errorResponse(c, "INTERNAL_ERROR", "internal server error", http.StatusInternalServerError)
}
