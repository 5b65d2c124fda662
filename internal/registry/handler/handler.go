// Package handler provides HTTP handlers for registry endpoints.
package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	activityModel "github.com/gitpulse/gitpulse/internal/activity/model"
	"github.com/gitpulse/gitpulse/internal/registry/service"
)

// maxBatchSize caps one batch registration request.
const maxBatchSize = 100

// Handler handles HTTP requests for registry endpoints.
type Handler struct {
	service service.Service
	logger  *zap.SugaredLogger
}

// New creates a new registry handler instance.
func New(svc service.Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{service: svc, logger: logger}
}

// registerRepositoryRequest is the request body for registering a repository.
type registerRepositoryRequest struct {
	Owner string `json:"owner"`
	Name  string `json:"name"`
}

// batchRegisterRequest is the request body for batch registration.
type batchRegisterRequest struct {
	Repositories []registerRepositoryRequest `json:"repositories"`
}

// addBotUserRequest is the request body for registering a bot username.
type addBotUserRequest struct {
	Username string `json:"username"`
}

// createSprintRequest is the request body for creating a sprint.
type createSprintRequest struct {
	RepositoryID string `json:"repositoryId"`
	Name         string `json:"name"`
	StartDate    string `json:"startDate"`
	EndDate      string `json:"endDate"`
	Goals        string `json:"goals"`
}

// ListRepositories handles GET /repositories request.
// @Summary List registered repositories
// @Tags Registry
// @Produce json
// @Success 200 {array} model.Repository
// @Failure 500 {object} ErrorResponse
// @Router /repositories [get] //nolint:godot // Swagger annotation should not end with period
func (h *Handler) ListRepositories(c *gin.Context) {
	repos, err := h.service.ListRepositories(c.Request.Context())
	if err != nil {
		h.logger.Errorw("error listing repositories", "error", err)
		internalErrorResponse(c)
		return
	}
	if repos == nil {
		repos = []*activityModel.Repository{}
	}
	c.JSON(http.StatusOK, repos)
}

// AddRepository handles POST /repositories request.
// @Summary Register a repository by owner and name
// @Tags Registry
// @Accept json
// @Produce json
// @Param request body registerRepositoryRequest true "Repository coordinates"
// @Success 201 {object} model.Repository
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /repositories [post] //nolint:godot // Swagger annotation should not end with period
func (h *Handler) AddRepository(c *gin.Context) {
	var req registerRepositoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, "INVALID_REQUEST", "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Owner == "" || req.Name == "" {
		errorResponse(c, "INVALID_REQUEST", "owner and name are required", http.StatusBadRequest)
		return
	}

	repo, err := h.service.RegisterRepository(c.Request.Context(), req.Owner, req.Name)
	if err != nil {
		if errors.Is(err, activityModel.ErrRepositoryNotFound) {
			notFoundResponse(c, "repository not found on GitHub")
			return
		}
		h.logger.Errorw("error registering repository", "error", err)
		internalErrorResponse(c)
		return
	}
	c.JSON(http.StatusCreated, repo)
}

// BatchAddRepositories handles POST /repositories/batch request.
// @Summary Register multiple repositories with per-item results
// @Tags Registry
// @Accept json
// @Produce json
// @Param request body batchRegisterRequest true "Repositories to register"
// @Success 200 {array} service.BatchRegisterResult
// @Failure 400 {object} ErrorResponse
// @Router /repositories/batch [post] //nolint:godot // Swagger annotation should not end with period
func (h *Handler) BatchAddRepositories(c *gin.Context) {
	var req batchRegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, "INVALID_REQUEST", "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Repositories) == 0 {
		errorResponse(c, "INVALID_REQUEST", "repositories are required", http.StatusBadRequest)
		return
	}
	if len(req.Repositories) > maxBatchSize {
		errorResponse(c, "INVALID_REQUEST", "too many repositories (max 100)", http.StatusBadRequest)
		return
	}

	reqs := make([]service.RegisterRequest, len(req.Repositories))
	for i, r := range req.Repositories {
		reqs[i] = service.RegisterRequest{Owner: r.Owner, Name: r.Name}
	}
	c.JSON(http.StatusOK, h.service.BatchRegister(c.Request.Context(), reqs))
}

// GetRepository handles GET /repositories/:id request.
// @Summary Get one registered repository
// @Tags Registry
// @Produce json
// @Param id path string true "Repository ID"
// @Success 200 {object} model.Repository
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /repositories/{id} [get] //nolint:godot // Swagger annotation should not end with period
func (h *Handler) GetRepository(c *gin.Context) {
	repo, err := h.service.GetRepository(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, activityModel.ErrRepositoryNotFound) {
			notFoundResponse(c, "repository not found")
			return
		}
		h.logger.Errorw("error getting repository", "error", err)
		internalErrorResponse(c)
		return
	}
	c.JSON(http.StatusOK, repo)
}

// DeleteRepository handles DELETE /repositories/:id request.
// @Summary Remove a repository registration
// @Tags Registry
// @Param id path string true "Repository ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /repositories/{id} [delete] //nolint:godot // Swagger annotation should not end with period
func (h *Handler) DeleteRepository(c *gin.Context) {
	err := h.service.DeleteRepository(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, activityModel.ErrRepositoryNotFound) {
			notFoundResponse(c, "repository not found")
			return
		}
		h.logger.Errorw("error deleting repository", "error", err)
		internalErrorResponse(c)
		return
	}
	c.Status(http.StatusNoContent)
}

// SyncRepository handles POST /repositories/:id/sync request.
// @Summary Run an immediate sync for one repository
// @Tags Registry
// @Produce json
// @Param id path string true "Repository ID"
// @Param range query string false "Collection window: day, week, month, full"
// @Success 200 {object} service.SyncResult
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /repositories/{id}/sync [post] //nolint:godot // Swagger annotation should not end with period
func (h *Handler) SyncRepository(c *gin.Context) {
	result, err := h.service.SyncRepository(c.Request.Context(), c.Param("id"), c.Query("range"))
	if err != nil {
		if errors.Is(err, activityModel.ErrRepositoryNotFound) {
			notFoundResponse(c, "repository not found")
			return
		}
		h.logger.Errorw("error syncing repository", "error", err)
		internalErrorResponse(c)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ListMembers handles GET /members request.
// @Summary List known repository members
// @Tags Registry
// @Produce json
// @Success 200 {array} model.Member
// @Failure 500 {object} ErrorResponse
// @Router /members [get] //nolint:godot // Swagger annotation should not end with period
func (h *Handler) ListMembers(c *gin.Context) {
	members, err := h.service.ListMembers(c.Request.Context())
	if err != nil {
		h.logger.Errorw("error listing members", "error", err)
		internalErrorResponse(c)
		return
	}
	if members == nil {
		members = []*activityModel.Member{}
	}
	c.JSON(http.StatusOK, members)
}

// ListBotUsers handles GET /bots request.
// @Summary List registered bot usernames
// @Tags Registry
// @Produce json
// @Success 200 {array} string
// @Failure 500 {object} ErrorResponse
// @Router /bots [get] //nolint:godot // Swagger annotation should not end with period
func (h *Handler) ListBotUsers(c *gin.Context) {
	bots, err := h.service.ListBotUsers(c.Request.Context())
	if err != nil {
		h.logger.Errorw("error listing bot users", "error", err)
		internalErrorResponse(c)
		return
	}
	if bots == nil {
		bots = []string{}
	}
	c.JSON(http.StatusOK, bots)
}

// AddBotUser handles POST /bots request.
// @Summary Register a custom bot username
// @Tags Registry
// @Accept json
// @Produce json
// @Param request body addBotUserRequest true "Bot username"
// @Success 201 {object} model.BotUser
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /bots [post] //nolint:godot // Swagger annotation should not end with period
func (h *Handler) AddBotUser(c *gin.Context) {
	var req addBotUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, "INVALID_REQUEST", "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Username == "" {
		errorResponse(c, "INVALID_REQUEST", "username is required", http.StatusBadRequest)
		return
	}

	bot, err := h.service.AddBotUser(c.Request.Context(), req.Username)
	if err != nil {
		if errors.Is(err, activityModel.ErrBotUserExists) {
			errorResponse(c, "ALREADY_EXISTS", "bot user already registered", http.StatusConflict)
			return
		}
		h.logger.Errorw("error adding bot user", "error", err)
		internalErrorResponse(c)
		return
	}
	c.JSON(http.StatusCreated, bot)
}

// DeleteBotUser handles DELETE /bots request.
// @Summary Remove a custom bot username
// @Tags Registry
// @Param username query string true "Bot username"
// @Success 204
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /bots [delete] //nolint:godot // Swagger annotation should not end with period
func (h *Handler) DeleteBotUser(c *gin.Context) {
	username := c.Query("username")
	if username == "" {
		errorResponse(c, "INVALID_REQUEST", "username query parameter is required", http.StatusBadRequest)
		return
	}

	if err := h.service.DeleteBotUser(c.Request.Context(), username); err != nil {
		h.logger.Errorw("error deleting bot user", "error", err)
		internalErrorResponse(c)
		return
	}
	c.Status(http.StatusNoContent)
}

// CreateSprint handles POST /sprints request.
// @Summary Create a sprint for a repository
// @Tags Registry
// @Accept json
// @Produce json
// @Param request body createSprintRequest true "Sprint parameters"
// @Success 201 {object} model.Sprint
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /sprints [post] //nolint:godot // Swagger annotation should not end with period
func (h *Handler) CreateSprint(c *gin.Context) {
	var req createSprintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorResponse(c, "INVALID_REQUEST", "invalid request body", http.StatusBadRequest)
		return
	}
	if req.RepositoryID == "" || req.Name == "" || req.StartDate == "" || req.EndDate == "" {
		errorResponse(c, "INVALID_REQUEST",
			"repositoryId, name, startDate, and endDate are required", http.StatusBadRequest)
		return
	}

	startDate, err := time.Parse("2006-01-02", req.StartDate)
	if err != nil {
		errorResponse(c, "INVALID_REQUEST", "invalid startDate format (use YYYY-MM-DD)", http.StatusBadRequest)
		return
	}
	endDate, err := time.Parse("2006-01-02", req.EndDate)
	if err != nil {
		errorResponse(c, "INVALID_REQUEST", "invalid endDate format (use YYYY-MM-DD)", http.StatusBadRequest)
		return
	}
	if startDate.After(endDate) {
		errorResponse(c, "INVALID_REQUEST", "startDate must not be after endDate", http.StatusBadRequest)
		return
	}

	sprint, err := h.service.CreateSprint(c.Request.Context(), service.CreateSprintRequest{
		RepositoryID: req.RepositoryID,
		Name:         req.Name,
		StartDate:    startDate,
		EndDate:      endDate,
		Goals:        req.Goals,
	})
	if err != nil {
		if errors.Is(err, activityModel.ErrRepositoryNotFound) {
			notFoundResponse(c, "repository not found")
			return
		}
		h.logger.Errorw("error creating sprint", "error", err)
		internalErrorResponse(c)
		return
	}
	c.JSON(http.StatusCreated, sprint)
}

// ListSprints handles GET /sprints request.
// @Summary List sprints for a repository
// @Tags Registry
// @Produce json
// @Param repository query string true "Repository ID"
// @Success 200 {array} model.Sprint
// @Failure 400 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /sprints [get] //nolint:godot // Swagger annotation should not end with period
func (h *Handler) ListSprints(c *gin.Context) {
	repositoryID := c.Query("repository")
	if repositoryID == "" {
		errorResponse(c, "INVALID_REQUEST", "repository query parameter is required", http.StatusBadRequest)
		return
	}

	sprints, err := h.service.ListSprints(c.Request.Context(), repositoryID)
	if err != nil {
		h.logger.Errorw("error listing sprints", "error", err)
		internalErrorResponse(c)
		return
	}
	if sprints == nil {
		sprints = []*activityModel.Sprint{}
	}
	c.JSON(http.StatusOK, sprints)
}

// GetSprint handles GET /sprints/:id request.
// @Summary Get one sprint
// @Tags Registry
// @Produce json
// @Param id path string true "Sprint ID"
// @Success 200 {object} model.Sprint
// @Failure 404 {object} ErrorResponse
// @Failure 500 {object} ErrorResponse
// @Router /sprints/{id} [get] //nolint:godot // Swagger annotation should not end with period
func (h *Handler) GetSprint(c *gin.Context) {
	sprint, err := h.service.GetSprint(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, activityModel.ErrSprintNotFound) {
			notFoundResponse(c, "sprint not found")
			return
		}
		h.logger.Errorw("error getting sprint", "error", err)
		internalErrorResponse(c)
		return
	}
	c.JSON(http.StatusOK, sprint)
}
