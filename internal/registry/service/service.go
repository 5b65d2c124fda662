// Package service implements repository, bot user and sprint management,
// including on-demand repository sync.
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	activityModel "github.com/gitpulse/gitpulse/internal/activity/model"
	"github.com/gitpulse/gitpulse/internal/activity/repository"
	"github.com/gitpulse/gitpulse/internal/collector"
	"github.com/gitpulse/gitpulse/internal/config"
	"github.com/gitpulse/gitpulse/internal/metrics/calc"
)

// GitHubReader resolves repository metadata from GitHub.
type GitHubReader interface {
	GetRepository(ctx context.Context, owner, repo string) (*activityModel.Repository, error)
}

// DataCollector gathers activity data for one repository.
type DataCollector interface {
	CollectAll(ctx context.Context, owner, repo string, opts *collector.CollectOptions) (*collector.CollectedData, error)
}

// CacheInvalidator drops cached responses after the underlying data changed.
type CacheInvalidator interface {
	InvalidateAll(ctx context.Context)
}

// RegisterRequest identifies one repository to register.
type RegisterRequest struct {
	Owner string `json:"owner"`
	Name  string `json:"name"`
}

// BatchRegisterResult is the outcome of registering one repository in a batch.
type BatchRegisterResult struct {
	Owner      string                    `json:"owner"`
	Name       string                    `json:"name"`
	Success    bool                      `json:"success"`
	Error      string                    `json:"error,omitempty"`
	Repository *activityModel.Repository `json:"repository,omitempty"`
}

// SyncResult summarizes an on-demand repository sync.
type SyncResult struct {
	Repository   *activityModel.Repository `json:"repository"`
	PullRequests int                       `json:"pullRequests"`
	Reviews      int                       `json:"reviews"`
	Deployments  int                       `json:"deployments"`
	Members      int                       `json:"members"`
	SyncedAt     time.Time                 `json:"syncedAt"`
}

// CreateSprintRequest holds sprint creation parameters.
type CreateSprintRequest struct {
	RepositoryID string
	Name         string
	StartDate    time.Time
	EndDate      time.Time
	Goals        string
}

// Service defines registry operations.
type Service interface {
	// RegisterRepository resolves a repository on GitHub and registers it.
	RegisterRepository(ctx context.Context, owner, name string) (*activityModel.Repository, error)

	// BatchRegister registers several repositories, reporting per-item results.
	BatchRegister(ctx context.Context, reqs []RegisterRequest) []BatchRegisterResult

	// ListRepositories returns all registered repositories.
	ListRepositories(ctx context.Context) ([]*activityModel.Repository, error)

	// GetRepository finds a registered repository by ID.
	GetRepository(ctx context.Context, id string) (*activityModel.Repository, error)

	// DeleteRepository removes a repository registration and drops caches.
	DeleteRepository(ctx context.Context, id string) error

	// SyncRepository runs an immediate, lock-free sync for one repository.
	SyncRepository(ctx context.Context, id, syncRange string) (*SyncResult, error)

	// ListMembers returns all known members.
	ListMembers(ctx context.Context) ([]*activityModel.Member, error)

	// ListBotUsers returns all registered bot usernames.
	ListBotUsers(ctx context.Context) ([]string, error)

	// AddBotUser registers a custom bot username.
	AddBotUser(ctx context.Context, username string) (*activityModel.BotUser, error)

	// DeleteBotUser removes a custom bot username.
	DeleteBotUser(ctx context.Context, username string) error

	// CreateSprint creates a sprint for a repository.
	CreateSprint(ctx context.Context, req CreateSprintRequest) (*activityModel.Sprint, error)

	// ListSprints lists sprints for a repository, newest first.
	ListSprints(ctx context.Context, repositoryID string) ([]*activityModel.Sprint, error)

	// GetSprint finds a sprint by ID.
	GetSprint(ctx context.Context, id string) (*activityModel.Sprint, error)
}

type service struct {
	store      repository.Store
	github     GitHubReader
	collector  DataCollector
	aggregator *calc.Aggregator
	cache      CacheInvalidator
	cfg        config.Config
	logger     *zap.SugaredLogger
}

// New creates a new registry service instance. cache may be nil when no
// response cache is wired.
func New(store repository.Store, gh GitHubReader, dc DataCollector, cache CacheInvalidator, cfg config.Config, logger *zap.SugaredLogger) Service {
	return &service{
		store:      store,
		github:     gh,
		collector:  dc,
		aggregator: calc.NewAggregator(),
		cache:      cache,
		cfg:        cfg,
		logger:     logger,
	}
}

// RegisterRepository resolves a repository on GitHub and registers it.
func (s *service) RegisterRepository(ctx context.Context, owner, name string) (*activityModel.Repository, error) {
	repo, err := s.github.GetRepository(ctx, owner, name)
	if err != nil {
		s.logger.Warnw("failed to resolve repository on GitHub",
			"owner", owner, "name", name, "error", err)
		return nil, fmt.Errorf("%w on GitHub: %s/%s", activityModel.ErrRepositoryNotFound, owner, name)
	}

	if err := s.store.SaveRepository(ctx, repo); err != nil {
		return nil, fmt.Errorf("saving repository: %w", err)
	}
	return repo, nil
}

// BatchRegister registers several repositories, reporting per-item results.
func (s *service) BatchRegister(ctx context.Context, reqs []RegisterRequest) []BatchRegisterResult {
	results := make([]BatchRegisterResult, 0, len(reqs))
	for _, req := range reqs {
		result := BatchRegisterResult{Owner: req.Owner, Name: req.Name}

		if req.Owner == "" || req.Name == "" {
			result.Error = "owner and name are required"
			results = append(results, result)
			continue
		}

		repo, err := s.RegisterRepository(ctx, req.Owner, req.Name)
		if err != nil {
			result.Error = err.Error()
			results = append(results, result)
			continue
		}

		result.Success = true
		result.Repository = repo
		results = append(results, result)
	}
	return results
}

// ListRepositories returns all registered repositories.
func (s *service) ListRepositories(ctx context.Context) ([]*activityModel.Repository, error) {
	return s.store.ListRepositories(ctx)
}

// GetRepository finds a registered repository by ID.
func (s *service) GetRepository(ctx context.Context, id string) (*activityModel.Repository, error) {
	return s.store.GetRepository(ctx, id)
}

// DeleteRepository removes a repository registration and drops caches.
func (s *service) DeleteRepository(ctx context.Context, id string) error {
	if err := s.store.DeleteRepository(ctx, id); err != nil {
		return err
	}
	s.invalidateCache(ctx, "delete")
	return nil
}

// SyncRepository runs an immediate, lock-free sync for one repository.
// Persist failures for individual entity classes are logged but do not fail
// the sync.
func (s *service) SyncRepository(ctx context.Context, id, syncRange string) (*SyncResult, error) {
	repo, err := s.store.GetRepository(ctx, id)
	if err != nil {
		return nil, err
	}

	if syncRange == "" {
		syncRange = collector.RangeFull
	}
	opts := collector.CollectOptionsForRange(syncRange, s.cfg.GitHub)

	data, err := s.collector.CollectAll(ctx, repo.Owner, repo.Name, opts)
	if err != nil {
		return nil, fmt.Errorf("collecting repository data: %w", err)
	}

	s.logger.Infow("saving collected data",
		"repository", data.Repository.FullName,
		"prs", len(data.PullRequests),
		"reviews", len(data.Reviews),
		"deployments", len(data.Deployments),
		"members", len(data.Members),
	)

	if err := s.store.SaveRepository(ctx, data.Repository); err != nil {
		s.logger.Errorw("failed to save repository", "error", err)
	}
	if err := s.store.SavePullRequests(ctx, data.PullRequests); err != nil {
		s.logger.Errorw("failed to save pull requests", "error", err)
	}
	if err := s.store.SaveReviews(ctx, data.Reviews); err != nil {
		s.logger.Errorw("failed to save reviews", "error", err)
	}
	if err := s.store.SaveDeployments(ctx, data.Deployments); err != nil {
		s.logger.Errorw("failed to save deployments", "error", err)
	}
	if err := s.store.SaveMembers(ctx, data.Members); err != nil {
		s.logger.Errorw("failed to save members", "error", err)
	}

	rollups := s.aggregator.AggregateRange(
		repo.ID,
		opts.Since,
		time.Now().UTC(),
		data.PullRequests,
		data.Reviews,
		data.Deployments,
	)
	if err := s.store.SaveDailyRollups(ctx, rollups); err != nil {
		s.logger.Errorw("failed to save daily rollups", "error", err)
	}

	syncedAt := time.Now().UTC()
	if err := s.store.MarkSynced(ctx, repo.ID, syncedAt); err != nil {
		s.logger.Errorw("failed to record last synced time", "error", err)
	}

	s.invalidateCache(ctx, "sync")

	data.Repository.LastSyncedAt = activityModel.TimeAt(syncedAt)
	return &SyncResult{
		Repository:   data.Repository,
		PullRequests: len(data.PullRequests),
		Reviews:      len(data.Reviews),
		Deployments:  len(data.Deployments),
		Members:      len(data.Members),
		SyncedAt:     syncedAt,
	}, nil
}

func (s *service) invalidateCache(ctx context.Context, reason string) {
	if s.cache == nil {
		return
	}
	s.cache.InvalidateAll(ctx)
	s.logger.Infow("response cache invalidated", "reason", reason)
}

// ListMembers returns all known members.
func (s *service) ListMembers(ctx context.Context) ([]*activityModel.Member, error) {
	return s.store.ListMembers(ctx)
}

// ListBotUsers returns all registered bot usernames.
func (s *service) ListBotUsers(ctx context.Context) ([]string, error) {
	return s.store.ListBotUsernames(ctx)
}

// AddBotUser registers a custom bot username.
func (s *service) AddBotUser(ctx context.Context, username string) (*activityModel.BotUser, error) {
	bot := &activityModel.BotUser{
		Username:  username,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.SaveBotUser(ctx, bot); err != nil {
		return nil, err
	}
	return bot, nil
}

// DeleteBotUser removes a custom bot username.
func (s *service) DeleteBotUser(ctx context.Context, username string) error {
	return s.store.DeleteBotUser(ctx, username)
}

// CreateSprint creates a sprint for a repository.
func (s *service) CreateSprint(ctx context.Context, req CreateSprintRequest) (*activityModel.Sprint, error) {
	if _, err := s.store.GetRepository(ctx, req.RepositoryID); err != nil {
		return nil, err
	}

	sprint := &activityModel.Sprint{
		ID:           sprintID(req.RepositoryID, req.Name),
		RepositoryID: req.RepositoryID,
		Name:         req.Name,
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
		Goals:        req.Goals,
	}
	if err := s.store.SaveSprint(ctx, sprint); err != nil {
		return nil, fmt.Errorf("saving sprint: %w", err)
	}
	return sprint, nil
}

// ListSprints lists sprints for a repository, newest first.
func (s *service) ListSprints(ctx context.Context, repositoryID string) ([]*activityModel.Sprint, error) {
	return s.store.ListSprints(ctx, repositoryID)
}

// GetSprint finds a sprint by ID.
func (s *service) GetSprint(ctx context.Context, id string) (*activityModel.Sprint, error) {
	return s.store.GetSprint(ctx, id)
}

// sprintID derives a stable sprint ID from the repository and sprint name.
func sprintID(repositoryID, name string) string {
	return repositoryID + ":" + strings.ReplaceAll(name, " ", "-")
}
