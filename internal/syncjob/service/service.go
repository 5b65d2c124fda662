// Package service implements the single-flight sync job: pick one due
// repository, collect its activity from GitHub and persist the results.
package service

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	activityModel "github.com/gitpulse/gitpulse/internal/activity/model"
	"github.com/gitpulse/gitpulse/internal/activity/repository"
	"github.com/gitpulse/gitpulse/internal/collector"
	"github.com/gitpulse/gitpulse/internal/config"
	"github.com/gitpulse/gitpulse/internal/metrics/calc"
	"github.com/gitpulse/gitpulse/internal/syncjob/model"
)

// syncLockID is the lease ID shared by every sync job instance.
const syncLockID = "sync-job"

// DataCollector gathers activity data for one repository.
type DataCollector interface {
	CollectAll(ctx context.Context, owner, repo string, opts *collector.CollectOptions) (*collector.CollectedData, error)
}

// CacheInvalidator drops cached responses after a sync changed the data
// underneath them.
type CacheInvalidator interface {
	InvalidateAll(ctx context.Context)
}

// Service defines the sync job operations.
type Service interface {
	// Sync runs one sync pass. At most one repository is synced per call.
	// Returns an error wrapping model.ErrLeaseHeld when another instance
	// holds the lock.
	Sync(ctx context.Context, req model.SyncRequest) (*model.SyncResponse, error)
}

type service struct {
	store      repository.Store
	collector  DataCollector
	aggregator *calc.Aggregator
	cache      CacheInvalidator
	cfg        config.Config
	logger     *zap.SugaredLogger
}

// New creates a new sync job service instance. cache may be nil when no
// response cache is wired.
func New(store repository.Store, dc DataCollector, cache CacheInvalidator, cfg config.Config, logger *zap.SugaredLogger) Service {
	return &service{
		store:      store,
		collector:  dc,
		aggregator: calc.NewAggregator(),
		cache:      cache,
		cfg:        cfg,
		logger:     logger,
	}
}

// Sync runs one sync pass.
func (s *service) Sync(ctx context.Context, req model.SyncRequest) (*model.SyncResponse, error) {
	startedAt := time.Now().UTC()
	instanceID := fmt.Sprintf("%d-%d", os.Getpid(), startedAt.UnixNano())

	s.logger.Infow("sync job started",
		"instance_id", instanceID,
		"range", req.Range,
		"interval", req.Interval,
		"repo", req.Repo,
		"nolock", req.NoLock,
		"force", req.Force,
		"clear_cache", req.ClearCache,
	)

	if !req.NoLock {
		if err := s.store.AcquireLease(ctx, syncLockID, instanceID, s.cfg.Sync.LockTTL); err != nil {
			s.logger.Warnw("sync job skipped: lock already held", "error", err)
			return nil, err
		}
		defer func() {
			if err := s.store.ReleaseLease(ctx, syncLockID, instanceID); err != nil {
				s.logger.Errorw("failed to release sync lock", "error", err)
			}
		}()
	}

	repos, err := s.store.ListRepositories(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing repositories: %w", err)
	}

	target := s.pickSyncTarget(repos, req)
	if target == nil {
		finishedAt := time.Now().UTC()
		s.logger.Infow("sync job completed: no eligible repository found")
		return &model.SyncResponse{
			Status:       model.StatusCompleted,
			Message:      "no eligible repository found",
			TotalRepos:   len(repos),
			SkippedRepos: len(repos),
			StartedAt:    startedAt,
			FinishedAt:   finishedAt,
			DurationSec:  finishedAt.Sub(startedAt).Seconds(),
		}, nil
	}

	if err := s.store.MarkSyncStarted(ctx, target.ID, time.Now().UTC()); err != nil {
		s.logger.Errorw("failed to record sync start", "repository", target.FullName, "error", err)
	}

	result := s.syncSingleRepo(ctx, target, req.Range)

	if req.ClearCache && result.Success && s.cache != nil {
		s.cache.InvalidateAll(ctx)
		s.logger.Infow("response cache invalidated after sync")
	}

	finishedAt := time.Now().UTC()
	syncedCount := 0
	if result.Success {
		syncedCount = 1
	}

	resp := &model.SyncResponse{
		Status:       model.StatusCompleted,
		Message:      fmt.Sprintf("synced %d/%d repositories", syncedCount, len(repos)),
		TotalRepos:   len(repos),
		SyncedRepos:  syncedCount,
		SkippedRepos: len(repos) - 1,
		Results:      []model.RepoSyncResult{result},
		StartedAt:    startedAt,
		FinishedAt:   finishedAt,
		DurationSec:  finishedAt.Sub(startedAt).Seconds(),
	}

	s.logger.Infow("sync job completed",
		"total_repos", len(repos),
		"synced_repo", target.FullName,
		"success", result.Success,
		"duration_sec", resp.DurationSec,
	)
	return resp, nil
}

// pickSyncTarget selects at most one repository to sync.
//
// When req.Repo is set, the matching repository is returned unless it was
// synced within the interval, or its sync-start marker is fresher than the
// guard and force is off.
//
// Otherwise the eligible repository with the oldest last-synced time wins;
// never-synced repositories have the highest priority.
func (s *service) pickSyncTarget(repos []*activityModel.Repository, req model.SyncRequest) *activityModel.Repository {
	syncInterval := s.cfg.Sync.Interval
	if req.Interval > 0 {
		syncInterval = time.Duration(req.Interval) * time.Minute
	}
	now := time.Now().UTC()

	if req.Repo != "" {
		for _, repo := range repos {
			if repo.FullName != req.Repo && repo.Name != req.Repo {
				continue
			}

			if repo.LastSyncedAt.Valid && now.Sub(repo.LastSyncedAt.Time) < syncInterval {
				s.logger.Infow("skipping repository: recently synced",
					"repository", repo.FullName,
					"last_synced_at", repo.LastSyncedAt.Time,
					"interval", syncInterval,
				)
				return nil
			}

			if !req.Force {
				if repo.SyncStartedAt.Valid && now.Sub(repo.SyncStartedAt.Time) < s.cfg.Sync.ProcessGuard {
					s.logger.Infow("skipping repository: sync recently started",
						"repository", repo.FullName,
						"sync_started_at", repo.SyncStartedAt.Time,
					)
					return nil
				}
			}

			return repo
		}
		s.logger.Warnw("specified repository not found", "repo", req.Repo)
		return nil
	}

	var target *activityModel.Repository
	var oldestSync time.Time

	for _, repo := range repos {
		if repo.LastSyncedAt.Valid && now.Sub(repo.LastSyncedAt.Time) < syncInterval {
			continue
		}

		if repo.SyncStartedAt.Valid && now.Sub(repo.SyncStartedAt.Time) < s.cfg.Sync.ProcessGuard {
			s.logger.Infow("skipping repository: sync recently started",
				"repository", repo.FullName,
				"sync_started_at", repo.SyncStartedAt.Time,
			)
			continue
		}

		// Zero value means never synced, which sorts first.
		var repoSync time.Time
		if repo.LastSyncedAt.Valid {
			repoSync = repo.LastSyncedAt.Time
		}

		if target == nil || repoSync.Before(oldestSync) {
			target = repo
			oldestSync = repoSync
		}
	}

	return target
}

// syncSingleRepo collects, persists and aggregates one repository. Persist
// failures for individual entity classes are logged but do not fail the run.
func (s *service) syncSingleRepo(ctx context.Context, repo *activityModel.Repository, syncRange string) model.RepoSyncResult {
	result := model.RepoSyncResult{
		RepositoryID: repo.ID,
		FullName:     repo.FullName,
	}

	opts := collector.CollectOptionsForRange(syncRange, s.cfg.GitHub)

	data, err := s.collector.CollectAll(ctx, repo.Owner, repo.Name, opts)
	if err != nil {
		s.logger.Errorw("failed to sync repository", "repository", repo.FullName, "error", err)
		result.Error = err.Error()
		return result
	}

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

	if err := s.store.MarkSynced(ctx, repo.ID, time.Now().UTC()); err != nil {
		s.logger.Errorw("failed to record last synced time", "error", err)
	}

	result.Success = true
	result.PullRequests = len(data.PullRequests)
	result.Reviews = len(data.Reviews)
	result.Deployments = len(data.Deployments)
	result.RollupDays = len(rollups)

	s.logger.Infow("repository sync completed",
		"repository", repo.FullName,
		"pull_requests", result.PullRequests,
		"reviews", result.Reviews,
		"deployments", result.Deployments,
		"rollup_days", result.RollupDays,
	)
	return result
}
