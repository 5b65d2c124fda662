// Package repository provides data access for activity entities, daily
// rollups, sync leases and durable cache records.
package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	activityModel "github.com/gitpulse/gitpulse/internal/activity/model"
)

// Store defines the persistent-store operations consumed by the collector
// persist step, the metrics services and the sync scheduler.
type Store interface {
	// SaveRepository upserts a repository.
	SaveRepository(ctx context.Context, repo *activityModel.Repository) error

	// GetRepository finds a repository by ID.
	GetRepository(ctx context.Context, id string) (*activityModel.Repository, error)

	// ListRepositories returns all registered repositories.
	ListRepositories(ctx context.Context) ([]*activityModel.Repository, error)

	// DeleteRepository removes a repository registration.
	DeleteRepository(ctx context.Context, id string) error

	// MarkSyncStarted records the sync-start marker for a repository.
	MarkSyncStarted(ctx context.Context, id string, at time.Time) error

	// MarkSynced records the last successful sync time for a repository.
	MarkSynced(ctx context.Context, id string, at time.Time) error

	// SavePullRequests upserts a batch of pull requests.
	SavePullRequests(ctx context.Context, prs []*activityModel.PullRequest) error

	// ListPullRequestsByRange lists PRs created within [start, end] for a repository.
	ListPullRequestsByRange(ctx context.Context, repositoryID string, start, end time.Time) ([]*activityModel.PullRequest, error)

	// SaveReviews upserts a batch of reviews.
	SaveReviews(ctx context.Context, reviews []*activityModel.Review) error

	// ListReviewsByRange lists reviews submitted within [start, end] for a repository.
	ListReviewsByRange(ctx context.Context, repositoryID string, start, end time.Time) ([]*activityModel.Review, error)

	// SaveDeployments upserts a batch of deployments.
	SaveDeployments(ctx context.Context, deployments []*activityModel.Deployment) error

	// ListDeploymentsByRange lists deployments created within [start, end] for a repository.
	ListDeploymentsByRange(ctx context.Context, repositoryID string, start, end time.Time) ([]*activityModel.Deployment, error)

	// SaveMembers upserts a batch of members.
	SaveMembers(ctx context.Context, members []*activityModel.Member) error

	// ListMembers returns all known members ordered by login.
	ListMembers(ctx context.Context) ([]*activityModel.Member, error)

	// SaveBotUser registers a custom bot username.
	SaveBotUser(ctx context.Context, bot *activityModel.BotUser) error

	// DeleteBotUser removes a custom bot username.
	DeleteBotUser(ctx context.Context, username string) error

	// ListBotUsernames returns all registered bot usernames.
	ListBotUsernames(ctx context.Context) ([]string, error)

	// SaveSprint upserts a sprint.
	SaveSprint(ctx context.Context, sprint *activityModel.Sprint) error

	// GetSprint finds a sprint by ID.
	GetSprint(ctx context.Context, id string) (*activityModel.Sprint, error)

	// ListSprints lists sprints for a repository, newest first.
	ListSprints(ctx context.Context, repositoryID string) ([]*activityModel.Sprint, error)

	// SaveDailyRollups upserts a batch of daily rollups.
	SaveDailyRollups(ctx context.Context, rollups []*activityModel.DailyRollup) error

	// ListDailyRollups lists rollups for a repository within [start, end] ordered by date.
	ListDailyRollups(ctx context.Context, repositoryID string, start, end time.Time) ([]*activityModel.DailyRollup, error)

	LeaseStore
	CacheStore
}

// LeaseStore provides compare-and-swap lease operations used for sync
// mutual exclusion.
type LeaseStore interface {
	// AcquireLease writes a lease for the job if none exists or the existing
	// one has expired. Returns ErrLeaseHeld otherwise.
	AcquireLease(ctx context.Context, id, owner string, ttl time.Duration) error

	// ReleaseLease deletes the lease only when owned by the caller.
	ReleaseLease(ctx context.Context, id, owner string) error

	// GetLease returns the current lease, for monitoring.
	GetLease(ctx context.Context, id string) (*activityModel.SyncLease, error)
}

// CacheStore provides the durable response-cache tier.
type CacheStore interface {
	// GetCacheRecord returns the cached body for the key, or ErrCacheMiss
	// when absent or expired.
	GetCacheRecord(ctx context.Context, key string) ([]byte, error)

	// PutCacheRecord upserts a cache record with the given TTL.
	PutCacheRecord(ctx context.Context, key string, body []byte, ttlSec int) error

	// PurgeCacheRecords deletes all cache records.
	PurgeCacheRecords(ctx context.Context) error
}

type repository struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
}

// New creates a new activity store instance.
func New(db *gorm.DB, logger *zap.SugaredLogger) Store {
	return &repository{db: db, logger: logger}
}

// SaveRepository upserts a repository.
func (r *repository) SaveRepository(ctx context.Context, repo *activityModel.Repository) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(repo).Error
}

// GetRepository finds a repository by ID.
func (r *repository) GetRepository(ctx context.Context, id string) (*activityModel.Repository, error) {
	var repo activityModel.Repository
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&repo).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, activityModel.ErrRepositoryNotFound
		}
		return nil, err
	}
	return &repo, nil
}

// ListRepositories returns all registered repositories.
func (r *repository) ListRepositories(ctx context.Context) ([]*activityModel.Repository, error) {
	var repos []*activityModel.Repository
	err := r.db.WithContext(ctx).
		Order("updated_at DESC").
		Find(&repos).Error
	if err != nil {
		return nil, err
	}
	return repos, nil
}

// DeleteRepository removes a repository registration.
func (r *repository) DeleteRepository(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&activityModel.Repository{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return activityModel.ErrRepositoryNotFound
	}
	return nil
}

// MarkSyncStarted records the sync-start marker for a repository.
func (r *repository) MarkSyncStarted(ctx context.Context, id string, at time.Time) error {
	return r.updateRepositoryTime(ctx, id, "sync_started_at", at)
}

// MarkSynced records the last successful sync time for a repository.
func (r *repository) MarkSynced(ctx context.Context, id string, at time.Time) error {
	return r.updateRepositoryTime(ctx, id, "last_synced_at", at)
}

func (r *repository) updateRepositoryTime(ctx context.Context, id, column string, at time.Time) error {
	result := r.db.WithContext(ctx).
		Model(&activityModel.Repository{}).
		Where("id = ?", id).
		Update(column, at)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return activityModel.ErrRepositoryNotFound
	}
	return nil
}

// SavePullRequests upserts a batch of pull requests.
func (r *repository) SavePullRequests(ctx context.Context, prs []*activityModel.PullRequest) error {
	if len(prs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(prs).Error
}

// ListPullRequestsByRange lists PRs created within [start, end] for a repository.
func (r *repository) ListPullRequestsByRange(ctx context.Context, repositoryID string, start, end time.Time) ([]*activityModel.PullRequest, error) {
	var prs []*activityModel.PullRequest
	err := r.db.WithContext(ctx).
		Where("repository_id = ? AND created_at >= ? AND created_at <= ?", repositoryID, start, end).
		Order("created_at DESC").
		Find(&prs).Error
	if err != nil {
		return nil, err
	}
	return prs, nil
}

// SaveReviews upserts a batch of reviews.
func (r *repository) SaveReviews(ctx context.Context, reviews []*activityModel.Review) error {
	if len(reviews) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(reviews).Error
}

// ListReviewsByRange lists reviews submitted within [start, end] for a repository.
func (r *repository) ListReviewsByRange(ctx context.Context, repositoryID string, start, end time.Time) ([]*activityModel.Review, error) {
	var reviews []*activityModel.Review
	err := r.db.WithContext(ctx).
		Where("repository_id = ? AND submitted_at >= ? AND submitted_at <= ?", repositoryID, start, end).
		Order("submitted_at DESC").
		Find(&reviews).Error
	if err != nil {
		return nil, err
	}
	return reviews, nil
}

// SaveDeployments upserts a batch of deployments.
func (r *repository) SaveDeployments(ctx context.Context, deployments []*activityModel.Deployment) error {
	if len(deployments) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(deployments).Error
}

// ListDeploymentsByRange lists deployments created within [start, end] for a repository.
func (r *repository) ListDeploymentsByRange(ctx context.Context, repositoryID string, start, end time.Time) ([]*activityModel.Deployment, error) {
	var deployments []*activityModel.Deployment
	err := r.db.WithContext(ctx).
		Where("repository_id = ? AND created_at >= ? AND created_at <= ?", repositoryID, start, end).
		Order("created_at DESC").
		Find(&deployments).Error
	if err != nil {
		return nil, err
	}
	return deployments, nil
}

// SaveMembers upserts a batch of members.
func (r *repository) SaveMembers(ctx context.Context, members []*activityModel.Member) error {
	if len(members) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(members).Error
}

// ListMembers returns all known members ordered by login.
func (r *repository) ListMembers(ctx context.Context) ([]*activityModel.Member, error) {
	var members []*activityModel.Member
	err := r.db.WithContext(ctx).
		Order("login ASC").
		Find(&members).Error
	if err != nil {
		return nil, err
	}
	return members, nil
}

// SaveBotUser registers a custom bot username.
func (r *repository) SaveBotUser(ctx context.Context, bot *activityModel.BotUser) error {
	err := r.db.WithContext(ctx).Create(bot).Error
	if err != nil {
		if isDuplicateError(err) {
			return activityModel.ErrBotUserExists
		}
		return err
	}
	return nil
}

// isDuplicateError checks if error is a duplicate key error.
func isDuplicateError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(errStr, "duplicate key") ||
		strings.Contains(errStr, "UNIQUE constraint")
}

// DeleteBotUser removes a custom bot username.
func (r *repository) DeleteBotUser(ctx context.Context, username string) error {
	return r.db.WithContext(ctx).
		Where("username = ?", username).
		Delete(&activityModel.BotUser{}).Error
}

// ListBotUsernames returns all registered bot usernames.
func (r *repository) ListBotUsernames(ctx context.Context) ([]string, error) {
	var bots []*activityModel.BotUser
	err := r.db.WithContext(ctx).
		Order("username ASC").
		Find(&bots).Error
	if err != nil {
		return nil, err
	}
	usernames := make([]string, len(bots))
	for i, b := range bots {
		usernames[i] = b.Username
	}
	return usernames, nil
}

// SaveSprint upserts a sprint.
func (r *repository) SaveSprint(ctx context.Context, sprint *activityModel.Sprint) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(sprint).Error
}

// GetSprint finds a sprint by ID.
func (r *repository) GetSprint(ctx context.Context, id string) (*activityModel.Sprint, error) {
	var sprint activityModel.Sprint
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&sprint).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, activityModel.ErrSprintNotFound
		}
		return nil, err
	}
	return &sprint, nil
}

// ListSprints lists sprints for a repository, newest first.
func (r *repository) ListSprints(ctx context.Context, repositoryID string) ([]*activityModel.Sprint, error) {
	var sprints []*activityModel.Sprint
	err := r.db.WithContext(ctx).
		Where("repository_id = ?", repositoryID).
		Order("start_date DESC").
		Find(&sprints).Error
	if err != nil {
		return nil, err
	}
	return sprints, nil
}

// SaveDailyRollups upserts a batch of daily rollups. Re-syncing the same day
// overwrites the previous row.
func (r *repository) SaveDailyRollups(ctx context.Context, rollups []*activityModel.DailyRollup) error {
	if len(rollups) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(rollups).Error
}

// ListDailyRollups lists rollups for a repository within [start, end] ordered by date.
func (r *repository) ListDailyRollups(ctx context.Context, repositoryID string, start, end time.Time) ([]*activityModel.DailyRollup, error) {
	var rollups []*activityModel.DailyRollup
	err := r.db.WithContext(ctx).
		Where("repository_id = ? AND date >= ? AND date <= ?", repositoryID, start, end).
		Order("date ASC").
		Find(&rollups).Error
	if err != nil {
		return nil, err
	}
	return rollups, nil
}
