// Package service implements the metrics query operations over stored
// activity data.
package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	activityModel "github.com/gitpulse/gitpulse/internal/activity/model"
	"github.com/gitpulse/gitpulse/internal/activity/repository"
	"github.com/gitpulse/gitpulse/internal/metrics/calc"
	metricsModel "github.com/gitpulse/gitpulse/internal/metrics/model"
)

// Query bounds one metrics request. Empty RepositoryIDs means every
// registered repository.
type Query struct {
	RepositoryIDs []string
	Start         time.Time
	End           time.Time
	ExcludeBots   bool
	BotsOnly      bool
}

// Validate checks the query window.
func (q Query) Validate() error {
	if q.Start.After(q.End) {
		return activityModel.ErrInvalidDateRange
	}
	return nil
}

// Service defines metrics query operations.
type Service interface {
	// CycleTime computes cycle time metrics with a daily breakdown.
	CycleTime(ctx context.Context, q Query) (*metricsModel.CycleTimeMetrics, error)

	// Reviews computes review behavior metrics.
	Reviews(ctx context.Context, q Query) (*metricsModel.ReviewMetrics, error)

	// Delivery computes deployment cadence and change outcome metrics.
	Delivery(ctx context.Context, q Query) (*metricsModel.DeliveryMetrics, error)

	// ProductivityScore computes the weighted composite score.
	ProductivityScore(ctx context.Context, q Query) (*metricsModel.ProductivityScore, error)

	// DailyRollups returns per-day aggregates merged across repositories.
	DailyRollups(ctx context.Context, q Query) ([]*activityModel.DailyRollup, error)

	// SprintPerformance summarizes one sprint.
	SprintPerformance(ctx context.Context, sprintID string) (*metricsModel.SprintPerformance, error)

	// PullRequests lists PRs in the window with derived durations.
	PullRequests(ctx context.Context, q Query) ([]metricsModel.PullRequestSummary, error)
}

type service struct {
	store      repository.Store
	calculator *calc.Calculator
	aggregator *calc.Aggregator
	logger     *zap.SugaredLogger
}

// New creates a new metrics service instance.
func New(store repository.Store, logger *zap.SugaredLogger) Service {
	return &service{
		store:      store,
		calculator: calc.NewCalculator(),
		aggregator: calc.NewAggregator(),
		logger:     logger,
	}
}

// CycleTime computes cycle time metrics with a daily breakdown.
func (s *service) CycleTime(ctx context.Context, q Query) (*metricsModel.CycleTimeMetrics, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	repoIDs, err := s.resolveRepositoryIDs(ctx, q)
	if err != nil {
		return nil, err
	}

	prs := s.collectPullRequests(ctx, repoIDs, q.Start, q.End)
	prs = s.actorFilter(ctx, q).FilterPullRequests(prs)

	result := s.calculator.CalculateCycleTime(prs, q.Start, q.End)

	rollups, err := s.DailyRollups(ctx, q)
	if err != nil {
		s.logger.Warnw("failed to get daily rollups for breakdown", "error", err)
	} else {
		result.DailyBreakdown = make([]activityModel.DailyRollup, 0, len(rollups))
		for _, r := range rollups {
			result.DailyBreakdown = append(result.DailyBreakdown, *r)
		}
	}
	return result, nil
}

// Reviews computes review behavior metrics.
func (s *service) Reviews(ctx context.Context, q Query) (*metricsModel.ReviewMetrics, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	repoIDs, err := s.resolveRepositoryIDs(ctx, q)
	if err != nil {
		return nil, err
	}

	filter := s.actorFilter(ctx, q)
	reviews := filter.FilterReviews(s.collectReviews(ctx, repoIDs, q.Start, q.End))
	prs := filter.FilterPullRequests(s.collectPullRequests(ctx, repoIDs, q.Start, q.End))

	return s.calculator.CalculateReviewMetrics(reviews, prs, q.Start, q.End), nil
}

// Delivery computes deployment cadence and change outcome metrics.
func (s *service) Delivery(ctx context.Context, q Query) (*metricsModel.DeliveryMetrics, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	repoIDs, err := s.resolveRepositoryIDs(ctx, q)
	if err != nil {
		return nil, err
	}

	prs := s.actorFilter(ctx, q).FilterPullRequests(s.collectPullRequests(ctx, repoIDs, q.Start, q.End))
	deployments := s.collectDeployments(ctx, repoIDs, q.Start, q.End)

	return s.calculator.CalculateDeliveryMetrics(prs, deployments, q.Start, q.End), nil
}

// ProductivityScore computes the weighted composite score.
func (s *service) ProductivityScore(ctx context.Context, q Query) (*metricsModel.ProductivityScore, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	repoIDs, err := s.resolveRepositoryIDs(ctx, q)
	if err != nil {
		return nil, err
	}

	filter := s.actorFilter(ctx, q)
	prs := filter.FilterPullRequests(s.collectPullRequests(ctx, repoIDs, q.Start, q.End))
	reviews := filter.FilterReviews(s.collectReviews(ctx, repoIDs, q.Start, q.End))
	deployments := s.collectDeployments(ctx, repoIDs, q.Start, q.End)

	cycleTime := s.calculator.CalculateCycleTime(prs, q.Start, q.End)
	reviewMetrics := s.calculator.CalculateReviewMetrics(reviews, prs, q.Start, q.End)
	delivery := s.calculator.CalculateDeliveryMetrics(prs, deployments, q.Start, q.End)

	score := s.calculator.CalculateProductivityScore(cycleTime, reviewMetrics, delivery)
	if len(repoIDs) == 1 {
		score.RepositoryID = repoIDs[0]
	} else {
		score.RepositoryID = "all"
	}
	return score, nil
}

// DailyRollups returns per-day aggregates merged across repositories.
func (s *service) DailyRollups(ctx context.Context, q Query) ([]*activityModel.DailyRollup, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	repoIDs, err := s.resolveRepositoryIDs(ctx, q)
	if err != nil {
		return nil, err
	}

	var all []*activityModel.DailyRollup
	for _, id := range repoIDs {
		rollups, err := s.store.ListDailyRollups(ctx, id, q.Start, q.End)
		if err != nil {
			s.logger.Warnw("failed to list daily rollups for repo", "repository", id, "error", err)
			continue
		}
		all = append(all, rollups...)
	}
	return calc.MergeDailyRollups(all), nil
}

// SprintPerformance summarizes one sprint.
func (s *service) SprintPerformance(ctx context.Context, sprintID string) (*metricsModel.SprintPerformance, error) {
	sprint, err := s.store.GetSprint(ctx, sprintID)
	if err != nil {
		return nil, err
	}

	prs, err := s.store.ListPullRequestsByRange(ctx, sprint.RepositoryID, sprint.StartDate, sprint.EndDate)
	if err != nil {
		return nil, fmt.Errorf("listing sprint pull requests: %w", err)
	}
	reviews, err := s.store.ListReviewsByRange(ctx, sprint.RepositoryID, sprint.StartDate, sprint.EndDate)
	if err != nil {
		return nil, fmt.Errorf("listing sprint reviews: %w", err)
	}

	return s.aggregator.CalculateSprintPerformance(sprint, prs, reviews, time.Now().UTC()), nil
}

// PullRequests lists PRs in the window with derived durations, newest first.
func (s *service) PullRequests(ctx context.Context, q Query) ([]metricsModel.PullRequestSummary, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	repoIDs, err := s.resolveRepositoryIDs(ctx, q)
	if err != nil {
		return nil, err
	}

	repoNames := make(map[string]string)
	if repos, err := s.store.ListRepositories(ctx); err == nil {
		for _, repo := range repos {
			repoNames[repo.ID] = repo.FullName
		}
	}

	prs := s.actorFilter(ctx, q).FilterPullRequests(s.collectPullRequests(ctx, repoIDs, q.Start, q.End))

	result := make([]metricsModel.PullRequestSummary, 0, len(prs))
	for _, pr := range prs {
		result = append(result, metricsModel.PullRequestSummary{
			Number:     pr.Number,
			Title:      pr.Title,
			Author:     pr.Author,
			State:      pr.State,
			CreatedAt:  pr.CreatedAt,
			MergedAt:   pr.MergedAt,
			Additions:  pr.Additions,
			Deletions:  pr.Deletions,
			CycleTime:  pr.CycleTimeHours(),
			CodingTime: pr.CodingTimeHours(),
			PickupTime: pr.PickupTimeHours(),
			ReviewTime: pr.ReviewTimeHours(),
			MergeTime:  pr.MergeTimeHours(),
			RepoName:   repoNames[pr.RepositoryID],
		})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// resolveRepositoryIDs expands an empty selection to every registered repo.
func (s *service) resolveRepositoryIDs(ctx context.Context, q Query) ([]string, error) {
	if len(q.RepositoryIDs) > 0 {
		return q.RepositoryIDs, nil
	}
	repos, err := s.store.ListRepositories(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing repositories: %w", err)
	}
	ids := make([]string, len(repos))
	for i, repo := range repos {
		ids[i] = repo.ID
	}
	return ids, nil
}

// actorFilter builds the bot filter, merging in registered bot usernames.
// A registry read failure degrades to suffix-only detection.
func (s *service) actorFilter(ctx context.Context, q Query) activityModel.ActorFilter {
	filter := activityModel.ActorFilter{ExcludeBots: q.ExcludeBots, BotsOnly: q.BotsOnly}
	bots, err := s.store.ListBotUsernames(ctx)
	if err != nil {
		s.logger.Warnw("failed to list bot usernames", "error", err)
		return filter
	}
	filter.CustomBots = bots
	return filter
}

// Per-repo reads degrade to partial results: one failing repository is
// logged and skipped rather than failing the whole query.

func (s *service) collectPullRequests(ctx context.Context, repoIDs []string, start, end time.Time) []*activityModel.PullRequest {
	var result []*activityModel.PullRequest
	for _, id := range repoIDs {
		prs, err := s.store.ListPullRequestsByRange(ctx, id, start, end)
		if err != nil {
			s.logger.Warnw("failed to list pull requests for repo", "repository", id, "error", err)
			continue
		}
		result = append(result, prs...)
	}
	return result
}

func (s *service) collectReviews(ctx context.Context, repoIDs []string, start, end time.Time) []*activityModel.Review {
	var result []*activityModel.Review
	for _, id := range repoIDs {
		reviews, err := s.store.ListReviewsByRange(ctx, id, start, end)
		if err != nil {
			s.logger.Warnw("failed to list reviews for repo", "repository", id, "error", err)
			continue
		}
		result = append(result, reviews...)
	}
	return result
}

func (s *service) collectDeployments(ctx context.Context, repoIDs []string, start, end time.Time) []*activityModel.Deployment {
	var result []*activityModel.Deployment
	for _, id := range repoIDs {
		deployments, err := s.store.ListDeploymentsByRange(ctx, id, start, end)
		if err != nil {
			s.logger.Warnw("failed to list deployments for repo", "repository", id, "error", err)
			continue
		}
		result = append(result, deployments...)
	}
	return result
}
