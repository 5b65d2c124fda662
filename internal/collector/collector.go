package collector

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	activityModel "github.com/gitpulse/gitpulse/internal/activity/model"
	"github.com/gitpulse/gitpulse/internal/config"
)

// Sync range names accepted by CollectOptionsForRange.
const (
	RangeDay   = "day"
	RangeWeek  = "week"
	RangeMonth = "month"
	RangeFull  = "full"
)

const progressInterval = 20

// CollectOptions bounds a single collection run.
type CollectOptions struct {
	Since    time.Time
	Until    time.Time
	State    string // all, open, closed
	PerPage  int
	MaxPages int
}

// DefaultCollectOptions covers the trailing three months.
func DefaultCollectOptions(cfg config.GitHubConfig) *CollectOptions {
	now := time.Now().UTC()
	return &CollectOptions{
		Since:    now.AddDate(0, -3, 0),
		Until:    now,
		State:    "all",
		PerPage:  cfg.PerPage,
		MaxPages: cfg.MaxPages,
	}
}

// CollectOptionsForRange builds options for a named sync range. Unknown
// names fall back to the full range.
func CollectOptionsForRange(syncRange string, cfg config.GitHubConfig) *CollectOptions {
	now := time.Now().UTC()
	opts := &CollectOptions{
		Until:   now,
		State:   "all",
		PerPage: cfg.PerPage,
	}

	switch syncRange {
	case RangeDay:
		opts.Since = now.AddDate(0, 0, -1)
		opts.MaxPages = 3
	case RangeWeek:
		opts.Since = now.AddDate(0, 0, -7)
		opts.MaxPages = 5
	case RangeMonth:
		opts.Since = now.AddDate(0, -1, 0)
		opts.MaxPages = cfg.MaxPages
	default:
		opts.Since = now.AddDate(0, -3, 0)
		opts.MaxPages = cfg.MaxPages
	}

	return opts
}

// CollectedData holds everything gathered for one repository in one run.
type CollectedData struct {
	Repository   *activityModel.Repository
	PullRequests []*activityModel.PullRequest
	Reviews      []*activityModel.Review
	Deployments  []*activityModel.Deployment
	Members      []*activityModel.Member
}

// Collector walks the GitHub API and assembles activity data. Repository and
// pull request list failures abort the run; per-item enrichment failures are
// logged and skipped so one flaky call cannot sink a sync.
type Collector struct {
	api    API
	logger *zap.SugaredLogger
}

// New creates a new Collector.
func New(api API, logger *zap.SugaredLogger) *Collector {
	return &Collector{api: api, logger: logger}
}

// CollectAll collects repository info, pull requests, reviews, deployments
// and contributors for one repository.
func (c *Collector) CollectAll(ctx context.Context, owner, repo string, opts *CollectOptions) (*CollectedData, error) {
	c.logger.Infow("starting data collection",
		"owner", owner, "repo", repo, "since", opts.Since, "until", opts.Until)

	data := &CollectedData{}

	repoInfo, err := c.api.GetRepository(ctx, owner, repo)
	if err != nil {
		return nil, fmt.Errorf("collecting repository: %w", err)
	}
	data.Repository = repoInfo

	prs, err := c.CollectPullRequests(ctx, owner, repo, opts)
	if err != nil {
		return nil, fmt.Errorf("collecting pull requests: %w", err)
	}
	data.PullRequests = prs

	reviews, err := c.CollectReviews(ctx, owner, repo, prs, repoInfo.ID)
	if err != nil {
		c.logger.Warnw("failed to collect some reviews", "error", err)
	}
	data.Reviews = reviews

	deployments, err := c.CollectDeployments(ctx, owner, repo, opts, repoInfo.ID)
	if err != nil {
		c.logger.Warnw("failed to collect deployments", "error", err)
	}
	data.Deployments = deployments

	members, err := c.api.ListContributors(ctx, owner, repo)
	if err != nil {
		c.logger.Warnw("failed to collect contributors", "error", err)
	}
	data.Members = members

	c.logger.Infow("data collection completed",
		"prs", len(data.PullRequests),
		"reviews", len(data.Reviews),
		"deployments", len(data.Deployments),
		"members", len(data.Members),
	)
	return data, nil
}

// CollectPullRequests pages through pull requests newest-updated first and
// stops at the first PR older than the window. Each kept PR is enriched with
// detail stats, per-extension file stats and its first commit time.
func (c *Collector) CollectPullRequests(ctx context.Context, owner, repo string, opts *CollectOptions) ([]*activityModel.PullRequest, error) {
	var allPRs []*activityModel.PullRequest

	for page := 1; page <= opts.MaxPages; page++ {
		prs, err := c.api.ListPullRequests(ctx, owner, repo, PullRequestListOptions{
			State:     opts.State,
			Sort:      "updated",
			Direction: "desc",
			Page:      page,
			PerPage:   opts.PerPage,
		})
		if err != nil {
			return nil, err
		}
		if len(prs) == 0 {
			break
		}

		for _, pr := range prs {
			if pr.UpdatedAt.Before(opts.Since) {
				c.logger.Infow("reached date boundary, stopping PR collection",
					"total", len(allPRs), "boundary_pr", pr.Number)
				return allPRs, nil
			}

			c.enrichPullRequest(ctx, owner, repo, pr)
			allPRs = append(allPRs, pr)

			if len(allPRs)%progressInterval == 0 {
				c.logger.Infow("PR collection progress",
					"collected", len(allPRs), "latest_pr", pr.Number, "author", pr.Author)
			}
		}

		if len(prs) < opts.PerPage {
			break
		}
	}

	c.logger.Infow("pull request collection finished", "total", len(allPRs))
	return allPRs, nil
}

func (c *Collector) enrichPullRequest(ctx context.Context, owner, repo string, pr *activityModel.PullRequest) {
	// Detail stats are missing from the list endpoint.
	detail, err := c.api.GetPullRequest(ctx, owner, repo, pr.Number)
	if err != nil {
		c.logger.Warnw("failed to get pull request details", "pr", pr.Number, "error", err)
	} else {
		pr.Additions = detail.Additions
		pr.Deletions = detail.Deletions
		pr.ChangedFiles = detail.ChangedFiles
		pr.CommitCount = detail.CommitCount
	}

	files, err := c.api.ListChangedFiles(ctx, owner, repo, pr.Number)
	if err != nil {
		c.logger.Warnw("failed to list pull request files", "pr", pr.Number, "error", err)
	} else {
		pr.FileExtStats = aggregateFileExtStats(files)
	}

	firstCommitAt, err := c.api.GetFirstCommitTime(ctx, owner, repo, pr.Number)
	if err != nil {
		c.logger.Warnw("failed to get first commit time", "pr", pr.Number, "error", err)
	} else {
		pr.FirstCommitAt = firstCommitAt
	}
}

// CollectReviews collects reviews for the given PRs and back-fills each PR's
// first-review and first-approval timestamps.
func (c *Collector) CollectReviews(ctx context.Context, owner, repo string, prs []*activityModel.PullRequest, repositoryID string) ([]*activityModel.Review, error) {
	c.logger.Infow("collecting reviews", "target_prs", len(prs))

	var allReviews []*activityModel.Review

	for i, pr := range prs {
		reviews, err := c.api.ListReviews(ctx, owner, repo, pr.Number, repositoryID)
		if err != nil {
			c.logger.Warnw("failed to collect reviews for PR", "pr", pr.Number, "error", err)
			continue
		}

		for _, review := range reviews {
			if !pr.FirstReviewAt.Valid || review.SubmittedAt.Before(pr.FirstReviewAt.Time) {
				pr.FirstReviewAt = activityModel.TimeAt(review.SubmittedAt)
			}
			if review.State == activityModel.ReviewApproved {
				if !pr.ApprovedAt.Valid || review.SubmittedAt.Before(pr.ApprovedAt.Time) {
					pr.ApprovedAt = activityModel.TimeAt(review.SubmittedAt)
				}
			}
		}

		commentCounts, err := c.api.CountReviewComments(ctx, owner, repo, pr.Number)
		if err != nil {
			c.logger.Warnw("failed to collect review comments", "pr", pr.Number, "error", err)
		} else {
			for _, review := range reviews {
				review.CommentsCount = commentCounts[review.Reviewer]
			}
		}

		allReviews = append(allReviews, reviews...)

		processed := i + 1
		if processed%progressInterval == 0 || processed == len(prs) {
			c.logger.Infow("review collection progress",
				"processed_prs", processed, "total_prs", len(prs), "reviews_collected", len(allReviews))
		}
	}

	c.logger.Infow("review collection finished", "total_reviews", len(allReviews))
	return allReviews, nil
}

// CollectDeployments pages through deployments newest first and stops at the
// first one older than the window.
func (c *Collector) CollectDeployments(ctx context.Context, owner, repo string, opts *CollectOptions, repositoryID string) ([]*activityModel.Deployment, error) {
	var allDeployments []*activityModel.Deployment

	for page := 1; page <= opts.MaxPages; page++ {
		deployments, err := c.api.ListDeployments(ctx, owner, repo, page, opts.PerPage, repositoryID)
		if err != nil {
			return nil, err
		}
		if len(deployments) == 0 {
			break
		}

		for _, d := range deployments {
			if d.CreatedAt.Before(opts.Since) {
				c.logger.Infow("reached date boundary, stopping deployment collection",
					"total", len(allDeployments))
				return allDeployments, nil
			}
			allDeployments = append(allDeployments, d)
		}

		if len(deployments) < opts.PerPage {
			break
		}
	}

	c.logger.Infow("deployment collection finished", "total", len(allDeployments))
	return allDeployments, nil
}

// aggregateFileExtStats rolls per-file stats up by lowercase file extension,
// sorted by total changed lines descending. Files without an extension are
// grouped under "(no ext)".
func aggregateFileExtStats(files []ChangedFile) []activityModel.FileExtStat {
	statsMap := make(map[string]*activityModel.FileExtStat)

	for _, f := range files {
		ext := strings.ToLower(filepath.Ext(f.Filename))
		if ext == "" {
			ext = "(no ext)"
		}

		s, ok := statsMap[ext]
		if !ok {
			s = &activityModel.FileExtStat{Extension: ext}
			statsMap[ext] = s
		}
		s.Additions += f.Additions
		s.Deletions += f.Deletions
		s.Files++
	}

	result := make([]activityModel.FileExtStat, 0, len(statsMap))
	for _, s := range statsMap {
		result = append(result, *s)
	}
	sort.Slice(result, func(i, j int) bool {
		return (result[i].Additions + result[i].Deletions) > (result[j].Additions + result[j].Deletions)
	})
	return result
}
