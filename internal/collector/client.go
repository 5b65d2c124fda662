// Package collector pulls repository activity from the GitHub API and maps
// it onto the domain entities persisted by the sync job.
package collector

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/go-github/v82/github"
	"golang.org/x/oauth2"

	activityModel "github.com/gitpulse/gitpulse/internal/activity/model"
	"github.com/gitpulse/gitpulse/pkg/retry"
)

// ChangedFile holds per-file change stats for one pull request file.
type ChangedFile struct {
	Filename  string
	Additions int
	Deletions int
}

// PullRequestListOptions narrows a pull request list call.
type PullRequestListOptions struct {
	State     string
	Sort      string
	Direction string
	Page      int
	PerPage   int
}

// API is the subset of the GitHub surface the collector consumes.
type API interface {
	GetRepository(ctx context.Context, owner, repo string) (*activityModel.Repository, error)
	ListPullRequests(ctx context.Context, owner, repo string, opts PullRequestListOptions) ([]*activityModel.PullRequest, error)
	GetPullRequest(ctx context.Context, owner, repo string, number int) (*activityModel.PullRequest, error)
	ListChangedFiles(ctx context.Context, owner, repo string, number int) ([]ChangedFile, error)
	GetFirstCommitTime(ctx context.Context, owner, repo string, number int) (activityModel.NullTime, error)
	ListReviews(ctx context.Context, owner, repo string, number int, repositoryID string) ([]*activityModel.Review, error)
	CountReviewComments(ctx context.Context, owner, repo string, number int) (map[string]int, error)
	ListDeployments(ctx context.Context, owner, repo string, page, perPage int, repositoryID string) ([]*activityModel.Deployment, error)
	ListContributors(ctx context.Context, owner, repo string) ([]*activityModel.Member, error)
}

// Client wraps the GitHub API client with token auth and retrying calls.
type Client struct {
	gh       *github.Client
	retryCfg retry.Config
}

// NewClient creates a GitHub client authenticated with a personal access token.
func NewClient(token string) *Client {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	httpClient := oauth2.NewClient(context.Background(), ts)
	return newClient(httpClient)
}

// NewClientWithHTTPClient creates a GitHub client over a custom HTTP client,
// for tests and recorded transports.
func NewClientWithHTTPClient(httpClient *http.Client) *Client {
	return newClient(httpClient)
}

func newClient(httpClient *http.Client) *Client {
	cfg := retry.Config{
		MaxAttempts:  3,
		InitialDelay: 2 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		RetryableErrors: []string{
			"rate limit",
			"secondary rate limit",
			"502",
			"503",
			"i/o timeout",
			"connection reset",
			"unexpected EOF",
		},
	}
	return &Client{gh: github.NewClient(httpClient), retryCfg: cfg}
}

// GetRepository fetches repository information.
func (c *Client) GetRepository(ctx context.Context, owner, repo string) (*activityModel.Repository, error) {
	r, err := retry.DoWithResult(ctx, c.retryCfg, func() (*github.Repository, error) {
		r, _, err := c.gh.Repositories.Get(ctx, owner, repo)
		return r, err
	})
	if err != nil {
		return nil, fmt.Errorf("getting repository %s/%s: %w", owner, repo, err)
	}

	return &activityModel.Repository{
		ID:        strconv.FormatInt(r.GetID(), 10),
		Owner:     r.GetOwner().GetLogin(),
		Name:      r.GetName(),
		FullName:  r.GetFullName(),
		Private:   r.GetPrivate(),
		CreatedAt: r.GetCreatedAt().Time,
		UpdatedAt: r.GetUpdatedAt().Time,
	}, nil
}

// ListPullRequests fetches one page of pull requests.
func (c *Client) ListPullRequests(ctx context.Context, owner, repo string, opts PullRequestListOptions) ([]*activityModel.PullRequest, error) {
	ghOpts := &github.PullRequestListOptions{
		State:     opts.State,
		Sort:      opts.Sort,
		Direction: opts.Direction,
		ListOptions: github.ListOptions{
			Page:    opts.Page,
			PerPage: opts.PerPage,
		},
	}

	prs, err := retry.DoWithResult(ctx, c.retryCfg, func() ([]*github.PullRequest, error) {
		prs, _, err := c.gh.PullRequests.List(ctx, owner, repo, ghOpts)
		return prs, err
	})
	if err != nil {
		return nil, fmt.Errorf("listing pull requests for %s/%s: %w", owner, repo, err)
	}

	result := make([]*activityModel.PullRequest, 0, len(prs))
	for _, pr := range prs {
		result = append(result, convertPullRequest(pr, owner, repo))
	}
	return result, nil
}

// GetPullRequest fetches one pull request with its full change stats, which
// the list endpoint omits.
func (c *Client) GetPullRequest(ctx context.Context, owner, repo string, number int) (*activityModel.PullRequest, error) {
	pr, err := retry.DoWithResult(ctx, c.retryCfg, func() (*github.PullRequest, error) {
		pr, _, err := c.gh.PullRequests.Get(ctx, owner, repo, number)
		return pr, err
	})
	if err != nil {
		return nil, fmt.Errorf("getting pull request %s/%s#%d: %w", owner, repo, number, err)
	}
	return convertPullRequest(pr, owner, repo), nil
}

// ListChangedFiles retrieves all changed files in a PR, following pagination.
func (c *Client) ListChangedFiles(ctx context.Context, owner, repo string, number int) ([]ChangedFile, error) {
	var all []ChangedFile
	opts := &github.ListOptions{Page: 1, PerPage: 100}

	for {
		files, resp, err := c.gh.PullRequests.ListFiles(ctx, owner, repo, number, opts)
		if err != nil {
			return nil, fmt.Errorf("listing files for %s/%s#%d: %w", owner, repo, number, err)
		}
		for _, f := range files {
			all = append(all, ChangedFile{
				Filename:  f.GetFilename(),
				Additions: f.GetAdditions(),
				Deletions: f.GetDeletions(),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

// GetFirstCommitTime returns the earliest authored commit time in the PR, or
// an invalid NullTime when the PR has no commits.
func (c *Client) GetFirstCommitTime(ctx context.Context, owner, repo string, number int) (activityModel.NullTime, error) {
	commits, err := retry.DoWithResult(ctx, c.retryCfg, func() ([]*github.RepositoryCommit, error) {
		commits, _, err := c.gh.PullRequests.ListCommits(ctx, owner, repo, number, nil)
		return commits, err
	})
	if err != nil {
		return activityModel.NullTime{}, fmt.Errorf("listing commits for %s/%s#%d: %w", owner, repo, number, err)
	}

	var first activityModel.NullTime
	for _, commit := range commits {
		if commit.Commit == nil || commit.Commit.Author == nil {
			continue
		}
		t := commit.Commit.Author.GetDate().Time
		if !first.Valid || t.Before(first.Time) {
			first = activityModel.TimeAt(t)
		}
	}
	return first, nil
}

// ListReviews fetches all reviews for a pull request.
func (c *Client) ListReviews(ctx context.Context, owner, repo string, number int, repositoryID string) ([]*activityModel.Review, error) {
	reviews, err := retry.DoWithResult(ctx, c.retryCfg, func() ([]*github.PullRequestReview, error) {
		reviews, _, err := c.gh.PullRequests.ListReviews(ctx, owner, repo, number, nil)
		return reviews, err
	})
	if err != nil {
		return nil, fmt.Errorf("listing reviews for %s/%s#%d: %w", owner, repo, number, err)
	}

	prID := fmt.Sprintf("%s#%d", repositoryID, number)
	result := make([]*activityModel.Review, 0, len(reviews))
	for _, review := range reviews {
		result = append(result, &activityModel.Review{
			ID:            strconv.FormatInt(review.GetID(), 10),
			PullRequestID: prID,
			RepositoryID:  repositoryID,
			Reviewer:      review.GetUser().GetLogin(),
			State:         review.GetState(),
			Body:          review.GetBody(),
			SubmittedAt:   review.GetSubmittedAt().Time,
		})
	}
	return result, nil
}

// CountReviewComments returns inline review comment counts keyed by reviewer login.
func (c *Client) CountReviewComments(ctx context.Context, owner, repo string, number int) (map[string]int, error) {
	comments, err := retry.DoWithResult(ctx, c.retryCfg, func() ([]*github.PullRequestComment, error) {
		comments, _, err := c.gh.PullRequests.ListComments(ctx, owner, repo, number, nil)
		return comments, err
	})
	if err != nil {
		return nil, fmt.Errorf("listing review comments for %s/%s#%d: %w", owner, repo, number, err)
	}

	counts := make(map[string]int)
	for _, comment := range comments {
		counts[comment.GetUser().GetLogin()]++
	}
	return counts, nil
}

// ListDeployments fetches one page of deployments, resolving each one's
// latest status. Deployments with no status yet stay pending.
func (c *Client) ListDeployments(ctx context.Context, owner, repo string, page, perPage int, repositoryID string) ([]*activityModel.Deployment, error) {
	ghOpts := &github.DeploymentsListOptions{
		ListOptions: github.ListOptions{Page: page, PerPage: perPage},
	}

	deployments, err := retry.DoWithResult(ctx, c.retryCfg, func() ([]*github.Deployment, error) {
		deployments, _, err := c.gh.Repositories.ListDeployments(ctx, owner, repo, ghOpts)
		return deployments, err
	})
	if err != nil {
		return nil, fmt.Errorf("listing deployments for %s/%s: %w", owner, repo, err)
	}

	result := make([]*activityModel.Deployment, 0, len(deployments))
	for _, d := range deployments {
		status := activityModel.DeployStatusPending
		statuses, _, statusErr := c.gh.Repositories.ListDeploymentStatuses(ctx, owner, repo, d.GetID(), &github.ListOptions{PerPage: 1})
		if statusErr == nil && len(statuses) > 0 {
			status = statuses[0].GetState()
		}
		result = append(result, &activityModel.Deployment{
			ID:           strconv.FormatInt(d.GetID(), 10),
			RepositoryID: repositoryID,
			Environment:  d.GetEnvironment(),
			Ref:          d.GetRef(),
			SHA:          d.GetSHA(),
			Status:       status,
			CreatedAt:    d.GetCreatedAt().Time,
		})
	}
	return result, nil
}

// ListContributors fetches contributors for a repository.
func (c *Client) ListContributors(ctx context.Context, owner, repo string) ([]*activityModel.Member, error) {
	contributors, err := retry.DoWithResult(ctx, c.retryCfg, func() ([]*github.Contributor, error) {
		contributors, _, err := c.gh.Repositories.ListContributors(ctx, owner, repo, nil)
		return contributors, err
	})
	if err != nil {
		return nil, fmt.Errorf("listing contributors for %s/%s: %w", owner, repo, err)
	}

	result := make([]*activityModel.Member, 0, len(contributors))
	for _, contributor := range contributors {
		result = append(result, &activityModel.Member{
			ID:        strconv.FormatInt(contributor.GetID(), 10),
			Login:     contributor.GetLogin(),
			AvatarURL: contributor.GetAvatarURL(),
			CreatedAt: time.Now().UTC(),
		})
	}
	return result, nil
}

func convertPullRequest(pr *github.PullRequest, owner, repo string) *activityModel.PullRequest {
	// The list endpoint can omit base repo info; fall back to owner/name.
	repoID := fmt.Sprintf("%s/%s", owner, repo)
	if base := pr.GetBase(); base != nil && base.GetRepo().GetID() != 0 {
		repoID = strconv.FormatInt(base.GetRepo().GetID(), 10)
	}

	result := &activityModel.PullRequest{
		ID:           strconv.FormatInt(pr.GetID(), 10),
		RepositoryID: repoID,
		Number:       pr.GetNumber(),
		Title:        pr.GetTitle(),
		Author:       pr.GetUser().GetLogin(),
		State:        pr.GetState(),
		Draft:        pr.GetDraft(),
		CreatedAt:    pr.GetCreatedAt().Time,
		UpdatedAt:    pr.GetUpdatedAt().Time,
		Additions:    pr.GetAdditions(),
		Deletions:    pr.GetDeletions(),
		ChangedFiles: pr.GetChangedFiles(),
		CommitCount:  pr.GetCommits(),
	}

	if pr.MergedAt != nil {
		result.MergedAt = activityModel.TimeAt(pr.GetMergedAt().Time)
	}
	if pr.ClosedAt != nil {
		result.ClosedAt = activityModel.TimeAt(pr.GetClosedAt().Time)
	}
	return result
}
