// Package model provides domain models for the sync job module.
package model

import "time"

// Sync job response statuses.
const (
	StatusCompleted = "completed"
	StatusSkipped   = "skipped"
)

// SyncRequest holds the parameters of one sync job run.
type SyncRequest struct {
	// Range is the named collection window: day, week, month or full.
	Range string `json:"range"`
	// Interval overrides the configured sync interval, in minutes. Zero keeps
	// the configured value.
	Interval int `json:"interval"`
	// Repo pins the run to one repository, matched by full name or name.
	Repo string `json:"repo"`
	// NoLock skips the lease lock entirely.
	NoLock bool `json:"nolock"`
	// Force disables the sync-start guard when Repo is set.
	Force bool `json:"force"`
	// ClearCache invalidates the response cache after a successful sync.
	ClearCache bool `json:"clear_cache"`
}

// SyncResponse is the result of one sync job run.
type SyncResponse struct {
	Status       string           `json:"status"`
	Message      string           `json:"message"`
	TotalRepos   int              `json:"totalRepos"`
	SyncedRepos  int              `json:"syncedRepos"`
	SkippedRepos int              `json:"skippedRepos"`
	Results      []RepoSyncResult `json:"results,omitempty"`
	StartedAt    time.Time        `json:"startedAt"`
	FinishedAt   time.Time        `json:"finishedAt"`
	DurationSec  float64          `json:"durationSec"`
}

// RepoSyncResult is the sync outcome for a single repository.
type RepoSyncResult struct {
	RepositoryID string `json:"repositoryId"`
	FullName     string `json:"fullName"`
	Success      bool   `json:"success"`
	Error        string `json:"error,omitempty"`
	PullRequests int    `json:"pullRequests"`
	Reviews      int    `json:"reviews"`
	Deployments  int    `json:"deployments"`
	RollupDays   int    `json:"rollupDays"`
}
