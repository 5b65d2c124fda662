package model

import (
	"time"
)

// Review outcome states as reported by the hosting platform.
const (
	ReviewApproved         = "APPROVED"
	ReviewChangesRequested = "CHANGES_REQUESTED"
	ReviewCommented        = "COMMENTED"
	ReviewDismissed        = "DISMISSED"
)

// Deployment outcome statuses.
const (
	DeployStatusSuccess = "success"
	DeployStatusFailure = "failure"
	DeployStatusError   = "error"
	DeployStatusPending = "pending"
)

// Repository represents a tracked GitHub repository.
// Matches the repositories table schema.
type Repository struct {
	ID            string    `gorm:"primaryKey;column:id;type:varchar(64)"              json:"id"`
	Owner         string    `gorm:"column:owner;type:varchar(255);not null"            json:"owner"`
	Name          string    `gorm:"column:name;type:varchar(255);not null"             json:"name"`
	FullName      string    `gorm:"column:full_name;type:varchar(255);not null"        json:"fullName"`
	Private       bool      `gorm:"column:private;not null;default:false"              json:"private"`
	CreatedAt     time.Time `gorm:"column:created_at;type:timestamptz;not null"        json:"createdAt"`
	UpdatedAt     time.Time `gorm:"column:updated_at;type:timestamptz;not null"        json:"updatedAt"`
	LastSyncedAt  NullTime  `gorm:"column:last_synced_at;type:timestamptz"             json:"lastSyncedAt"`
	SyncStartedAt NullTime  `gorm:"column:sync_started_at;type:timestamptz"            json:"syncStartedAt"`
}

// TableName specifies the table name for GORM.
func (Repository) TableName() string {
	return "repositories"
}

// FileExtStat holds change statistics for one file extension within a PR.
type FileExtStat struct {
	Extension string `json:"extension"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	Files     int    `json:"files"`
}

// PullRequest represents a pull request with its lifecycle timestamps.
// Derived durations are views over the timestamps and are never stored.
// Matches the pull_requests table schema.
type PullRequest struct {
	ID            string        `gorm:"primaryKey;column:id;type:varchar(64)"                                     json:"id"`
	RepositoryID  string        `gorm:"column:repository_id;type:varchar(64);not null;index:idx_prs_repository"   json:"repositoryId"`
	Number        int           `gorm:"column:number;not null"                                                    json:"number"`
	Title         string        `gorm:"column:title;type:text"                                                    json:"title"`
	Author        string        `gorm:"column:author;type:varchar(255);not null;index:idx_prs_author"             json:"author"`
	State         string        `gorm:"column:state;type:varchar(32);not null"                                    json:"state"`
	Draft         bool          `gorm:"column:draft;not null;default:false"                                       json:"draft"`
	CreatedAt     time.Time     `gorm:"column:created_at;type:timestamptz;not null;index:idx_prs_created_at"      json:"createdAt"`
	UpdatedAt     time.Time     `gorm:"column:updated_at;type:timestamptz;not null"                               json:"updatedAt"`
	MergedAt      NullTime      `gorm:"column:merged_at;type:timestamptz"                                         json:"mergedAt"`
	ClosedAt      NullTime      `gorm:"column:closed_at;type:timestamptz"                                         json:"closedAt"`
	FirstCommitAt NullTime      `gorm:"column:first_commit_at;type:timestamptz"                                   json:"firstCommitAt"`
	FirstReviewAt NullTime      `gorm:"column:first_review_at;type:timestamptz"                                   json:"firstReviewAt"`
	ApprovedAt    NullTime      `gorm:"column:approved_at;type:timestamptz"                                       json:"approvedAt"`
	Additions     int           `gorm:"column:additions;not null;default:0"                                       json:"additions"`
	Deletions     int           `gorm:"column:deletions;not null;default:0"                                       json:"deletions"`
	ChangedFiles  int           `gorm:"column:changed_files;not null;default:0"                                   json:"changedFiles"`
	CommitCount   int           `gorm:"column:commit_count;not null;default:0"                                    json:"commitCount"`
	FileExtStats  []FileExtStat `gorm:"column:file_ext_stats;serializer:json"                                     json:"fileExtStats,omitempty"`
}

// TableName specifies the table name for GORM.
func (PullRequest) TableName() string {
	return "pull_requests"
}

// CycleTimeHours returns elapsed hours from first commit (or creation when no
// commit time is known) to merge. Zero when the PR is not merged.
func (pr *PullRequest) CycleTimeHours() float64 {
	if !pr.MergedAt.Valid {
		return 0
	}
	start := pr.CreatedAt
	if pr.FirstCommitAt.Valid && pr.FirstCommitAt.Time.Before(pr.CreatedAt) {
		start = pr.FirstCommitAt.Time
	}
	return pr.MergedAt.Time.Sub(start).Hours()
}

// CodingTimeHours returns elapsed hours from first commit to PR creation.
func (pr *PullRequest) CodingTimeHours() float64 {
	if !pr.FirstCommitAt.Valid {
		return 0
	}
	return pr.CreatedAt.Sub(pr.FirstCommitAt.Time).Hours()
}

// PickupTimeHours returns elapsed hours from PR creation to first review.
func (pr *PullRequest) PickupTimeHours() float64 {
	if !pr.FirstReviewAt.Valid {
		return 0
	}
	return pr.FirstReviewAt.Time.Sub(pr.CreatedAt).Hours()
}

// ReviewTimeHours returns elapsed hours from first review to approval.
func (pr *PullRequest) ReviewTimeHours() float64 {
	if !pr.FirstReviewAt.Valid || !pr.ApprovedAt.Valid {
		return 0
	}
	return pr.ApprovedAt.Time.Sub(pr.FirstReviewAt.Time).Hours()
}

// MergeTimeHours returns elapsed hours from approval to merge.
func (pr *PullRequest) MergeTimeHours() float64 {
	if !pr.ApprovedAt.Valid || !pr.MergedAt.Valid {
		return 0
	}
	return pr.MergedAt.Time.Sub(pr.ApprovedAt.Time).Hours()
}

// LeadTimeHours returns elapsed hours from PR creation to merge.
func (pr *PullRequest) LeadTimeHours() float64 {
	if !pr.MergedAt.Valid {
		return 0
	}
	return pr.MergedAt.Time.Sub(pr.CreatedAt).Hours()
}

// Review represents a submitted pull request review.
// Matches the reviews table schema.
type Review struct {
	ID            string    `gorm:"primaryKey;column:id;type:varchar(64)"                                       json:"id"`
	PullRequestID string    `gorm:"column:pull_request_id;type:varchar(64);not null;index:idx_reviews_pr"       json:"pullRequestId"`
	RepositoryID  string    `gorm:"column:repository_id;type:varchar(64);not null;index:idx_reviews_repository" json:"repositoryId"`
	Reviewer      string    `gorm:"column:reviewer;type:varchar(255);not null"                                  json:"reviewer"`
	State         string    `gorm:"column:state;type:varchar(32);not null"                                      json:"state"`
	Body          string    `gorm:"column:body;type:text"                                                       json:"body,omitempty"`
	SubmittedAt   time.Time `gorm:"column:submitted_at;type:timestamptz;not null"                               json:"submittedAt"`
	CommentsCount int       `gorm:"column:comments_count;not null;default:0"                                    json:"commentsCount"`
}

// TableName specifies the table name for GORM.
func (Review) TableName() string {
	return "reviews"
}

// Deployment represents a deployment event for a repository environment.
// Matches the deployments table schema.
type Deployment struct {
	ID           string    `gorm:"primaryKey;column:id;type:varchar(64)"                                json:"id"`
	RepositoryID string    `gorm:"column:repository_id;type:varchar(64);not null;index:idx_deploys_repo" json:"repositoryId"`
	Environment  string    `gorm:"column:environment;type:varchar(255)"                                 json:"environment"`
	Ref          string    `gorm:"column:ref;type:varchar(255)"                                         json:"ref"`
	SHA          string    `gorm:"column:sha;type:varchar(64)"                                          json:"sha"`
	Status       string    `gorm:"column:status;type:varchar(32)"                                       json:"status"`
	CreatedAt    time.Time `gorm:"column:created_at;type:timestamptz;not null"                          json:"createdAt"`
}

// TableName specifies the table name for GORM.
func (Deployment) TableName() string {
	return "deployments"
}

// Member represents a repository contributor.
// Matches the members table schema.
type Member struct {
	ID        string    `gorm:"primaryKey;column:id;type:varchar(64)"       json:"id"`
	Login     string    `gorm:"column:login;type:varchar(255);not null"     json:"login"`
	Name      string    `gorm:"column:name;type:varchar(255)"               json:"name"`
	AvatarURL string    `gorm:"column:avatar_url;type:varchar(512)"         json:"avatarUrl"`
	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz;not null" json:"createdAt"`
}

// TableName specifies the table name for GORM.
func (Member) TableName() string {
	return "members"
}

// BotUser represents a manually registered bot account excluded from
// human-activity metrics.
type BotUser struct {
	Username  string    `gorm:"primaryKey;column:username;type:varchar(255)" json:"username"`
	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz;not null"  json:"createdAt"`
}

// TableName specifies the table name for GORM.
func (BotUser) TableName() string {
	return "bot_users"
}

// Sprint represents a caller-owned sprint window. The metrics core only
// reads sprints.
type Sprint struct {
	ID           string    `gorm:"primaryKey;column:id;type:varchar(64)"                                  json:"id"`
	RepositoryID string    `gorm:"column:repository_id;type:varchar(64);not null;index:idx_sprints_repo"  json:"repositoryId"`
	Name         string    `gorm:"column:name;type:varchar(255);not null"                                 json:"name"`
	StartDate    time.Time `gorm:"column:start_date;type:timestamptz;not null"                            json:"startDate"`
	EndDate      time.Time `gorm:"column:end_date;type:timestamptz;not null"                              json:"endDate"`
	Goals        string    `gorm:"column:goals;type:text"                                                 json:"goals,omitempty"`
}

// TableName specifies the table name for GORM.
func (Sprint) TableName() string {
	return "sprints"
}

// DailyRollup holds aggregated metrics for one repository and calendar day.
// Written only by the aggregator; keyed "repositoryID:YYYY-MM-DD".
type DailyRollup struct {
	ID           string    `gorm:"primaryKey;column:id;type:varchar(96)"                                  json:"id"`
	RepositoryID string    `gorm:"column:repository_id;type:varchar(64);not null;index:idx_rollups_repo"  json:"repositoryId,omitempty"`
	Date         time.Time `gorm:"column:date;type:timestamptz;not null;index:idx_rollups_date"           json:"date"`

	AvgCycleTime  float64 `gorm:"column:avg_cycle_time;not null;default:0"  json:"avgCycleTime"`
	AvgCodingTime float64 `gorm:"column:avg_coding_time;not null;default:0" json:"avgCodingTime"`
	AvgPickupTime float64 `gorm:"column:avg_pickup_time;not null;default:0" json:"avgPickupTime"`
	AvgReviewTime float64 `gorm:"column:avg_review_time;not null;default:0" json:"avgReviewTime"`
	AvgMergeTime  float64 `gorm:"column:avg_merge_time;not null;default:0"  json:"avgMergeTime"`

	PRsOpened int `gorm:"column:prs_opened;not null;default:0" json:"prsOpened"`
	PRsMerged int `gorm:"column:prs_merged;not null;default:0" json:"prsMerged"`
	PRsClosed int `gorm:"column:prs_closed;not null;default:0" json:"prsClosed"`

	ReviewsSubmitted int     `gorm:"column:reviews_submitted;not null;default:0"  json:"reviewsSubmitted"`
	AvgReviewsPerPR  float64 `gorm:"column:avg_reviews_per_pr;not null;default:0" json:"avgReviewsPerPR"`

	TotalAdditions int `gorm:"column:total_additions;not null;default:0" json:"totalAdditions"`
	TotalDeletions int `gorm:"column:total_deletions;not null;default:0" json:"totalDeletions"`

	DeploymentCount    int `gorm:"column:deployment_count;not null;default:0"    json:"deploymentCount"`
	ActiveContributors int `gorm:"column:active_contributors;not null;default:0" json:"activeContributors"`
}

// TableName specifies the table name for GORM.
func (DailyRollup) TableName() string {
	return "daily_rollups"
}

// RollupID builds the primary key for a repository and day.
func RollupID(repositoryID string, date time.Time) string {
	return repositoryID + ":" + date.Format("2006-01-02")
}

// SyncLease is a time-bounded mutual-exclusion record for a named job.
// Created and renewed only by the sync scheduler.
type SyncLease struct {
	ID        string    `gorm:"primaryKey;column:id;type:varchar(64)"       json:"id"`
	LockedBy  string    `gorm:"column:locked_by;type:varchar(255);not null" json:"lockedBy"`
	LockedAt  time.Time `gorm:"column:locked_at;type:timestamptz;not null"  json:"lockedAt"`
	ExpiresAt time.Time `gorm:"column:expires_at;type:timestamptz;not null" json:"expiresAt"`
}

// TableName specifies the table name for GORM.
func (SyncLease) TableName() string {
	return "sync_leases"
}

// Expired reports whether the lease has passed its TTL at the given instant.
func (l *SyncLease) Expired(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}

// CacheRecord is a durable response-cache entry.
type CacheRecord struct {
	Key       string    `gorm:"primaryKey;column:key;type:varchar(512)"     json:"key"`
	Body      []byte    `gorm:"column:body;type:bytea"                      json:"-"`
	CreatedAt time.Time `gorm:"column:created_at;type:timestamptz;not null" json:"createdAt"`
	TTLSec    int       `gorm:"column:ttl_sec;not null"                     json:"ttlSec"`
}

// TableName specifies the table name for GORM.
func (CacheRecord) TableName() string {
	return "cache_records"
}

// Expired reports whether the record has outlived its TTL at the given instant.
func (r *CacheRecord) Expired(now time.Time) bool {
	return now.Sub(r.CreatedAt) > time.Duration(r.TTLSec)*time.Second
}
