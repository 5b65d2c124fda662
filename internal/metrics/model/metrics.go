// Package model defines the computed metric shapes returned by the query API.
package model

import (
	"time"

	activityModel "github.com/gitpulse/gitpulse/internal/activity/model"
)

// Deployment frequency buckets.
const (
	FrequencyDaily   = "daily"
	FrequencyWeekly  = "weekly"
	FrequencyMonthly = "monthly"
	FrequencyYearly  = "yearly"
)

// AuthorMetrics holds per-author aggregates within a window.
type AuthorMetrics struct {
	Author       string  `json:"author"`
	PRCount      int     `json:"prCount"`
	Additions    int     `json:"additions"`
	Deletions    int     `json:"deletions"`
	AvgCycleTime float64 `json:"avgCycleTime"`
}

// FileExtensionMetrics holds change aggregates for one file extension.
type FileExtensionMetrics struct {
	Extension string `json:"extension"`
	Additions int    `json:"additions"`
	Deletions int    `json:"deletions"`
	Files     int    `json:"files"`
	PRCount   int    `json:"prCount"`
}

// CycleTimeMetrics describes PR flow over a window. All durations are hours.
type CycleTimeMetrics struct {
	Period          string                      `json:"period"`
	StartDate       time.Time                   `json:"startDate"`
	EndDate         time.Time                   `json:"endDate"`
	TotalPRs        int                         `json:"totalPRs"`
	AvgCycleTime    float64                     `json:"avgCycleTime"`
	AvgCodingTime   float64                     `json:"avgCodingTime"`
	AvgPickupTime   float64                     `json:"avgPickupTime"`
	AvgReviewTime   float64                     `json:"avgReviewTime"`
	AvgMergeTime    float64                     `json:"avgMergeTime"`
	MedianCycleTime float64                     `json:"medianCycleTime"`
	P90CycleTime    float64                     `json:"p90CycleTime"`
	ByAuthor        []AuthorMetrics             `json:"byAuthor,omitempty"`
	ByFileExtension []FileExtensionMetrics      `json:"byFileExtension,omitempty"`
	DailyBreakdown  []activityModel.DailyRollup `json:"dailyBreakdown,omitempty"`
}

// ReviewerStats holds per-reviewer aggregates within a window.
type ReviewerStats struct {
	Reviewer     string  `json:"reviewer"`
	ReviewCount  int     `json:"reviewCount"`
	CommentCount int     `json:"commentCount"`
	ApprovalRate float64 `json:"approvalRate"`
}

// ReviewMetrics describes review behavior over a window.
type ReviewMetrics struct {
	Period               string          `json:"period"`
	StartDate            time.Time       `json:"startDate"`
	EndDate              time.Time       `json:"endDate"`
	TotalReviews         int             `json:"totalReviews"`
	TotalComments        int             `json:"totalComments"`
	AvgReviewsPerPR      float64         `json:"avgReviewsPerPR"`
	AvgCommentsPerReview float64         `json:"avgCommentsPerReview"`
	AvgTimeToFirstReview float64         `json:"avgTimeToFirstReview"`
	ApprovalRate         float64         `json:"approvalRate"`
	ChangesRequestedRate float64         `json:"changesRequestedRate"`
	ByReviewer           []ReviewerStats `json:"byReviewer,omitempty"`
}

// DeliveryMetrics describes deployment cadence and change outcomes over a
// window, in the standard four-keys shape.
type DeliveryMetrics struct {
	Period              string    `json:"period"`
	StartDate           time.Time `json:"startDate"`
	EndDate             time.Time `json:"endDate"`
	DeploymentCount     int       `json:"deploymentCount"`
	DeploymentFrequency string    `json:"deploymentFrequency"`
	AvgDeploysPerDay    float64   `json:"avgDeploysPerDay"`
	AvgLeadTime         float64   `json:"avgLeadTime"`
	MedianLeadTime      float64   `json:"medianLeadTime"`
	P90LeadTime         float64   `json:"p90LeadTime"`
	TotalChanges        int       `json:"totalChanges"`
	FailedDeployments   int       `json:"failedDeployments"`
	ChangeFailureRate   float64   `json:"changeFailureRate"`
}

// ComponentScore is one weighted input into the overall productivity score.
type ComponentScore struct {
	Name        string  `json:"name"`
	Score       float64 `json:"score"`
	Weight      float64 `json:"weight"`
	Description string  `json:"description"`
}

// ProductivityScore is the weighted composite health score for a window.
type ProductivityScore struct {
	RepositoryID    string           `json:"repositoryId,omitempty"`
	Period          string           `json:"period"`
	OverallScore    float64          `json:"overallScore"`
	CycleTimeScore  float64          `json:"cycleTimeScore"`
	ReviewScore     float64          `json:"reviewScore"`
	DeploymentScore float64          `json:"deploymentScore"`
	QualityScore    float64          `json:"qualityScore"`
	TrendDirection  string           `json:"trendDirection"`
	Recommendations []string         `json:"recommendations,omitempty"`
	ComponentScores []ComponentScore `json:"componentScores"`
}

// BurndownPoint is one day of sprint burndown.
type BurndownPoint struct {
	Date      time.Time `json:"date"`
	Planned   int       `json:"planned"`
	Remaining int       `json:"remaining"`
	Completed int       `json:"completed"`
}

// SprintPerformance summarizes activity within one sprint window.
type SprintPerformance struct {
	SprintID           string          `json:"sprintId"`
	SprintName         string          `json:"sprintName"`
	StartDate          time.Time       `json:"startDate"`
	EndDate            time.Time       `json:"endDate"`
	Status             string          `json:"status"`
	PlannedItems       int             `json:"plannedItems"`
	CompletedItems     int             `json:"completedItems"`
	CompletionRate     float64         `json:"completionRate"`
	PRsOpened          int             `json:"prsOpened"`
	PRsMerged          int             `json:"prsMerged"`
	AvgPRSize          float64         `json:"avgPRSize"`
	AvgCycleTime       float64         `json:"avgCycleTime"`
	AvgReviewTime      float64         `json:"avgReviewTime"`
	ActiveContributors int             `json:"activeContributors"`
	ReviewsSubmitted   int             `json:"reviewsSubmitted"`
	BurndownData       []BurndownPoint `json:"burndownData,omitempty"`
}

// PullRequestSummary is one row of the PR listing with derived durations.
type PullRequestSummary struct {
	Number     int                    `json:"number"`
	Title      string                 `json:"title"`
	Author     string                 `json:"author"`
	State      string                 `json:"state"`
	CreatedAt  time.Time              `json:"createdAt"`
	MergedAt   activityModel.NullTime `json:"mergedAt"`
	Additions  int                    `json:"additions"`
	Deletions  int                    `json:"deletions"`
	CycleTime  float64                `json:"cycleTime"`
	CodingTime float64                `json:"codingTime"`
	PickupTime float64                `json:"pickupTime"`
	ReviewTime float64                `json:"reviewTime"`
	MergeTime  float64                `json:"mergeTime"`
	RepoName   string                 `json:"repoName"`
}
