package calc

import (
	"sort"
	"time"

	activityModel "github.com/gitpulse/gitpulse/internal/activity/model"
	metricsModel "github.com/gitpulse/gitpulse/internal/metrics/model"
)

// Sprint lifecycle states derived from the current time.
const (
	SprintPlanned   = "planned"
	SprintActive    = "active"
	SprintCompleted = "completed"
)

// Aggregator rolls raw activity up into per-day and per-sprint summaries.
type Aggregator struct {
	calculator *Calculator
}

// NewAggregator creates a new Aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{calculator: NewCalculator()}
}

// AggregateDaily builds the rollup for one repository and calendar day. The
// day bucket is [startOfDay, startOfDay+24h) in the date's location.
func (a *Aggregator) AggregateDaily(
	repositoryID string,
	date time.Time,
	prs []*activityModel.PullRequest,
	reviews []*activityModel.Review,
	deployments []*activityModel.Deployment,
) *activityModel.DailyRollup {
	startOfDay := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	endOfDay := startOfDay.Add(24 * time.Hour)

	inDay := func(t time.Time) bool {
		return !t.Before(startOfDay) && t.Before(endOfDay)
	}

	var dayPRsOpened, dayPRsMerged, dayPRsClosed []*activityModel.PullRequest
	for _, pr := range prs {
		if inDay(pr.CreatedAt) {
			dayPRsOpened = append(dayPRsOpened, pr)
		}
		if pr.MergedAt.Valid && inDay(pr.MergedAt.Time) {
			dayPRsMerged = append(dayPRsMerged, pr)
		}
		if pr.ClosedAt.Valid && inDay(pr.ClosedAt.Time) {
			dayPRsClosed = append(dayPRsClosed, pr)
		}
	}

	var dayReviews []*activityModel.Review
	for _, r := range reviews {
		if inDay(r.SubmittedAt) {
			dayReviews = append(dayReviews, r)
		}
	}

	dayDeployments := 0
	for _, d := range deployments {
		if inDay(d.CreatedAt) {
			dayDeployments++
		}
	}

	cycleTime := a.calculator.CalculateCycleTime(dayPRsMerged, startOfDay, endOfDay)

	totalAdditions, totalDeletions := 0, 0
	for _, pr := range dayPRsMerged {
		totalAdditions += pr.Additions
		totalDeletions += pr.Deletions
	}

	// A contributor is active if they opened a PR, merged one, or reviewed.
	contributors := make(map[string]bool)
	for _, pr := range dayPRsOpened {
		contributors[pr.Author] = true
	}
	for _, pr := range dayPRsMerged {
		contributors[pr.Author] = true
	}
	for _, r := range dayReviews {
		contributors[r.Reviewer] = true
	}

	avgReviewsPerPR := 0.0
	if len(dayPRsMerged) > 0 {
		avgReviewsPerPR = float64(len(dayReviews)) / float64(len(dayPRsMerged))
	}

	return &activityModel.DailyRollup{
		ID:                 activityModel.RollupID(repositoryID, date),
		RepositoryID:       repositoryID,
		Date:               startOfDay,
		AvgCycleTime:       cycleTime.AvgCycleTime,
		AvgCodingTime:      cycleTime.AvgCodingTime,
		AvgPickupTime:      cycleTime.AvgPickupTime,
		AvgReviewTime:      cycleTime.AvgReviewTime,
		AvgMergeTime:       cycleTime.AvgMergeTime,
		PRsOpened:          len(dayPRsOpened),
		PRsMerged:          len(dayPRsMerged),
		PRsClosed:          len(dayPRsClosed),
		ReviewsSubmitted:   len(dayReviews),
		AvgReviewsPerPR:    avgReviewsPerPR,
		TotalAdditions:     totalAdditions,
		TotalDeletions:     totalDeletions,
		DeploymentCount:    dayDeployments,
		ActiveContributors: len(contributors),
	}
}

// AggregateRange builds a rollup for every day in [startDate, endDate]
// inclusive. Idle days produce zero rows so charts have no gaps.
func (a *Aggregator) AggregateRange(
	repositoryID string,
	startDate, endDate time.Time,
	prs []*activityModel.PullRequest,
	reviews []*activityModel.Review,
	deployments []*activityModel.Deployment,
) []*activityModel.DailyRollup {
	var rollups []*activityModel.DailyRollup
	for current := startDate; !current.After(endDate); current = current.AddDate(0, 0, 1) {
		rollups = append(rollups, a.AggregateDaily(repositoryID, current, prs, reviews, deployments))
	}
	return rollups
}

// MergeDailyRollups combines rollups from multiple repositories by date.
// Averages are weighted by merged PR count, counts are summed.
func MergeDailyRollups(rollups []*activityModel.DailyRollup) []*activityModel.DailyRollup {
	grouped := make(map[string]*activityModel.DailyRollup)

	for _, dm := range rollups {
		dateKey := dm.Date.Format("2006-01-02")
		agg, ok := grouped[dateKey]
		if !ok {
			copied := *dm
			copied.RepositoryID = ""
			grouped[dateKey] = &copied
			continue
		}

		prevMerged := agg.PRsMerged
		newMerged := dm.PRsMerged
		if prevMerged+newMerged > 0 {
			agg.AvgCycleTime = weightedAvg(agg.AvgCycleTime, prevMerged, dm.AvgCycleTime, newMerged)
			agg.AvgCodingTime = weightedAvg(agg.AvgCodingTime, prevMerged, dm.AvgCodingTime, newMerged)
			agg.AvgPickupTime = weightedAvg(agg.AvgPickupTime, prevMerged, dm.AvgPickupTime, newMerged)
			agg.AvgReviewTime = weightedAvg(agg.AvgReviewTime, prevMerged, dm.AvgReviewTime, newMerged)
			agg.AvgMergeTime = weightedAvg(agg.AvgMergeTime, prevMerged, dm.AvgMergeTime, newMerged)
		}

		agg.PRsOpened += dm.PRsOpened
		agg.PRsMerged += dm.PRsMerged
		agg.PRsClosed += dm.PRsClosed
		agg.ReviewsSubmitted += dm.ReviewsSubmitted
		agg.TotalAdditions += dm.TotalAdditions
		agg.TotalDeletions += dm.TotalDeletions
		agg.DeploymentCount += dm.DeploymentCount
		agg.ActiveContributors += dm.ActiveContributors

		if agg.PRsOpened > 0 {
			agg.AvgReviewsPerPR = float64(agg.ReviewsSubmitted) / float64(agg.PRsOpened)
		}
	}

	result := make([]*activityModel.DailyRollup, 0, len(grouped))
	for _, dm := range grouped {
		result = append(result, dm)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})
	return result
}

// CalculateSprintPerformance summarizes activity within one sprint.
func (a *Aggregator) CalculateSprintPerformance(
	sprint *activityModel.Sprint,
	prs []*activityModel.PullRequest,
	reviews []*activityModel.Review,
	now time.Time,
) *metricsModel.SprintPerformance {
	var sprintPRsOpened, sprintPRsMerged []*activityModel.PullRequest
	for _, pr := range prs {
		if !pr.CreatedAt.Before(sprint.StartDate) && !pr.CreatedAt.After(sprint.EndDate) {
			sprintPRsOpened = append(sprintPRsOpened, pr)
		}
		if pr.MergedAt.Valid && !pr.MergedAt.Time.Before(sprint.StartDate) && !pr.MergedAt.Time.After(sprint.EndDate) {
			sprintPRsMerged = append(sprintPRsMerged, pr)
		}
	}

	var sprintReviews []*activityModel.Review
	for _, r := range reviews {
		if !r.SubmittedAt.Before(sprint.StartDate) && !r.SubmittedAt.After(sprint.EndDate) {
			sprintReviews = append(sprintReviews, r)
		}
	}

	cycleTime := a.calculator.CalculateCycleTime(sprintPRsMerged, sprint.StartDate, sprint.EndDate)
	reviewMetrics := a.calculator.CalculateReviewMetrics(sprintReviews, prs, sprint.StartDate, sprint.EndDate)

	totalLines := 0
	for _, pr := range sprintPRsMerged {
		totalLines += pr.Additions + pr.Deletions
	}
	avgPRSize := 0.0
	if len(sprintPRsMerged) > 0 {
		avgPRSize = float64(totalLines) / float64(len(sprintPRsMerged))
	}

	contributors := make(map[string]bool)
	for _, pr := range sprintPRsOpened {
		contributors[pr.Author] = true
	}
	for _, r := range sprintReviews {
		contributors[r.Reviewer] = true
	}

	status := SprintPlanned
	if now.After(sprint.StartDate) && now.Before(sprint.EndDate) {
		status = SprintActive
	} else if now.After(sprint.EndDate) {
		status = SprintCompleted
	}

	return &metricsModel.SprintPerformance{
		SprintID:           sprint.ID,
		SprintName:         sprint.Name,
		StartDate:          sprint.StartDate,
		EndDate:            sprint.EndDate,
		Status:             status,
		PlannedItems:       len(sprintPRsOpened),
		CompletedItems:     len(sprintPRsMerged),
		CompletionRate:     completionRate(len(sprintPRsOpened), len(sprintPRsMerged)),
		PRsOpened:          len(sprintPRsOpened),
		PRsMerged:          len(sprintPRsMerged),
		AvgPRSize:          avgPRSize,
		AvgCycleTime:       cycleTime.AvgCycleTime,
		AvgReviewTime:      reviewMetrics.AvgTimeToFirstReview,
		ActiveContributors: len(contributors),
		ReviewsSubmitted:   len(sprintReviews),
		BurndownData:       a.generateBurndown(sprint, sprintPRsMerged, now),
	}
}

// generateBurndown walks the sprint one day at a time, never past now.
func (a *Aggregator) generateBurndown(sprint *activityModel.Sprint, mergedPRs []*activityModel.PullRequest, now time.Time) []metricsModel.BurndownPoint {
	var points []metricsModel.BurndownPoint

	totalPlanned := len(mergedPRs)
	for current := sprint.StartDate; !current.After(sprint.EndDate) && !current.After(now); current = current.AddDate(0, 0, 1) {
		completed := 0
		for _, pr := range mergedPRs {
			if pr.MergedAt.Valid && !pr.MergedAt.Time.After(current) {
				completed++
			}
		}
		points = append(points, metricsModel.BurndownPoint{
			Date:      current,
			Planned:   totalPlanned,
			Remaining: totalPlanned - completed,
			Completed: completed,
		})
	}
	return points
}

func completionRate(planned, completed int) float64 {
	if planned == 0 {
		return 0
	}
	return float64(completed) / float64(planned) * 100
}

func weightedAvg(val1 float64, weight1 int, val2 float64, weight2 int) float64 {
	total := weight1 + weight2
	if total == 0 {
		return 0
	}
	return (val1*float64(weight1) + val2*float64(weight2)) / float64(total)
}
