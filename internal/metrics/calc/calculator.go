// Package calc computes engineering metrics from stored activity. Every
// function here is pure: inputs in, values out, no storage or clock access
// beyond the window bounds passed by the caller.
package calc

import (
	"sort"
	"time"

	activityModel "github.com/gitpulse/gitpulse/internal/activity/model"
	metricsModel "github.com/gitpulse/gitpulse/internal/metrics/model"
)

// Productivity score component weights.
const (
	cycleTimeWeight  = 0.30
	reviewWeight     = 0.25
	deploymentWeight = 0.25
	qualityWeight    = 0.20
)

// Calculator computes metrics over activity windows.
type Calculator struct{}

// NewCalculator creates a new Calculator.
func NewCalculator() *Calculator {
	return &Calculator{}
}

// CalculateCycleTime computes cycle time metrics for PRs merged within
// [startDate, endDate]. Durations that cannot be derived (missing
// timestamps) are excluded from averages rather than counted as zero.
func (c *Calculator) CalculateCycleTime(prs []*activityModel.PullRequest, startDate, endDate time.Time) *metricsModel.CycleTimeMetrics {
	var mergedPRs []*activityModel.PullRequest
	for _, pr := range prs {
		if pr.MergedAt.Valid && !pr.MergedAt.Time.Before(startDate) && !pr.MergedAt.Time.After(endDate) {
			mergedPRs = append(mergedPRs, pr)
		}
	}

	if len(mergedPRs) == 0 {
		return &metricsModel.CycleTimeMetrics{
			Period:    "custom",
			StartDate: startDate,
			EndDate:   endDate,
		}
	}

	var cycleTimes, codingTimes, pickupTimes, reviewTimes, mergeTimes []float64
	authorMetricsMap := make(map[string]*metricsModel.AuthorMetrics)

	for _, pr := range mergedPRs {
		cycleTime := pr.CycleTimeHours()
		appendPositive(&cycleTimes, cycleTime)
		appendPositive(&codingTimes, pr.CodingTimeHours())
		appendPositive(&pickupTimes, pr.PickupTimeHours())
		appendPositive(&reviewTimes, pr.ReviewTimeHours())
		appendPositive(&mergeTimes, pr.MergeTimeHours())

		am, ok := authorMetricsMap[pr.Author]
		if !ok {
			am = &metricsModel.AuthorMetrics{Author: pr.Author}
			authorMetricsMap[pr.Author] = am
		}
		am.PRCount++
		am.Additions += pr.Additions
		am.Deletions += pr.Deletions
		if cycleTime > 0 {
			am.AvgCycleTime += cycleTime
		}
	}

	authorMetrics := make([]metricsModel.AuthorMetrics, 0, len(authorMetricsMap))
	for _, am := range authorMetricsMap {
		if am.PRCount > 0 {
			am.AvgCycleTime /= float64(am.PRCount)
		}
		authorMetrics = append(authorMetrics, *am)
	}
	sort.Slice(authorMetrics, func(i, j int) bool {
		return authorMetrics[i].PRCount > authorMetrics[j].PRCount
	})

	return &metricsModel.CycleTimeMetrics{
		Period:          "custom",
		StartDate:       startDate,
		EndDate:         endDate,
		TotalPRs:        len(mergedPRs),
		AvgCycleTime:    average(cycleTimes),
		AvgCodingTime:   average(codingTimes),
		AvgPickupTime:   average(pickupTimes),
		AvgReviewTime:   average(reviewTimes),
		AvgMergeTime:    average(mergeTimes),
		MedianCycleTime: median(cycleTimes),
		P90CycleTime:    percentile(cycleTimes, 90),
		ByAuthor:        authorMetrics,
		ByFileExtension: c.aggregateFileExtMetrics(mergedPRs),
	}
}

// CalculateReviewMetrics computes review behavior for reviews submitted
// within [startDate, endDate]. Time-to-first-review draws on the full PR set
// so PRs merged outside the window still contribute.
func (c *Calculator) CalculateReviewMetrics(reviews []*activityModel.Review, prs []*activityModel.PullRequest, startDate, endDate time.Time) *metricsModel.ReviewMetrics {
	var filtered []*activityModel.Review
	for _, review := range reviews {
		if !review.SubmittedAt.Before(startDate) && !review.SubmittedAt.After(endDate) {
			filtered = append(filtered, review)
		}
	}

	if len(filtered) == 0 {
		return &metricsModel.ReviewMetrics{
			Period:    "custom",
			StartDate: startDate,
			EndDate:   endDate,
		}
	}

	totalComments := 0
	approvedCount := 0
	changesRequestedCount := 0
	reviewerStatsMap := make(map[string]*metricsModel.ReviewerStats)

	for _, review := range filtered {
		totalComments += review.CommentsCount

		switch review.State {
		case activityModel.ReviewApproved:
			approvedCount++
		case activityModel.ReviewChangesRequested:
			changesRequestedCount++
		}

		rs, ok := reviewerStatsMap[review.Reviewer]
		if !ok {
			rs = &metricsModel.ReviewerStats{Reviewer: review.Reviewer}
			reviewerStatsMap[review.Reviewer] = rs
		}
		rs.ReviewCount++
		rs.CommentCount += review.CommentsCount
		if review.State == activityModel.ReviewApproved {
			rs.ApprovalRate++
		}
	}

	reviewerStats := make([]metricsModel.ReviewerStats, 0, len(reviewerStatsMap))
	for _, rs := range reviewerStatsMap {
		if rs.ReviewCount > 0 {
			rs.ApprovalRate = (rs.ApprovalRate / float64(rs.ReviewCount)) * 100
		}
		reviewerStats = append(reviewerStats, *rs)
	}
	sort.Slice(reviewerStats, func(i, j int) bool {
		return reviewerStats[i].ReviewCount > reviewerStats[j].ReviewCount
	})

	var timeToFirstReviews []float64
	for _, pr := range prs {
		if pr.FirstReviewAt.Valid {
			appendPositive(&timeToFirstReviews, pr.FirstReviewAt.Time.Sub(pr.CreatedAt).Hours())
		}
	}

	prReviewCount := make(map[string]int)
	for _, review := range filtered {
		prReviewCount[review.PullRequestID]++
	}
	reviewsPerPR := make([]float64, 0, len(prReviewCount))
	for _, count := range prReviewCount {
		reviewsPerPR = append(reviewsPerPR, float64(count))
	}

	totalReviews := len(filtered)

	return &metricsModel.ReviewMetrics{
		Period:               "custom",
		StartDate:            startDate,
		EndDate:              endDate,
		TotalReviews:         totalReviews,
		TotalComments:        totalComments,
		AvgReviewsPerPR:      average(reviewsPerPR),
		AvgCommentsPerReview: float64(totalComments) / float64(totalReviews),
		AvgTimeToFirstReview: average(timeToFirstReviews),
		ApprovalRate:         float64(approvedCount) / float64(totalReviews) * 100,
		ChangesRequestedRate: float64(changesRequestedCount) / float64(totalReviews) * 100,
		ByReviewer:           reviewerStats,
	}
}

// CalculateDeliveryMetrics computes deployment cadence and change outcomes
// for [startDate, endDate]. The change failure rate is the share of
// deployments whose latest status reports failure or error.
func (c *Calculator) CalculateDeliveryMetrics(prs []*activityModel.PullRequest, deployments []*activityModel.Deployment, startDate, endDate time.Time) *metricsModel.DeliveryMetrics {
	var filteredDeployments []*activityModel.Deployment
	for _, d := range deployments {
		if !d.CreatedAt.Before(startDate) && !d.CreatedAt.After(endDate) {
			filteredDeployments = append(filteredDeployments, d)
		}
	}

	days := endDate.Sub(startDate).Hours() / 24
	if days == 0 {
		days = 1
	}

	deploymentCount := len(filteredDeployments)
	avgDeploysPerDay := float64(deploymentCount) / days

	var deploymentFrequency string
	switch {
	case avgDeploysPerDay >= 1:
		deploymentFrequency = metricsModel.FrequencyDaily
	case avgDeploysPerDay >= 1.0/7:
		deploymentFrequency = metricsModel.FrequencyWeekly
	case avgDeploysPerDay >= 1.0/30:
		deploymentFrequency = metricsModel.FrequencyMonthly
	default:
		deploymentFrequency = metricsModel.FrequencyYearly
	}

	var leadTimes []float64
	totalChanges := 0
	for _, pr := range prs {
		if pr.MergedAt.Valid && !pr.MergedAt.Time.Before(startDate) && !pr.MergedAt.Time.After(endDate) {
			totalChanges++
			appendPositive(&leadTimes, pr.LeadTimeHours())
		}
	}

	failedDeployments := 0
	for _, d := range filteredDeployments {
		if d.Status == activityModel.DeployStatusFailure || d.Status == activityModel.DeployStatusError {
			failedDeployments++
		}
	}
	changeFailureRate := 0.0
	if deploymentCount > 0 {
		changeFailureRate = float64(failedDeployments) / float64(deploymentCount) * 100
	}

	return &metricsModel.DeliveryMetrics{
		Period:              "custom",
		StartDate:           startDate,
		EndDate:             endDate,
		DeploymentCount:     deploymentCount,
		DeploymentFrequency: deploymentFrequency,
		AvgDeploysPerDay:    avgDeploysPerDay,
		AvgLeadTime:         average(leadTimes),
		MedianLeadTime:      median(leadTimes),
		P90LeadTime:         percentile(leadTimes, 90),
		TotalChanges:        totalChanges,
		FailedDeployments:   failedDeployments,
		ChangeFailureRate:   changeFailureRate,
	}
}

// CalculateProductivityScore combines the three metric families into a
// weighted 0-100 composite.
func (c *Calculator) CalculateProductivityScore(
	cycleTime *metricsModel.CycleTimeMetrics,
	reviews *metricsModel.ReviewMetrics,
	delivery *metricsModel.DeliveryMetrics,
) *metricsModel.ProductivityScore {
	cycleTimeScore := scoreCycleTime(cycleTime.P90CycleTime)
	reviewScore := scoreReview(reviews)
	deploymentScore := scoreDeployment(delivery)
	qualityScore := scoreQuality(delivery.ChangeFailureRate)

	overallScore := cycleTimeScore*cycleTimeWeight +
		reviewScore*reviewWeight +
		deploymentScore*deploymentWeight +
		qualityScore*qualityWeight

	var recommendations []string
	if cycleTimeScore < 60 {
		recommendations = append(recommendations, "Consider breaking down PRs into smaller, more manageable pieces")
	}
	if reviewScore < 60 {
		recommendations = append(recommendations, "Review response time could be improved - consider setting review SLAs")
	}
	if deploymentScore < 60 {
		recommendations = append(recommendations, "Increase deployment frequency through automation and CI/CD improvements")
	}
	if qualityScore < 60 {
		recommendations = append(recommendations, "Focus on reducing change failure rate through better testing")
	}

	return &metricsModel.ProductivityScore{
		Period:          "custom",
		OverallScore:    overallScore,
		CycleTimeScore:  cycleTimeScore,
		ReviewScore:     reviewScore,
		DeploymentScore: deploymentScore,
		QualityScore:    qualityScore,
		TrendDirection:  "stable",
		Recommendations: recommendations,
		ComponentScores: []metricsModel.ComponentScore{
			{Name: "Cycle Time", Score: cycleTimeScore, Weight: cycleTimeWeight, Description: "Time from first commit to merge"},
			{Name: "Review Efficiency", Score: reviewScore, Weight: reviewWeight, Description: "Code review speed and quality"},
			{Name: "Deployment Frequency", Score: deploymentScore, Weight: deploymentWeight, Description: "How often code is deployed"},
			{Name: "Change Quality", Score: qualityScore, Weight: qualityWeight, Description: "Success rate of changes"},
		},
	}
}

func (c *Calculator) aggregateFileExtMetrics(prs []*activityModel.PullRequest) []metricsModel.FileExtensionMetrics {
	type extAgg struct {
		additions int
		deletions int
		files     int
		prCount   int
	}
	m := make(map[string]*extAgg)

	for _, pr := range prs {
		// A PR counts once per extension it touches.
		seen := make(map[string]bool)
		for _, fs := range pr.FileExtStats {
			a, ok := m[fs.Extension]
			if !ok {
				a = &extAgg{}
				m[fs.Extension] = a
			}
			a.additions += fs.Additions
			a.deletions += fs.Deletions
			a.files += fs.Files
			if !seen[fs.Extension] {
				a.prCount++
				seen[fs.Extension] = true
			}
		}
	}

	result := make([]metricsModel.FileExtensionMetrics, 0, len(m))
	for ext, a := range m {
		result = append(result, metricsModel.FileExtensionMetrics{
			Extension: ext,
			Additions: a.additions,
			Deletions: a.deletions,
			Files:     a.files,
			PRCount:   a.prCount,
		})
	}
	sort.Slice(result, func(i, j int) bool {
		return (result[i].Additions + result[i].Deletions) > (result[j].Additions + result[j].Deletions)
	})
	return result
}

// scoreCycleTime grades the slow tail of the cycle-time distribution, so one
// long-lived PR drags the score even when the average looks healthy.
func scoreCycleTime(p90Hours float64) float64 {
	switch {
	case p90Hours <= 24:
		return 100
	case p90Hours <= 72:
		return 80
	case p90Hours <= 168:
		return 60
	case p90Hours <= 336:
		return 40
	default:
		return 20
	}
}

func scoreReview(metrics *metricsModel.ReviewMetrics) float64 {
	score := 50.0

	// Target: first review within 4h.
	switch {
	case metrics.AvgTimeToFirstReview <= 4:
		score += 25
	case metrics.AvgTimeToFirstReview <= 8:
		score += 15
	case metrics.AvgTimeToFirstReview <= 24:
		score += 5
	}

	// Target: 1-3 reviews per PR.
	if metrics.AvgReviewsPerPR >= 1 && metrics.AvgReviewsPerPR <= 3 {
		score += 25
	} else if metrics.AvgReviewsPerPR > 0 {
		score += 10
	}

	if score > 100 {
		score = 100
	}
	return score
}

func scoreDeployment(metrics *metricsModel.DeliveryMetrics) float64 {
	switch metrics.DeploymentFrequency {
	case metricsModel.FrequencyDaily:
		return 100
	case metricsModel.FrequencyWeekly:
		return 75
	case metricsModel.FrequencyMonthly:
		return 50
	default:
		return 25
	}
}

func scoreQuality(changeFailureRate float64) float64 {
	switch {
	case changeFailureRate <= 5:
		return 100
	case changeFailureRate <= 10:
		return 80
	case changeFailureRate <= 15:
		return 60
	case changeFailureRate <= 30:
		return 40
	default:
		return 20
	}
}

func appendPositive(dst *[]float64, v float64) {
	if v > 0 {
		*dst = append(*dst, v)
	}
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

// percentile interpolates linearly between the two closest ranks.
func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	index := (p / 100) * float64(len(sorted)-1)
	lower := int(index)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[lower]
	}
	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}
