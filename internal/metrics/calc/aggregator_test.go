package calc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	activityModel "github.com/gitpulse/gitpulse/internal/activity/model"
)

func TestAggregator_AggregateDaily(t *testing.T) {
	a := NewAggregator()
	day := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)

	t.Run("buckets activity into the calendar day", func(t *testing.T) {
		prs := []*activityModel.PullRequest{
			{
				ID: "pr-1", Author: "alice", CreatedAt: day.Add(9 * time.Hour),
				MergedAt:  activityModel.TimeAt(day.Add(15 * time.Hour)),
				Additions: 100, Deletions: 20,
			},
			{
				ID: "pr-2", Author: "bob", CreatedAt: day.Add(-20 * time.Hour),
				ClosedAt: activityModel.TimeAt(day.Add(10 * time.Hour)),
			},
			// Previous day entirely.
			{ID: "pr-3", Author: "carol", CreatedAt: day.Add(-30 * time.Hour)},
		}
		reviews := []*activityModel.Review{
			{ID: "rv-1", Reviewer: "dave", SubmittedAt: day.Add(11 * time.Hour)},
			{ID: "rv-2", Reviewer: "dave", SubmittedAt: day.Add(40 * time.Hour)},
		}
		deployments := []*activityModel.Deployment{
			{ID: "d-1", CreatedAt: day.Add(18 * time.Hour)},
		}

		got := a.AggregateDaily("api", day, prs, reviews, deployments)

		assert.Equal(t, "api:2026-01-10", got.ID)
		assert.Equal(t, day, got.Date)
		assert.Equal(t, 1, got.PRsOpened)
		assert.Equal(t, 1, got.PRsMerged)
		assert.Equal(t, 1, got.PRsClosed)
		assert.Equal(t, 1, got.ReviewsSubmitted)
		assert.Equal(t, 1, got.DeploymentCount)
		assert.Equal(t, 100, got.TotalAdditions)
		assert.Equal(t, 20, got.TotalDeletions)
		// alice opened and merged, dave reviewed.
		assert.Equal(t, 2, got.ActiveContributors)
		assert.InDelta(t, 1.0, got.AvgReviewsPerPR, 1e-9)
	})

	t.Run("idle day produces a zero row", func(t *testing.T) {
		got := a.AggregateDaily("api", day, nil, nil, nil)

		assert.Equal(t, "api:2026-01-10", got.ID)
		assert.Zero(t, got.PRsOpened)
		assert.Zero(t, got.AvgCycleTime)
		assert.Zero(t, got.ActiveContributors)
	})

	t.Run("midnight boundary is half open", func(t *testing.T) {
		prs := []*activityModel.PullRequest{
			{ID: "pr-1", Author: "alice", CreatedAt: day},                     // included
			{ID: "pr-2", Author: "bob", CreatedAt: day.Add(24 * time.Hour)},   // next day
			{ID: "pr-3", Author: "carol", CreatedAt: day.Add(-time.Second)},  // previous day
		}

		got := a.AggregateDaily("api", day, prs, nil, nil)

		assert.Equal(t, 1, got.PRsOpened)
	})
}

func TestAggregator_AggregateRange(t *testing.T) {
	a := NewAggregator()
	start := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 4)

	prs := []*activityModel.PullRequest{
		{ID: "pr-1", Author: "alice", CreatedAt: start.Add(10 * time.Hour)},
	}

	got := a.AggregateRange("api", start, end, prs, nil, nil)

	require.Len(t, got, 5)
	assert.Equal(t, 1, got[0].PRsOpened)
	for _, r := range got[1:] {
		assert.Zero(t, r.PRsOpened)
	}
	assert.Equal(t, "api:2026-01-14", got[4].ID)
}

func TestMergeDailyRollups(t *testing.T) {
	day := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)

	t.Run("weighted averages and summed counts", func(t *testing.T) {
		rollups := []*activityModel.DailyRollup{
			{ID: "a:2026-01-10", RepositoryID: "a", Date: day, AvgCycleTime: 10, PRsMerged: 3, PRsOpened: 4, ReviewsSubmitted: 8, DeploymentCount: 1},
			{ID: "b:2026-01-10", RepositoryID: "b", Date: day, AvgCycleTime: 40, PRsMerged: 1, PRsOpened: 2, ReviewsSubmitted: 1, DeploymentCount: 2},
		}

		got := MergeDailyRollups(rollups)

		require.Len(t, got, 1)
		// (10*3 + 40*1) / 4
		assert.InDelta(t, 17.5, got[0].AvgCycleTime, 1e-9)
		assert.Equal(t, 4, got[0].PRsMerged)
		assert.Equal(t, 6, got[0].PRsOpened)
		assert.Equal(t, 3, got[0].DeploymentCount)
		assert.InDelta(t, 1.5, got[0].AvgReviewsPerPR, 1e-9)
		assert.Empty(t, got[0].RepositoryID)
	})

	t.Run("single repository passes through", func(t *testing.T) {
		rollups := []*activityModel.DailyRollup{
			{ID: "a:2026-01-10", RepositoryID: "a", Date: day, AvgCycleTime: 10, PRsMerged: 3},
		}

		got := MergeDailyRollups(rollups)

		require.Len(t, got, 1)
		assert.InDelta(t, 10.0, got[0].AvgCycleTime, 1e-9)
		assert.Equal(t, 3, got[0].PRsMerged)
	})

	t.Run("sorted by date across repositories", func(t *testing.T) {
		rollups := []*activityModel.DailyRollup{
			{ID: "a:2026-01-12", RepositoryID: "a", Date: day.AddDate(0, 0, 2)},
			{ID: "b:2026-01-10", RepositoryID: "b", Date: day},
			{ID: "a:2026-01-11", RepositoryID: "a", Date: day.AddDate(0, 0, 1)},
		}

		got := MergeDailyRollups(rollups)

		require.Len(t, got, 3)
		assert.True(t, got[0].Date.Before(got[1].Date))
		assert.True(t, got[1].Date.Before(got[2].Date))
	})
}

func TestAggregator_CalculateSprintPerformance(t *testing.T) {
	a := NewAggregator()
	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	sprint := &activityModel.Sprint{
		ID: "sprint-1", Name: "Sprint 1", RepositoryID: "api",
		StartDate: start, EndDate: start.AddDate(0, 0, 14),
	}

	prs := []*activityModel.PullRequest{
		{ID: "pr-1", Author: "alice", CreatedAt: start.Add(24 * time.Hour),
			MergedAt: activityModel.TimeAt(start.Add(72 * time.Hour)), Additions: 80, Deletions: 20},
		{ID: "pr-2", Author: "bob", CreatedAt: start.Add(48 * time.Hour), Additions: 10},
	}
	reviews := []*activityModel.Review{
		{ID: "rv-1", Reviewer: "carol", State: activityModel.ReviewApproved, SubmittedAt: start.Add(60 * time.Hour)},
	}

	t.Run("mid sprint", func(t *testing.T) {
		now := start.AddDate(0, 0, 7)

		got := a.CalculateSprintPerformance(sprint, prs, reviews, now)

		assert.Equal(t, SprintActive, got.Status)
		assert.Equal(t, 2, got.PRsOpened)
		assert.Equal(t, 1, got.PRsMerged)
		assert.InDelta(t, 50.0, got.CompletionRate, 1e-9)
		assert.InDelta(t, 100.0, got.AvgPRSize, 1e-9)
		assert.Equal(t, 3, got.ActiveContributors)
		// Burndown walks only to "now": days 0..7 inclusive.
		require.Len(t, got.BurndownData, 8)
		assert.Equal(t, 1, got.BurndownData[0].Remaining)
		assert.Equal(t, 0, got.BurndownData[7].Remaining)
		assert.Equal(t, 1, got.BurndownData[7].Completed)
	})

	t.Run("after sprint end", func(t *testing.T) {
		got := a.CalculateSprintPerformance(sprint, prs, reviews, start.AddDate(0, 1, 0))

		assert.Equal(t, SprintCompleted, got.Status)
		assert.Len(t, got.BurndownData, 15)
	})

	t.Run("before sprint start", func(t *testing.T) {
		got := a.CalculateSprintPerformance(sprint, nil, nil, start.AddDate(0, 0, -3))

		assert.Equal(t, SprintPlanned, got.Status)
		assert.Empty(t, got.BurndownData)
	})
}
