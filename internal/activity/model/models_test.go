package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPullRequest_Durations(t *testing.T) {
	created := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)

	t.Run("full lifecycle", func(t *testing.T) {
		pr := &PullRequest{
			CreatedAt:     created,
			FirstCommitAt: TimeAt(created.Add(-4 * time.Hour)),
			FirstReviewAt: TimeAt(created.Add(2 * time.Hour)),
			ApprovedAt:    TimeAt(created.Add(8 * time.Hour)),
			MergedAt:      TimeAt(created.Add(10 * time.Hour)),
		}

		assert.InDelta(t, 14.0, pr.CycleTimeHours(), 1e-9)
		assert.InDelta(t, 4.0, pr.CodingTimeHours(), 1e-9)
		assert.InDelta(t, 2.0, pr.PickupTimeHours(), 1e-9)
		assert.InDelta(t, 6.0, pr.ReviewTimeHours(), 1e-9)
		assert.InDelta(t, 2.0, pr.MergeTimeHours(), 1e-9)
		assert.InDelta(t, 10.0, pr.LeadTimeHours(), 1e-9)
	})

	t.Run("unmerged PR has no cycle or lead time", func(t *testing.T) {
		pr := &PullRequest{
			CreatedAt:     created,
			FirstCommitAt: TimeAt(created.Add(-4 * time.Hour)),
		}

		assert.Zero(t, pr.CycleTimeHours())
		assert.Zero(t, pr.LeadTimeHours())
		assert.Zero(t, pr.MergeTimeHours())
	})

	t.Run("cycle time falls back to creation without commit data", func(t *testing.T) {
		pr := &PullRequest{
			CreatedAt: created,
			MergedAt:  TimeAt(created.Add(30 * time.Hour)),
		}

		assert.InDelta(t, 30.0, pr.CycleTimeHours(), 1e-9)
		assert.Zero(t, pr.CodingTimeHours())
	})

	t.Run("commit after creation does not shift cycle start", func(t *testing.T) {
		pr := &PullRequest{
			CreatedAt:     created,
			FirstCommitAt: TimeAt(created.Add(time.Hour)),
			MergedAt:      TimeAt(created.Add(10 * time.Hour)),
		}

		assert.InDelta(t, 10.0, pr.CycleTimeHours(), 1e-9)
	})

	t.Run("review time needs both review and approval", func(t *testing.T) {
		pr := &PullRequest{
			CreatedAt:     created,
			FirstReviewAt: TimeAt(created.Add(2 * time.Hour)),
		}

		assert.InDelta(t, 2.0, pr.PickupTimeHours(), 1e-9)
		assert.Zero(t, pr.ReviewTimeHours())
	})
}

func TestRollupID(t *testing.T) {
	day := time.Date(2026, 1, 5, 16, 30, 0, 0, time.UTC)

	assert.Equal(t, "api:2026-01-05", RollupID("api", day))
}

func TestSyncLease_Expired(t *testing.T) {
	now := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	lease := &SyncLease{ExpiresAt: now}

	assert.False(t, lease.Expired(now.Add(-time.Second)))
	assert.True(t, lease.Expired(now))
	assert.True(t, lease.Expired(now.Add(time.Second)))
}

func TestCacheRecord_Expired(t *testing.T) {
	created := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	record := &CacheRecord{CreatedAt: created, TTLSec: 60}

	assert.False(t, record.Expired(created.Add(60*time.Second)))
	assert.True(t, record.Expired(created.Add(61*time.Second)))
}
