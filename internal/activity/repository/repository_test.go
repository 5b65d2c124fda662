package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	activityModel "github.com/gitpulse/gitpulse/internal/activity/model"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&activityModel.Repository{},
		&activityModel.PullRequest{},
		&activityModel.Review{},
		&activityModel.Deployment{},
		&activityModel.Member{},
		&activityModel.BotUser{},
		&activityModel.Sprint{},
		&activityModel.DailyRollup{},
		&activityModel.SyncLease{},
		&activityModel.CacheRecord{},
	)
	require.NoError(t, err)

	return db
}

func newTestStore(t *testing.T) Store {
	return New(setupTestDB(t), zap.NewNop().Sugar())
}

func testRepo(id string) *activityModel.Repository {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	return &activityModel.Repository{
		ID:        id,
		Owner:     "acme",
		Name:      id,
		FullName:  "acme/" + id,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestRepository_SaveAndGet(t *testing.T) {
	ctx := context.Background()

	t.Run("save then get", func(t *testing.T) {
		store := newTestStore(t)

		require.NoError(t, store.SaveRepository(ctx, testRepo("api")))

		got, err := store.GetRepository(ctx, "api")
		require.NoError(t, err)
		assert.Equal(t, "acme/api", got.FullName)
		assert.False(t, got.LastSyncedAt.Valid)
	})

	t.Run("save is an upsert", func(t *testing.T) {
		store := newTestStore(t)

		require.NoError(t, store.SaveRepository(ctx, testRepo("api")))
		updated := testRepo("api")
		updated.Private = true
		require.NoError(t, store.SaveRepository(ctx, updated))

		got, err := store.GetRepository(ctx, "api")
		require.NoError(t, err)
		assert.True(t, got.Private)

		repos, err := store.ListRepositories(ctx)
		require.NoError(t, err)
		assert.Len(t, repos, 1)
	})

	t.Run("not found", func(t *testing.T) {
		store := newTestStore(t)

		got, err := store.GetRepository(ctx, "missing")

		assert.Nil(t, got)
		assert.ErrorIs(t, err, activityModel.ErrRepositoryNotFound)
	})
}

func TestRepository_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		store := newTestStore(t)
		require.NoError(t, store.SaveRepository(ctx, testRepo("api")))

		require.NoError(t, store.DeleteRepository(ctx, "api"))

		_, err := store.GetRepository(ctx, "api")
		assert.ErrorIs(t, err, activityModel.ErrRepositoryNotFound)
	})

	t.Run("missing repository", func(t *testing.T) {
		store := newTestStore(t)

		err := store.DeleteRepository(ctx, "missing")

		assert.ErrorIs(t, err, activityModel.ErrRepositoryNotFound)
	})
}

func TestRepository_SyncMarkers(t *testing.T) {
	ctx := context.Background()

	t.Run("records start and completion", func(t *testing.T) {
		store := newTestStore(t)
		require.NoError(t, store.SaveRepository(ctx, testRepo("api")))
		started := time.Date(2026, 1, 11, 9, 0, 0, 0, time.UTC)
		finished := started.Add(2 * time.Minute)

		require.NoError(t, store.MarkSyncStarted(ctx, "api", started))
		require.NoError(t, store.MarkSynced(ctx, "api", finished))

		got, err := store.GetRepository(ctx, "api")
		require.NoError(t, err)
		assert.True(t, got.SyncStartedAt.Valid)
		assert.True(t, got.LastSyncedAt.Valid)
		assert.Equal(t, finished.Unix(), got.LastSyncedAt.Time.Unix())
	})

	t.Run("missing repository", func(t *testing.T) {
		store := newTestStore(t)

		err := store.MarkSynced(ctx, "missing", time.Now())

		assert.ErrorIs(t, err, activityModel.ErrRepositoryNotFound)
	})
}

func TestRepository_PullRequests(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)

	pr := func(id string, createdAt time.Time) *activityModel.PullRequest {
		return &activityModel.PullRequest{
			ID:           id,
			RepositoryID: "api",
			Number:       1,
			Author:       "alice",
			State:        "open",
			CreatedAt:    createdAt,
			UpdatedAt:    createdAt,
		}
	}

	t.Run("range query is inclusive and scoped to repository", func(t *testing.T) {
		store := newTestStore(t)
		require.NoError(t, store.SavePullRequests(ctx, []*activityModel.PullRequest{
			pr("pr-1", base),
			pr("pr-2", base.AddDate(0, 0, 3)),
			pr("pr-3", base.AddDate(0, 0, 10)),
		}))
		other := pr("pr-other", base)
		other.RepositoryID = "web"
		require.NoError(t, store.SavePullRequests(ctx, []*activityModel.PullRequest{other}))

		got, err := store.ListPullRequestsByRange(ctx, "api", base, base.AddDate(0, 0, 3))
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "pr-2", got[0].ID)
		assert.Equal(t, "pr-1", got[1].ID)
	})

	t.Run("re-saving updates in place", func(t *testing.T) {
		store := newTestStore(t)
		require.NoError(t, store.SavePullRequests(ctx, []*activityModel.PullRequest{pr("pr-1", base)}))

		merged := pr("pr-1", base)
		merged.State = "merged"
		merged.MergedAt = activityModel.TimeAt(base.Add(30 * time.Hour))
		merged.FileExtStats = []activityModel.FileExtStat{{Extension: ".go", Additions: 10, Files: 2}}
		require.NoError(t, store.SavePullRequests(ctx, []*activityModel.PullRequest{merged}))

		got, err := store.ListPullRequestsByRange(ctx, "api", base, base.Add(time.Hour))
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "merged", got[0].State)
		assert.True(t, got[0].MergedAt.Valid)
		require.Len(t, got[0].FileExtStats, 1)
		assert.Equal(t, ".go", got[0].FileExtStats[0].Extension)
	})

	t.Run("empty batch is a no-op", func(t *testing.T) {
		store := newTestStore(t)

		assert.NoError(t, store.SavePullRequests(ctx, nil))
	})
}

func TestRepository_ReviewsAndDeployments(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)

	t.Run("reviews by range", func(t *testing.T) {
		store := newTestStore(t)
		require.NoError(t, store.SaveReviews(ctx, []*activityModel.Review{
			{ID: "rv-1", PullRequestID: "pr-1", RepositoryID: "api", Reviewer: "bob", State: activityModel.ReviewApproved, SubmittedAt: base},
			{ID: "rv-2", PullRequestID: "pr-1", RepositoryID: "api", Reviewer: "carol", State: activityModel.ReviewCommented, SubmittedAt: base.AddDate(0, 0, 9)},
		}))

		got, err := store.ListReviewsByRange(ctx, "api", base, base.AddDate(0, 0, 5))
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "rv-1", got[0].ID)
	})

	t.Run("deployments by range", func(t *testing.T) {
		store := newTestStore(t)
		require.NoError(t, store.SaveDeployments(ctx, []*activityModel.Deployment{
			{ID: "dep-1", RepositoryID: "api", Environment: "production", Status: activityModel.DeployStatusSuccess, CreatedAt: base},
			{ID: "dep-2", RepositoryID: "api", Environment: "production", Status: activityModel.DeployStatusFailure, CreatedAt: base.AddDate(0, 0, 1)},
		}))

		got, err := store.ListDeploymentsByRange(ctx, "api", base, base.AddDate(0, 0, 2))
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})
}

func TestRepository_BotUsers(t *testing.T) {
	ctx := context.Background()

	t.Run("save list delete", func(t *testing.T) {
		store := newTestStore(t)

		require.NoError(t, store.SaveBotUser(ctx, &activityModel.BotUser{Username: "ci-runner", CreatedAt: time.Now()}))
		require.NoError(t, store.SaveBotUser(ctx, &activityModel.BotUser{Username: "auto-merge", CreatedAt: time.Now()}))

		names, err := store.ListBotUsernames(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"auto-merge", "ci-runner"}, names)

		require.NoError(t, store.DeleteBotUser(ctx, "ci-runner"))
		names, err = store.ListBotUsernames(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"auto-merge"}, names)
	})

	t.Run("duplicate username", func(t *testing.T) {
		store := newTestStore(t)
		require.NoError(t, store.SaveBotUser(ctx, &activityModel.BotUser{Username: "ci-runner", CreatedAt: time.Now()}))

		err := store.SaveBotUser(ctx, &activityModel.BotUser{Username: "ci-runner", CreatedAt: time.Now()})

		assert.ErrorIs(t, err, activityModel.ErrBotUserExists)
	})
}

func TestRepository_Sprints(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	store := New(db, zap.NewNop().Sugar())

	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	require.NoError(t, db.Create(&activityModel.Sprint{
		ID: "sprint-1", RepositoryID: "api", Name: "Sprint 1",
		StartDate: start, EndDate: start.AddDate(0, 0, 14),
	}).Error)
	require.NoError(t, db.Create(&activityModel.Sprint{
		ID: "sprint-2", RepositoryID: "api", Name: "Sprint 2",
		StartDate: start.AddDate(0, 0, 14), EndDate: start.AddDate(0, 0, 28),
	}).Error)

	t.Run("get", func(t *testing.T) {
		got, err := store.GetSprint(ctx, "sprint-1")
		require.NoError(t, err)
		assert.Equal(t, "Sprint 1", got.Name)
	})

	t.Run("get missing", func(t *testing.T) {
		_, err := store.GetSprint(ctx, "missing")
		assert.ErrorIs(t, err, activityModel.ErrSprintNotFound)
	})

	t.Run("list newest first", func(t *testing.T) {
		got, err := store.ListSprints(ctx, "api")
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "sprint-2", got[0].ID)
	})

	t.Run("save upserts", func(t *testing.T) {
		sprint := &activityModel.Sprint{
			ID: "sprint-1", RepositoryID: "api", Name: "Sprint 1 (replanned)",
			StartDate: start, EndDate: start.AddDate(0, 0, 21),
			Goals: "ship the metrics API",
		}
		require.NoError(t, store.SaveSprint(ctx, sprint))

		got, err := store.GetSprint(ctx, "sprint-1")
		require.NoError(t, err)
		assert.Equal(t, "Sprint 1 (replanned)", got.Name)
		assert.Equal(t, "ship the metrics API", got.Goals)

		all, err := store.ListSprints(ctx, "api")
		require.NoError(t, err)
		assert.Len(t, all, 2)
	})
}

func TestRepository_DailyRollups(t *testing.T) {
	ctx := context.Background()
	day := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

	rollup := func(d time.Time, merged int) *activityModel.DailyRollup {
		return &activityModel.DailyRollup{
			ID:           activityModel.RollupID("api", d),
			RepositoryID: "api",
			Date:         d,
			PRsMerged:    merged,
		}
	}

	t.Run("re-sync overwrites the same day", func(t *testing.T) {
		store := newTestStore(t)
		require.NoError(t, store.SaveDailyRollups(ctx, []*activityModel.DailyRollup{rollup(day, 1)}))
		require.NoError(t, store.SaveDailyRollups(ctx, []*activityModel.DailyRollup{rollup(day, 4)}))

		got, err := store.ListDailyRollups(ctx, "api", day, day)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, 4, got[0].PRsMerged)
	})

	t.Run("range ordered by date", func(t *testing.T) {
		store := newTestStore(t)
		require.NoError(t, store.SaveDailyRollups(ctx, []*activityModel.DailyRollup{
			rollup(day.AddDate(0, 0, 2), 2),
			rollup(day, 1),
			rollup(day.AddDate(0, 0, 5), 3),
		}))

		got, err := store.ListDailyRollups(ctx, "api", day, day.AddDate(0, 0, 2))
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, 1, got[0].PRsMerged)
		assert.Equal(t, 2, got[1].PRsMerged)
	})
}
