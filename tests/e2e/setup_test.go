//go:build e2e
// +build e2e

package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	postgresDriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	activityModel "github.com/gitpulse/gitpulse/internal/activity/model"
	activityRepository "github.com/gitpulse/gitpulse/internal/activity/repository"
	"github.com/gitpulse/gitpulse/internal/cache"
	"github.com/gitpulse/gitpulse/internal/collector"
	"github.com/gitpulse/gitpulse/internal/config"
	"github.com/gitpulse/gitpulse/internal/database/migrate"
	"github.com/gitpulse/gitpulse/internal/health"
	metricsRouter "github.com/gitpulse/gitpulse/internal/metrics/router"
	registryRouter "github.com/gitpulse/gitpulse/internal/registry/router"
	registryService "github.com/gitpulse/gitpulse/internal/registry/service"
	syncjobModel "github.com/gitpulse/gitpulse/internal/syncjob/model"
	syncjobRouter "github.com/gitpulse/gitpulse/internal/syncjob/router"
)

// stubGitHub resolves repositories from a fixed map instead of the GitHub API.
// Safe for concurrent use by server goroutines.
type stubGitHub struct {
	mu    sync.Mutex
	repos map[string]*activityModel.Repository
}

func (s *stubGitHub) set(fullName string, repo *activityModel.Repository) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.repos[fullName] = repo
}

func (s *stubGitHub) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.repos = make(map[string]*activityModel.Repository)
}

func (s *stubGitHub) GetRepository(_ context.Context, owner, repo string) (*activityModel.Repository, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.repos[owner+"/"+repo]
	if !ok {
		return nil, fmt.Errorf("repository %s/%s not found", owner, repo)
	}
	return r, nil
}

// stubCollector returns canned activity data keyed by full name.
type stubCollector struct {
	mu   sync.Mutex
	data map[string]*collector.CollectedData
}

func (s *stubCollector) set(fullName string, d *collector.CollectedData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[fullName] = d
}

func (s *stubCollector) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[string]*collector.CollectedData)
}

func (s *stubCollector) CollectAll(_ context.Context, owner, repo string, _ *collector.CollectOptions) (*collector.CollectedData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.data[owner+"/"+repo]
	if !ok {
		return nil, fmt.Errorf("no collected data for %s/%s", owner, repo)
	}
	return d, nil
}

// E2ETestSuite runs the full HTTP surface against a containerized PostgreSQL
// with the real migration path. GitHub access is stubbed; everything below the
// collector boundary is the production wiring.
type E2ETestSuite struct {
	suite.Suite
	ctx         context.Context
	pgContainer *postgres.PostgresContainer
	db          *gorm.DB
	server      *httptest.Server
	baseURL     string
	httpClient  *http.Client
	cacheSvc    *cache.Service
	gh          *stubGitHub
	dc          *stubCollector
}

// SetupSuite runs once before all tests
func (s *E2ETestSuite) SetupSuite() {
	s.ctx = context.Background()

	pgContainer, err := postgres.Run(s.ctx,
		"postgres:12-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(s.T(), err, "failed to start PostgreSQL container")
	s.pgContainer = pgContainer

	connStr, err := pgContainer.ConnectionString(s.ctx, "sslmode=disable")
	require.NoError(s.T(), err, "failed to get connection string")

	db, err := gorm.Open(postgresDriver.Open(connStr), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(s.T(), err, "failed to connect to database")
	s.db = db

	// Apply the real migration files, same path the server takes on boot.
	s.T().Setenv("MIGRATIONS_PATH", "../../migrations")
	require.NoError(s.T(), migrate.Migrate(db), "failed to apply migrations")
	s.verifyMigrations()

	s.gh = &stubGitHub{repos: make(map[string]*activityModel.Repository)}
	s.dc = &stubCollector{data: make(map[string]*collector.CollectedData)}

	cfg := config.Config{
		GitHub: config.GitHubConfig{PerPage: 100, MaxPages: 10},
		Sync: config.SyncConfig{
			Interval:     time.Hour,
			LockTTL:      10 * time.Minute,
			ProcessGuard: 10 * time.Minute,
		},
		Cache:   config.CacheConfig{TTL: time.Minute, SweepInterval: time.Minute},
		GinMode: "test",
	}

	log := zap.NewNop().Sugar()
	store := activityRepository.New(db, log)
	s.cacheSvc = cache.NewService(cfg.Cache, store, log)
	s.cacheSvc.Start()

	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.GET("/health", health.New(db, log).Check)

	api := engine.Group("/api/v1")
	syncjobRouter.RegisterRoutes(api, db, s.dc, s.cacheSvc, cfg, log)
	registryRouter.RegisterRoutes(api, db, s.gh, s.dc, s.cacheSvc, cfg, log)

	cached := api.Group("", s.cacheSvc.Middleware())
	metricsRouter.RegisterRoutes(cached, db, log)

	s.server = httptest.NewServer(engine)
	s.baseURL = s.server.URL
	s.httpClient = &http.Client{Timeout: 30 * time.Second}

	s.waitForApp()
}

// TearDownSuite runs once after all tests
func (s *E2ETestSuite) TearDownSuite() {
	if s.server != nil {
		s.server.Close()
	}
	if s.cacheSvc != nil {
		s.cacheSvc.Stop()
	}
	if s.pgContainer != nil {
		_ = s.pgContainer.Terminate(s.ctx)
	}
}

// SetupTest runs before each test
func (s *E2ETestSuite) SetupTest() {
	s.cleanDatabase()
	s.gh.reset()
	s.dc.reset()
	s.cacheSvc.InvalidateAll(s.ctx)
}

// cleanDatabase truncates all tables
func (s *E2ETestSuite) cleanDatabase() {
	tables := []string{
		"cache_records", "sync_leases", "daily_rollups", "sprints",
		"bot_users", "members", "deployments", "reviews",
		"pull_requests", "repositories",
	}
	for _, table := range tables {
		s.db.Exec("TRUNCATE TABLE " + table + " CASCADE")
	}
}

// verifyMigrations checks that the migration files created every table.
func (s *E2ETestSuite) verifyMigrations() {
	tables := []string{
		"repositories", "pull_requests", "reviews", "deployments",
		"members", "bot_users", "sprints", "daily_rollups",
		"sync_leases", "cache_records",
	}
	for _, table := range tables {
		var exists bool
		err := s.db.Raw(`
			SELECT EXISTS (
				SELECT FROM information_schema.tables
				WHERE table_schema = 'public'
				AND table_name = ?
			)`, table).Scan(&exists).Error
		require.NoError(s.T(), err, "failed to check if table %s exists", table)
		require.True(s.T(), exists, "table %s does not exist after migrations", table)
	}
}

// waitForApp waits for the server to report healthy
func (s *E2ETestSuite) waitForApp() {
	maxRetries := 30
	for i := 0; i < maxRetries; i++ {
		resp, err := s.httpClient.Get(s.baseURL + "/health")
		if err == nil && resp.StatusCode == http.StatusOK {
			resp.Body.Close()
			return
		}
		if resp != nil {
			resp.Body.Close()
		}
		time.Sleep(1 * time.Second)
	}
	s.T().Fatal("server did not become ready in time")
}

// Helper methods for HTTP requests

// doRequest performs HTTP request and returns response
func (s *E2ETestSuite) doRequest(method, path string, body io.Reader) (*http.Response, []byte) {
	req, err := http.NewRequest(method, s.baseURL+path, body)
	require.NoError(s.T(), err, "failed to create request")

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	require.NoError(s.T(), err, "failed to perform request")

	respBody, err := io.ReadAll(resp.Body)
	require.NoError(s.T(), err, "failed to read response body")
	resp.Body.Close()

	return resp, respBody
}

// doRequestNoFail performs HTTP request and returns response with error.
// Safe to use in goroutines as it doesn't call require/assert.
func (s *E2ETestSuite) doRequestNoFail(method, path string, body io.Reader) (*http.Response, []byte, error) {
	req, err := http.NewRequest(method, s.baseURL+path, body)
	if err != nil {
		return nil, nil, err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}

	respBody, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return resp, nil, err
	}

	return resp, respBody, nil
}

// seedRepo makes a repository resolvable on the stubbed GitHub side, with
// canned activity data for collection.
func (s *E2ETestSuite) seedRepo(id, owner, name string) *activityModel.Repository {
	repo := &activityModel.Repository{
		ID:        id,
		Owner:     owner,
		Name:      name,
		FullName:  owner + "/" + name,
		CreatedAt: time.Now().UTC().AddDate(-1, 0, 0),
		UpdatedAt: time.Now().UTC(),
	}
	s.gh.set(repo.FullName, repo)
	s.dc.set(repo.FullName, collectedFor(repo))
	return repo
}

// collectedFor builds a small but complete activity fixture: one merged PR
// with a full timestamp trail, one open PR, a review, a deployment and two
// contributors.
func collectedFor(repo *activityModel.Repository) *collector.CollectedData {
	now := time.Now().UTC()
	created := now.Add(-48 * time.Hour)
	return &collector.CollectedData{
		Repository: repo,
		PullRequests: []*activityModel.PullRequest{
			{
				ID:            repo.ID + ":1",
				RepositoryID:  repo.ID,
				Number:        1,
				Title:         "Add activity endpoints",
				Author:        "alice",
				State:         "merged",
				CreatedAt:     created,
				UpdatedAt:     now,
				FirstCommitAt: activityModel.TimeAt(created.Add(-2 * time.Hour)),
				FirstReviewAt: activityModel.TimeAt(created.Add(4 * time.Hour)),
				ApprovedAt:    activityModel.TimeAt(created.Add(6 * time.Hour)),
				MergedAt:      activityModel.TimeAt(created.Add(8 * time.Hour)),
				Additions:     120,
				Deletions:     30,
				ChangedFiles:  4,
				CommitCount:   3,
				FileExtStats: []activityModel.FileExtStat{
					{Extension: ".go", Additions: 110, Deletions: 25, Files: 3},
					{Extension: ".md", Additions: 10, Deletions: 5, Files: 1},
				},
			},
			{
				ID:           repo.ID + ":2",
				RepositoryID: repo.ID,
				Number:       2,
				Title:        "Fix pagination",
				Author:       "bob",
				State:        "open",
				CreatedAt:    now.Add(-6 * time.Hour),
				UpdatedAt:    now,
				Additions:    10,
				Deletions:    2,
				ChangedFiles: 1,
				CommitCount:  1,
			},
		},
		Reviews: []*activityModel.Review{
			{
				ID:            repo.ID + ":r1",
				PullRequestID: repo.ID + ":1",
				RepositoryID:  repo.ID,
				Reviewer:      "bob",
				State:         activityModel.ReviewApproved,
				SubmittedAt:   created.Add(6 * time.Hour),
				CommentsCount: 2,
			},
		},
		Deployments: []*activityModel.Deployment{
			{
				ID:           repo.ID + ":d1",
				RepositoryID: repo.ID,
				Environment:  "production",
				Status:       activityModel.DeployStatusSuccess,
				CreatedAt:    now.Add(-12 * time.Hour),
			},
		},
		Members: []*activityModel.Member{
			{ID: repo.ID + ":m1", Login: "alice", CreatedAt: now},
			{ID: repo.ID + ":m2", Login: "bob", CreatedAt: now},
		},
	}
}

// registerRepository registers a repository via HTTP API
func (s *E2ETestSuite) registerRepository(owner, name string) (*http.Response, *activityModel.Repository) {
	bodyBytes, _ := json.Marshal(map[string]string{"owner": owner, "name": name})
	resp, respBody := s.doRequest("POST", "/api/v1/repositories", strings.NewReader(string(bodyBytes)))

	if resp.StatusCode != http.StatusCreated {
		return resp, nil
	}

	var result activityModel.Repository
	err := json.Unmarshal(respBody, &result)
	require.NoError(s.T(), err, "failed to unmarshal repository response")

	return resp, &result
}

// syncRepository runs an on-demand sync via HTTP API
func (s *E2ETestSuite) syncRepository(id, syncRange string) (*http.Response, *registryService.SyncResult) {
	path := "/api/v1/repositories/" + id + "/sync"
	if syncRange != "" {
		path += "?range=" + syncRange
	}
	resp, respBody := s.doRequest("POST", path, nil)

	if resp.StatusCode != http.StatusOK {
		return resp, nil
	}

	var result registryService.SyncResult
	err := json.Unmarshal(respBody, &result)
	require.NoError(s.T(), err, "failed to unmarshal sync response")

	return resp, &result
}

// runSyncJob triggers the scheduled sync job via HTTP API
func (s *E2ETestSuite) runSyncJob(req *syncjobModel.SyncRequest) (*http.Response, []byte) {
	var body io.Reader
	if req != nil {
		bodyBytes, _ := json.Marshal(req)
		body = strings.NewReader(string(bodyBytes))
	}
	return s.doRequest("POST", "/api/v1/jobs/sync", body)
}

// parseErrorResponse parses error response
func (s *E2ETestSuite) parseErrorResponse(respBody []byte) (string, string) {
	var errResp struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	err := json.Unmarshal(respBody, &errResp)
	require.NoError(s.T(), err, "failed to unmarshal error response")
	return errResp.Error.Code, errResp.Error.Message
}
