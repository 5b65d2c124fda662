// Package cache provides a three-tier response cache for GET endpoints:
// in-memory map, durable database records, then the live handler.
package cache

import (
	"bytes"
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/gitpulse/gitpulse/internal/activity/repository"
	"github.com/gitpulse/gitpulse/internal/config"
)

const (
	storeTimeout = 10 * time.Second
	purgeTimeout = 30 * time.Second
)

// entry is one in-memory cached response.
type entry struct {
	body        []byte
	contentType string
	statusCode  int
	createdAt   time.Time
}

// Service caches successful GET responses keyed by request URI. The memory
// tier answers repeat requests on the same instance; the durable tier
// survives restarts and is shared between instances.
type Service struct {
	mu      sync.RWMutex
	entries map[string]*entry

	ttl           time.Duration
	sweepInterval time.Duration
	store         repository.CacheStore
	logger        *zap.SugaredLogger
	stop          chan struct{}
	stopOnce      sync.Once
}

// NewService creates a new response cache service.
func NewService(cfg config.CacheConfig, store repository.CacheStore, logger *zap.SugaredLogger) *Service {
	return &Service{
		entries:       make(map[string]*entry),
		ttl:           cfg.TTL,
		sweepInterval: cfg.SweepInterval,
		store:         store,
		logger:        logger,
		stop:          make(chan struct{}),
	}
}

// Start launches the background sweeper that evicts expired memory entries.
func (s *Service) Start() {
	go func() {
		ticker := time.NewTicker(s.sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.sweep()
			case <-s.stop:
				return
			}
		}
	}()
}

// Stop terminates the background sweeper.
func (s *Service) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *Service) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	evicted := 0
	for key, e := range s.entries {
		if now.Sub(e.createdAt) > s.ttl {
			delete(s.entries, key)
			evicted++
		}
	}
	if evicted > 0 {
		s.logger.Debugw("evicted expired cache entries", "count", evicted)
	}
}

// InvalidateAll drops the memory tier synchronously and purges the durable
// tier in the background.
func (s *Service) InvalidateAll(_ context.Context) {
	s.mu.Lock()
	s.entries = make(map[string]*entry)
	s.mu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), purgeTimeout)
		defer cancel()
		if err := s.store.PurgeCacheRecords(ctx); err != nil {
			s.logger.Warnw("failed to purge durable cache", "error", err)
			return
		}
		s.logger.Infow("durable response cache purged")
	}()
}

func (s *Service) getFromMemory(key string) (*entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok || time.Since(e.createdAt) > s.ttl {
		return nil, false
	}
	return e, true
}

// getFromDurable reads the durable tier and promotes a hit to memory.
func (s *Service) getFromDurable(ctx context.Context, key string) (*entry, bool) {
	body, err := s.store.GetCacheRecord(ctx, key)
	if err != nil {
		return nil, false
	}

	e := &entry{
		body:        body,
		contentType: "application/json",
		statusCode:  http.StatusOK,
		createdAt:   time.Now(),
	}

	s.mu.Lock()
	s.entries[key] = e
	s.mu.Unlock()

	return e, true
}

// storeAll writes the captured response to memory synchronously and to the
// durable tier in the background.
func (s *Service) storeAll(key string, w *bodyWriter) {
	body := w.body.Bytes()
	contentType := w.Header().Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}

	s.mu.Lock()
	s.entries[key] = &entry{
		body:        body,
		contentType: contentType,
		statusCode:  w.Status(),
		createdAt:   time.Now(),
	}
	s.mu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		if err := s.store.PutCacheRecord(ctx, key, body, int(s.ttl.Seconds())); err != nil {
			s.logger.Warnw("failed to store durable cache record", "key", key, "error", err)
		}
	}()
}

// Middleware returns the caching middleware. Only GET requests are cached,
// and only 2xx responses are stored. refresh=true skips both read tiers but
// still refreshes the stored entry.
func (s *Service) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		if c.Query("refresh") == "true" {
			// Strip refresh so the key matches plain requests.
			q := c.Request.URL.Query()
			q.Del("refresh")
			c.Request.URL.RawQuery = q.Encode()
			key := c.Request.URL.RequestURI()

			c.Header("X-Cache", "BYPASS")
			w := wrapWriter(c)
			c.Next()
			if isCacheable(w.Status()) {
				s.storeAll(key, w)
			}
			return
		}

		key := c.Request.URL.RequestURI()

		if e, ok := s.getFromMemory(key); ok {
			serveCached(c, e, "HIT-MEMORY")
			return
		}

		if e, ok := s.getFromDurable(c.Request.Context(), key); ok {
			serveCached(c, e, "HIT-DATABASE")
			return
		}

		c.Header("X-Cache", "MISS")
		w := wrapWriter(c)
		c.Next()
		if isCacheable(w.Status()) {
			s.storeAll(key, w)
		}
	}
}

func isCacheable(status int) bool {
	return status >= 200 && status < 300
}

func serveCached(c *gin.Context, e *entry, tier string) {
	c.Header("X-Cache", tier)
	c.Data(e.statusCode, e.contentType, e.body)
	c.Abort()
}

// bodyWriter captures the response body while still writing to the client.
type bodyWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func wrapWriter(c *gin.Context) *bodyWriter {
	w := &bodyWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
	c.Writer = w
	return w
}

func (w *bodyWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
