// Package server exposes the knowledge base over HTTP: project lifecycle,
// ingestion, and query endpoints, wired the way contextd's internal/http
// wires its own registry-backed API.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/parchment-dev/kbase/internal/config"
	"github.com/parchment-dev/kbase/internal/health"
	"github.com/parchment-dev/kbase/internal/indexer"
	"github.com/parchment-dev/kbase/internal/knowledgebase"
	"github.com/parchment-dev/kbase/internal/project"
	"github.com/parchment-dev/kbase/internal/query"
	"github.com/parchment-dev/kbase/internal/repository"
	"github.com/parchment-dev/kbase/internal/vectorstore"
)

// Server is the HTTP front end for one kbase process: a ProjectManager plus
// one lazily constructed KnowledgeBase facade per project, all sharing the
// pooled vector-backend client and the process-wide health monitor.
type Server struct {
	echo    *echo.Echo
	manager *project.Manager
	embed   vectorstore.Embedder
	mon     *health.Monitor
	kbCfg   config.KnowledgeBaseConfig
	repoCfg config.RepositoryConfig
	logger  *zap.Logger
	notify  *knowledgebase.Notifier

	mu  sync.Mutex
	kbs map[string]*knowledgebase.KnowledgeBase
}

// New constructs a Server. embedder is shared across every project's
// KnowledgeBase; the vector backend and query cache come from manager
// instead, since those are already scoped per project there. natsConn may
// be nil, in which case lifecycle notifications are silently dropped.
func New(manager *project.Manager, embedder vectorstore.Embedder, kbCfg config.KnowledgeBaseConfig, repoCfg config.RepositoryConfig, logger *zap.Logger, natsConn *nats.Conn) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	backendHealthy := func() bool {
		store, err := manager.Store(context.Background())
		if err != nil {
			return false
		}
		return store.Health(context.Background()).Status == "healthy"
	}

	s := &Server{
		manager: manager,
		embed:   embedder,
		mon:     health.New(logger, health.WithBackendHealthChecker(backendHealthy)),
		kbCfg:   kbCfg,
		repoCfg: repoCfg,
		logger:  logger,
		notify:  knowledgebase.NewNotifier(natsConn, logger),
		kbs:     make(map[string]*knowledgebase.KnowledgeBase),
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
			)
			return err
		}
	})
	s.echo = e
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	s.echo.POST("/projects", s.handleCreateProject)
	s.echo.GET("/projects", s.handleListProjects)
	s.echo.GET("/projects/:id", s.handleGetProject)
	s.echo.DELETE("/projects/:id", s.handleDeleteProject)

	s.echo.POST("/projects/:id/ingest", s.handleIngest)
	s.echo.POST("/projects/:id/query", s.handleQuery)
	s.echo.GET("/projects/:id/stats", s.handleStats)
	s.echo.POST("/projects/:id/rebuild", s.handleRebuildIndex)
}

// ServeHTTP lets Server itself be passed to http.ListenAndServe.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

func (s *Server) handleHealth(c echo.Context) error {
	store, err := s.manager.Store(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
	}
	hs := store.Health(c.Request().Context())
	status := http.StatusOK
	if hs.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	return c.JSON(status, hs)
}

type createProjectRequest struct {
	Name           string                 `json:"name"`
	Description    string                 `json:"description"`
	EmbeddingModel string                 `json:"embedding_model"`
	Metadata       map[string]interface{} `json:"metadata"`
}

func (s *Server) handleCreateProject(c echo.Context) error {
	var req createProjectRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if req.EmbeddingModel == "" {
		req.EmbeddingModel = s.kbCfg.EmbeddingModel
	}

	p, err := s.manager.Create(c.Request().Context(), req.Name, req.Description, req.EmbeddingModel, req.Metadata)
	if err != nil {
		return c.JSON(http.StatusConflict, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusCreated, p)
}

func (s *Server) handleListProjects(c echo.Context) error {
	projects, err := s.manager.List(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, projects)
}

func (s *Server) handleGetProject(c echo.Context) error {
	p, err := s.manager.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, p)
}

func (s *Server) handleDeleteProject(c echo.Context) error {
	id := c.Param("id")
	ok, err := s.manager.Delete(c.Request().Context(), id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "project not found"})
	}

	s.mu.Lock()
	delete(s.kbs, id)
	s.mu.Unlock()
	s.mon.ResetMetrics(id)
	s.notify.ProjectDeleted(id)
	return c.NoContent(http.StatusNoContent)
}

type ingestRequest struct {
	Documents []vectorstore.Document `json:"documents"`
}

func (s *Server) handleIngest(c echo.Context) error {
	id := c.Param("id")
	kb, err := s.knowledgeBaseFor(c.Request().Context(), id)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	}

	var req ingestRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	if err := kb.Ingest(c.Request().Context(), req.Documents); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]int{"ingested": len(req.Documents)})
}

type queryRequest struct {
	Text     string                 `json:"text"`
	Mode     string                 `json:"mode"`
	TopK     int                    `json:"top_k"`
	Alpha    float64                `json:"alpha"`
	Filter   map[string]interface{} `json:"filter"`
	UseCache bool                   `json:"use_cache"`
}

func (s *Server) handleQuery(c echo.Context) error {
	id := c.Param("id")
	kb, err := s.knowledgeBaseFor(c.Request().Context(), id)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	}

	var req queryRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	if req.TopK <= 0 {
		req.TopK = 10
	}
	if req.Alpha == 0 {
		req.Alpha = s.kbCfg.HybridAlpha
	}
	mode := query.Mode(req.Mode)
	if mode == "" {
		mode = query.Mode(s.kbCfg.VectorSearchMode)
	}

	results, err := kb.Query(c.Request().Context(), req.Text, mode, req.TopK, req.Alpha, req.Filter, req.UseCache)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"results": results})
}

func (s *Server) handleStats(c echo.Context) error {
	kb, err := s.knowledgeBaseFor(c.Request().Context(), c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, kb.GetStats())
}

func (s *Server) handleRebuildIndex(c echo.Context) error {
	kb, err := s.knowledgeBaseFor(c.Request().Context(), c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": err.Error()})
	}
	if err := kb.RebuildIndex(c.Request().Context()); err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, kb.GetStats())
}

// knowledgeBaseFor returns the cached KnowledgeBase for projectID, building
// it on first access from the project's metadata row, pooled backend
// client, and per-project query cache.
func (s *Server) knowledgeBaseFor(ctx context.Context, projectID string) (*knowledgebase.KnowledgeBase, error) {
	s.mu.Lock()
	if kb, ok := s.kbs[projectID]; ok {
		s.mu.Unlock()
		return kb, nil
	}
	s.mu.Unlock()

	p, err := s.manager.Get(ctx, projectID)
	if err != nil {
		return nil, err
	}

	store, err := s.manager.Store(ctx)
	if err != nil {
		return nil, fmt.Errorf("server: acquiring backend client: %w", err)
	}

	cache := s.manager.Cache(projectID)
	if cache == nil {
		return nil, fmt.Errorf("server: no query cache registered for project %s", projectID)
	}

	repo := repository.New(s.logger)

	var idx *indexer.Indexer
	if len(s.kbCfg.KnowledgeDirs) > 0 {
		idx = indexer.New(indexer.Config{
			KnowledgeDirs:    s.kbCfg.KnowledgeDirs,
			FileExtensions:   s.kbCfg.FileExtensions,
			IgnoreFiles:      s.repoCfg.IgnoreFiles,
			FallbackExcludes: s.repoCfg.FallbackExcludes,
			MaxWorkers:       s.kbCfg.MaxWorkers,
			CacheFile:        s.kbCfg.CacheFile,
			ChunkSize:        s.kbCfg.ChunkSize,
			ChunkOverlap:     s.kbCfg.ChunkOverlap,
			Store:            store,
			Collection:       p.CollectionName,
		}, nil, s.logger)
	}

	kb := knowledgebase.New(p.ID, p.CollectionName, store, s.embed, repo, cache, idx, s.mon, s.logger, knowledgebase.WithNotifier(s.notify))

	s.mu.Lock()
	s.kbs[projectID] = kb
	s.mu.Unlock()
	return kb, nil
}
