// Package api provides the HTTP ingress for the company discovery/profiling
// pipeline: the /v2 routes described in SPEC_FULL.md §8.
package api

import (
	"context"
	"net"
	"net/http"

	echo "github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/FelpTB/scraper-api-Busca-fornecedor-sub000/pkg/config"
	"github.com/FelpTB/scraper-api-Busca-fornecedor-sub000/pkg/database"
	"github.com/FelpTB/scraper-api-Busca-fornecedor-sub000/pkg/llmpool"
	"github.com/FelpTB/scraper-api-Busca-fornecedor-sub000/pkg/orchestration"
	"github.com/FelpTB/scraper-api-Busca-fornecedor-sub000/pkg/queue"
	"github.com/FelpTB/scraper-api-Busca-fornecedor-sub000/pkg/search"
	"github.com/FelpTB/scraper-api-Busca-fornecedor-sub000/pkg/version"
)

// Server is the HTTP ingress for stage 1-4 operations, serving both the
// synchronous stages (Search, Scrape) and the enqueue/metrics surface for
// the queue-driven stages (Discovery, Profile).
type Server struct {
	echo       *echo.Echo
	httpServer *http.Server

	cfg          *config.Config
	dbClient     *database.Client
	repo         *orchestration.Repository
	searchClient *search.Client
	llmPool      *llmpool.Pool

	discoveryStore *queue.Store
	profileStore   *queue.Store
	discoveryPool  *queue.WorkerPool
	profilePool    *queue.WorkerPool

	scraper   orchestration.Scraper
	extractor orchestration.ProfileExtractor
}

// NewServer wires the Server against its collaborators and registers every
// /v2 route.
func NewServer(
	cfg *config.Config,
	dbClient *database.Client,
	repo *orchestration.Repository,
	searchClient *search.Client,
	llmPool *llmpool.Pool,
	discoveryStore, profileStore *queue.Store,
	discoveryPool, profilePool *queue.WorkerPool,
) *Server {
	e := echo.New()

	s := &Server{
		echo:           e,
		cfg:            cfg,
		dbClient:       dbClient,
		repo:           repo,
		searchClient:   searchClient,
		llmPool:        llmPool,
		discoveryStore: discoveryStore,
		profileStore:   profileStore,
		discoveryPool:  discoveryPool,
		profilePool:    profilePool,
		scraper:        orchestration.NewDefaultScraper(0),
		extractor:      &orchestration.DefaultProfileExtractor{Pool: llmPool},
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.echo.Use(middleware.BodyLimit(2 * 1024 * 1024))
	s.echo.Use(securityHeaders())

	s.echo.GET("/health", s.healthHandler)
	s.echo.GET("/metrics", s.metricsExporterHandler)

	v2 := s.echo.Group("/v2")
	v2.Use(s.requireIngressToken())

	v2.GET("", s.rootHandler)

	v2.POST("/serper", s.searchHandler)
	v2.POST("/encontrar_site", s.enqueueDiscoveryLegacyHandler)
	v2.POST("/scrape", s.scrapeHandler)
	v2.POST("/montagem_perfil", s.profileHandler)

	v2.POST("/queue_discovery/enqueue", s.enqueueHandler(s.discoveryStore))
	v2.POST("/queue_discovery/enqueue_batch", s.enqueueBatchHandler(s.discoveryStore))
	v2.GET("/queue_discovery/metrics", s.metricsHandler(s.discoveryStore))

	v2.POST("/queue_profile/enqueue", s.enqueueHandler(s.profileStore))
	v2.POST("/queue_profile/enqueue_batch", s.enqueueBatchHandler(s.profileStore))
	v2.GET("/queue_profile/metrics", s.metricsHandler(s.profileStore))
}

// rootHandler lists the /v2 endpoints, serving as the liveness check spec.md
// §6 calls "GET / on the v2 router".
func (s *Server) rootHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"service": version.AppName,
		"version": version.Full(),
		"endpoints": []string{
			"POST /v2/serper",
			"POST /v2/encontrar_site",
			"POST /v2/scrape",
			"POST /v2/montagem_perfil",
			"POST /v2/queue_discovery/enqueue",
			"POST /v2/queue_discovery/enqueue_batch",
			"GET /v2/queue_discovery/metrics",
			"POST /v2/queue_profile/enqueue",
			"POST /v2/queue_profile/enqueue_batch",
			"GET /v2/queue_profile/metrics",
		},
	})
}

// healthHandler handles GET /health, combining database reachability and
// both worker pools' health, mirroring the teacher's server.go.
func (s *Server) healthHandler(c *echo.Context) error {
	if _, err := database.Health(c.Request().Context(), s.dbClient.DB()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, &HealthResponse{
			Status:  "unhealthy",
			Version: version.Full(),
		})
	}

	discoveryHealth := s.discoveryPool.Health()
	profileHealth := s.profilePool.Health()
	observeQueueHealth("discovery", discoveryHealth)
	observeQueueHealth("profile", profileHealth)

	return c.JSON(http.StatusOK, &HealthResponse{
		Status:         "healthy",
		Version:        version.Full(),
		DiscoveryQueue: discoveryHealth,
		ProfileQueue:   profileHealth,
	})
}

// metricsExporterHandler handles GET /metrics, exposing the gauges refreshed
// by healthHandler in Prometheus exposition format.
func (s *Server) metricsExporterHandler(c *echo.Context) error {
	promhttp.Handler().ServeHTTP(c.Response(), c.Request())
	return nil
}

// Start starts the HTTP server on addr (blocking).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.echo}
	return s.httpServer.ListenAndServe()
}

// StartWithListener starts the HTTP server on a pre-created listener, used
// by tests that want an OS-assigned port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.echo}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
