// Package api provides the HTTP surface of the coordination analysis
// pipeline: analysis submission/retrieval and liveness/readiness probes.
package api

import (
	"context"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/dshield-collective/coordination-pipeline/pkg/cache"
	"github.com/dshield-collective/coordination-pipeline/pkg/config"
	"github.com/dshield-collective/coordination-pipeline/pkg/dispatch"
	"github.com/dshield-collective/coordination-pipeline/pkg/llm"
	"github.com/dshield-collective/coordination-pipeline/pkg/store"
	"github.com/dshield-collective/coordination-pipeline/pkg/version"
)

// Server is the HTTP API server.
type Server struct {
	echo       *echo.Echo
	httpServer *http.Server

	cfg        *config.Config
	dispatcher *dispatch.Dispatcher

	cache       *cache.Cache
	rateLimiter *cache.RateLimiter
	llmHealth   *llm.HealthMonitor
	storeClient *store.Client

	startedAt time.Time
}

// NewServer creates a new API server with Echo v5.
func NewServer(
	cfg *config.Config,
	dispatcher *dispatch.Dispatcher,
	cacheClient *cache.Cache,
	rateLimiter *cache.RateLimiter,
	llmHealth *llm.HealthMonitor,
	storeClient *store.Client,
) *Server {
	e := echo.New()

	s := &Server{
		echo:        e,
		cfg:         cfg,
		dispatcher:  dispatcher,
		cache:       cacheClient,
		rateLimiter: rateLimiter,
		llmHealth:   llmHealth,
		storeClient: storeClient,
		startedAt:   time.Now(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes registers all API routes (§6).
func (s *Server) setupRoutes() {
	s.echo.Use(middleware.BodyLimit(2 * 1024 * 1024))
	s.echo.Use(securityHeaders())

	s.echo.GET("/healthz", s.livenessHandler)
	s.echo.GET("/readyz", s.readinessHandler)
	s.echo.GET("/health", s.healthHandler)

	v1 := s.echo.Group("/api/v1")
	v1.Use(apiKeyAuth(s.cfg))
	if s.rateLimiter != nil {
		v1.Use(rateLimitGlobal(s.rateLimiter, s.cfg.RateLimits.Global))
		v1.Use(rateLimitByAPIKey(s.rateLimiter, s.cfg.RateLimits.APIKey))
		v1.Use(rateLimitByIP(s.rateLimiter, cache.RateCategoryIP, s.cfg.RateLimits.IP))
	}

	v1.POST("/analyses", s.submitHandler)
	v1.POST("/analyses/bulk", s.bulkSubmitHandler)
	v1.GET("/analyses/:id", s.getHandler)
}

// Start starts the HTTP server on the given address (non-blocking for the
// caller only in the sense that ListenAndServe is expected to run in its
// own goroutine by the caller).
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.echo}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// livenessHandler handles GET /healthz (§6 "Liveness returns {status:alive,
// uptime_seconds}").
func (s *Server) livenessHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, &LivenessResponse{
		Status:        "alive",
		UptimeSeconds: time.Since(s.startedAt).Seconds(),
	})
}

// readinessHandler handles GET /readyz (§6 "readiness aggregates dependency
// health flags for {state store, cache, LLM} and returns ready iff all
// healthy").
func (s *Server) readinessHandler(c *echo.Context) error {
	deps := s.dependencyHealth(c.Request().Context())

	ready := true
	for _, healthy := range deps {
		if !healthy {
			ready = false
			break
		}
	}

	status := http.StatusOK
	statusText := "ready"
	if !ready {
		status = http.StatusServiceUnavailable
		statusText = "unready"
	}

	return c.JSON(status, &ReadinessResponse{Status: statusText, Dependencies: deps})
}

// healthHandler handles GET /health, a basic combined probe.
func (s *Server) healthHandler(c *echo.Context) error {
	deps := s.dependencyHealth(c.Request().Context())
	return c.JSON(http.StatusOK, &HealthResponse{
		Status:        "alive",
		Version:       version.Full(),
		UptimeSeconds: time.Since(s.startedAt).Seconds(),
		Dependencies:  deps,
	})
}

func (s *Server) dependencyHealth(ctx context.Context) map[string]bool {
	deps := map[string]bool{
		"state_store": true,
		"cache":       true,
		"llm":         true,
	}

	if s.storeClient != nil {
		checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		deps["state_store"] = s.storeClient.Pool().Ping(checkCtx) == nil
		cancel()
	}

	if s.cache != nil {
		checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		deps["cache"] = s.cache.Ping(checkCtx) == nil
		cancel()
	}

	if s.llmHealth != nil {
		deps["llm"] = s.llmHealth.Status().Healthy
	}

	return deps
}
