package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"log-onboarding-engine/internal/config"
	"log-onboarding-engine/internal/logging"
	"log-onboarding-engine/internal/monitoring"
	"log-onboarding-engine/internal/service"
)

const shutdownTimeout = 5 * time.Second

// HealthCheck checks one dependency of the server
type HealthCheck func(ctx context.Context) error

type Server struct {
	config   *config.Config
	router   *gin.Engine
	services *service.Services
	metrics  *monitoring.MetricsCollector
	logger   *logging.Logger
	limiter  *clientLimiter

	checkNames []string
	checks     map[string]HealthCheck
}

// New creates a server over services. Routes are registered by SetupRoutes.
func New(cfg *config.Config, services *service.Services, metrics *monitoring.MetricsCollector) *Server {
	return &Server{
		config:   cfg,
		router:   gin.New(),
		services: services,
		metrics:  metrics,
		logger:   logging.GetGlobalLogger().WithComponent("server"),
		limiter:  newClientLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst),
		checks:   make(map[string]HealthCheck),
	}
}

// WithLogger replaces the server logger
func (s *Server) WithLogger(logger *logging.Logger) *Server {
	s.logger = logger.WithComponent("server")
	return s
}

// AddHealthCheck registers a dependency check reported by /health
func (s *Server) AddHealthCheck(name string, check HealthCheck) {
	if _, ok := s.checks[name]; !ok {
		s.checkNames = append(s.checkNames, name)
	}
	s.checks[name] = check
}

// Router returns the gin router for testing purposes
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	s.SetupRoutes()

	addr := s.config.Server.Address()
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	if ttl := s.config.Server.SessionTTL; ttl > 0 {
		go s.sweepSessions(ctx, ttl)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("Server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return errors.Wrap(err, "failed to start server")
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "server forced to shutdown")
	}
	s.logger.Info("Server exited")
	return nil
}

// sweepSessions removes sessions untouched for ttl until ctx is cancelled
func (s *Server) sweepSessions(ctx context.Context, ttl time.Duration) {
	interval := ttl / 4
	if interval < time.Minute {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.services.Session.CleanupSessions(ctx, ttl); err != nil {
				s.logger.Error("Session cleanup failed", err)
			}
		}
	}
}

// SetupRoutes configures the middleware chain and the API routes
func (s *Server) SetupRoutes() {
	s.router.Use(
		monitoring.RecoveryMiddleware(s.metrics, s.logger),
		requestIDMiddleware(),
		corsMiddleware(),
		monitoring.MetricsMiddleware(s.metrics),
		monitoring.LoggingMiddleware(s.logger),
	)

	s.router.GET("/health", s.handleHealth)
	if s.metrics != nil {
		s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}

	v1 := s.router.Group("/api/v1")
	v1.Use(rateLimitMiddleware(s.limiter))
	{
		v1.GET("/formats", s.handleGetFormats)
		v1.POST("/detect", s.handleDetect)
		v1.POST("/extract", s.handleExtract)
		v1.POST("/extract/batch", s.handleExtractBatch)

		v1.POST("/regex/apply", s.handleApplyRegex)
		v1.POST("/regex/synthesize", s.handleSynthesizeRegex)
		v1.POST("/regex/preview", s.handlePreviewRegex)

		v1.POST("/sessions", s.handleCreateSession)
		v1.GET("/sessions", s.handleListSessions)
		v1.GET("/sessions/:id", s.handleGetSession)
		v1.DELETE("/sessions/:id", s.handleDeleteSession)
		v1.POST("/sessions/:id/auto", s.handleRunAutoExtraction)
		v1.POST("/sessions/:id/custom-regex", s.handleSessionCustomRegex)
		v1.POST("/sessions/:id/ai", s.handleSessionAIResult)
		v1.POST("/sessions/:id/existing", s.handleImportExistingFields)
		v1.POST("/sessions/:id/fields", s.handleMergeFields)
	}
}

// handleHealth handles GET /health
func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := "healthy"
	code := http.StatusOK
	components := gin.H{}
	for _, name := range s.checkNames {
		if err := s.checks[name](ctx); err != nil {
			components[name] = "unhealthy"
			status = "degraded"
			code = http.StatusServiceUnavailable
			s.logger.WithContext(ctx).WithField("check", name).Warnf("Health check failed: %v", err)
			continue
		}
		components[name] = "healthy"
	}

	c.JSON(code, gin.H{
		"status":     status,
		"time":       time.Now().Format(time.RFC3339),
		"components": components,
	})
}
