// Package server hosts the HTTP surface: webhook and drain endpoints
// plus health, with request-id and logging middleware.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/leokalinowski/purpose-driven-crm/pkg/config"
	"github.com/leokalinowski/purpose-driven-crm/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

// HealthChecker reports readiness of a backing dependency.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// RouteRegistrar mounts endpoint handlers onto the root group.
type RouteRegistrar func(r *gin.RouterGroup)

// Server wraps the gin engine with lifecycle management.
type Server struct {
	cfg    config.ServerConfig
	log    logger.Logger
	health HealthChecker
	engine *gin.Engine
}

func New(cfg config.ServerConfig, log logger.Logger, health HealthChecker, register RouteRegistrar) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.HandleMethodNotAllowed = true
	engine.Use(gin.Recovery(), RequestIDMiddleware(log), LoggerMiddleware())

	s := &Server{cfg: cfg, log: log, health: health, engine: engine}
	engine.GET("/healthz", s.handleHealth)
	register(engine.Group("/"))
	return s
}

func (s *Server) handleHealth(c *gin.Context) {
	if s.health != nil {
		if err := s.health.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Run serves until ctx is canceled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	s.log.Info("http server stopped")
	return <-errCh
}
