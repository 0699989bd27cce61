// Package server exposes the cleaning lifecycle over HTTP.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dataherd/dataherd/internal/processor"
	"github.com/dataherd/dataherd/internal/report"
	"github.com/dataherd/dataherd/internal/store"
)

// Server is the HTTP front end over the processor and stores.
type Server struct {
	proc    *processor.Processor
	rules   *store.RuleStore
	batches *store.BatchStore
	ops     *store.OperationStore
	reports *report.Builder
	log     *slog.Logger

	http *http.Server
}

// Config carries the listener settings.
type Config struct {
	Host           string
	Port           int
	RequestTimeout time.Duration
}

// New assembles the router and the underlying http.Server.
func New(
	cfg Config,
	proc *processor.Processor,
	rules *store.RuleStore,
	batches *store.BatchStore,
	ops *store.OperationStore,
	reports *report.Builder,
	log *slog.Logger,
) *Server {
	s := &Server{
		proc:    proc,
		rules:   rules,
		batches: batches,
		ops:     ops,
		reports: reports,
		log:     log,
	}

	s.http = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.Router(),
		ReadTimeout:  cfg.RequestTimeout,
		WriteTimeout: cfg.RequestTimeout,
	}
	return s
}

// Router builds the gin engine. Exposed separately so handler tests can
// drive it without a listener.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.requestLogger())

	r.GET("/health", s.handleHealth)

	api := r.Group("/api")
	{
		api.POST("/preview", s.handlePreview)
		api.POST("/commit", s.handleCommit)
		api.POST("/rollback", s.handleRollback)
		api.POST("/batches", s.handleCreateBatch)
		api.POST("/rules", s.handleSaveRule)
		api.POST("/rules/:id/deactivate", s.handleDeactivateRule)
		// Shares the :id segment with the deactivate route; gin rejects
		// differing wildcard names at the same position.
		api.GET("/rules/:id", s.handleListRules)
		api.GET("/operations", s.handleListOperations)
		api.GET("/report", s.handleReport)
		api.GET("/report/export", s.handleReportExport)
	}
	return r
}

// Start blocks serving requests until Shutdown or a listener error.
func (s *Server) Start() error {
	s.log.Info("http server listening", "addr", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("http server shutting down")
	return s.http.Shutdown(ctx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
