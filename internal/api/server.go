// Copyright 2026 The ANISA Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package api serves the ANISA pipeline, event assessment and PANX/Cortex
// integration endpoints over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/assessment"
	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/config"
	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/forward"
	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/metrics"
	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/pipeline"
	"github.com/gtcx-protocol/gtcx-ecosystem-anisa/internal/store"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/netutil"
)

// Deps are the services behind the API. Recorder, Forwarder and Collectors
// may be nil.
type Deps struct {
	Config     *config.Config
	Engine     *pipeline.Engine
	Assessor   *assessment.Assessor
	Recorder   *store.Recorder
	Forwarder  *forward.Forwarder
	Collectors *metrics.Collectors
}

// Server is the ANISA HTTP server.
type Server struct {
	deps    Deps
	cfg     *config.Config
	engine  *gin.Engine
	server  *http.Server
	now     func() time.Time
	started time.Time
}

// NewServer builds the router. Call Start or Serve to accept connections.
func NewServer(deps Deps) *Server {
	cfg := deps.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
		deps.Config = cfg
	}
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{deps: deps, cfg: cfg, engine: gin.New(), now: time.Now, started: time.Now()}
	s.engine.Use(gin.CustomRecovery(recoverJSON), requestID(), s.accessLog(), cors(cfg.CORSOrigins))
	s.setupRoutes()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler { return s.engine }

// Start listens on the configured address and serves until Stop.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.server.Addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln, at most max-concurrent-requests at a time.
// It returns nil after a graceful Stop.
func (s *Server) Serve(ln net.Listener) error {
	if n := s.cfg.MaxConcurrentRequests; n > 0 {
		ln = netutil.LimitListener(ln, n)
	}
	log.Infof("ANISA API listening on %s", ln.Addr())
	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Server) setupRoutes() {
	r := s.engine
	r.GET("/", s.root)
	r.GET("/health", s.health)
	r.GET("/metrics", gin.WrapH(s.deps.Collectors.Handler()))

	v1 := r.Group("/api/v1", s.requireAPIKey(), s.timeout())
	{
		v1.POST("/query", s.query)
		v1.POST("/insights", s.insights)
		v1.GET("/status", s.status)
		v1.GET("/metrics", s.performanceMetrics)
		v1.POST("/metrics/reset", s.resetMetrics)
		v1.GET("/variants", s.variants)
		v1.GET("/regions", s.regions)
		v1.POST("/demo", s.demo)
		v1.GET("/tool/describe", s.describeTool)
		v1.POST("/panx/analyze", s.panxAnalyze)
		v1.POST("/panx/event/assess", s.panxEventAssess)
	}

	v2 := r.Group("/api/v2", s.requireAPIKey(), s.timeout())
	{
		v2.POST("/analyze", s.analyze)
		v2.POST("/panx/cultural_weights", s.culturalWeights)
		v2.POST("/cortex/forward", s.cortexForward)
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
}
