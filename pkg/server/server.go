// Package server exposes the engine over HTTP.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/strata"
	"github.com/soundprediction/strata/pkg/config"
	"github.com/soundprediction/strata/pkg/server/handlers"
	"github.com/soundprediction/strata/pkg/telemetry"
)

// Server represents the HTTP server
type Server struct {
	config   *config.Config
	router   *gin.Engine
	engine   strata.Strata
	recorder *telemetry.CycleRecorder
	server   *http.Server
}

// New creates a new server instance. The recorder is optional.
func New(cfg *config.Config, engine strata.Strata, recorder *telemetry.CycleRecorder) *Server {
	return &Server{
		config:   cfg,
		engine:   engine,
		recorder: recorder,
	}
}

// Setup sets up the server routes and middleware
func (s *Server) Setup() {
	gin.SetMode(s.config.Server.Mode)

	s.router = gin.New()
	s.router.Use(gin.Logger())
	s.router.Use(gin.Recovery())
	s.router.Use(corsMiddleware())

	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.router,
	}
}

// Router returns the configured router, for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// setupRoutes sets up all the routes
func (s *Server) setupRoutes() {
	healthHandler := handlers.NewHealthHandler(s.engine)
	graphHandler := handlers.NewGraphHandler(s.engine, s.recorder)

	// Health endpoints
	s.router.GET("/health", healthHandler.HealthCheck)
	s.router.GET("/ready", healthHandler.ReadinessCheck)
	s.router.GET("/live", healthHandler.LivenessCheck)

	// API v1 routes
	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/ingest", graphHandler.Ingest)
		v1.GET("/validate", graphHandler.Validate)
		v1.POST("/refine", graphHandler.Refine)
		v1.POST("/decohere", graphHandler.Decohere)
		v1.GET("/export", graphHandler.Export)
		v1.GET("/nodes/:id", graphHandler.GetNode)
	}
}

// Start starts the server
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Stop stops the server gracefully
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// corsMiddleware adds CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
