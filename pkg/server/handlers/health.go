package handlers

import (
	"errors"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/strata"
)

// Build information - can be set at build time using ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// HealthHandler handles health check requests
type HealthHandler struct {
	engine strata.Strata
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(engine strata.Strata) *HealthHandler {
	return &HealthHandler{engine: engine}
}

// HealthCheck handles GET /health - basic liveness check
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "strata",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   Version,
	})
}

// ReadinessCheck handles GET /ready
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	response := gin.H{
		"status":    "ready",
		"service":   "strata",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if h.engine == nil {
		response["status"] = "not ready"
		response["error"] = "engine not initialized"
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}

	// A read against a non-existent id exercises the store without side
	// effects; the expected not-found error means the engine is responsive.
	start := time.Now()
	_, err := h.engine.GetNode("readiness-check-non-existent-id")
	response["store"] = gin.H{
		"status":   "healthy",
		"duration": time.Since(start).String(),
	}
	if err != nil && !errors.Is(err, strata.ErrNodeNotFound) {
		response["status"] = "not ready"
		response["error"] = err.Error()
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}

	c.JSON(http.StatusOK, response)
}

// LivenessCheck handles GET /live - Kubernetes liveness probe
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"go":        GoVersion,
	})
}
