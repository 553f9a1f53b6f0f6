package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/strata"
	"github.com/soundprediction/strata/pkg/server/dto"
	"github.com/soundprediction/strata/pkg/telemetry"
)

// GraphHandler exposes the engine's graph operations over HTTP.
type GraphHandler struct {
	engine   strata.Strata
	recorder *telemetry.CycleRecorder
}

// NewGraphHandler creates a graph handler. The recorder is optional.
func NewGraphHandler(engine strata.Strata, recorder *telemetry.CycleRecorder) *GraphHandler {
	return &GraphHandler{engine: engine, recorder: recorder}
}

// Ingest handles POST /api/v1/ingest
func (h *GraphHandler) Ingest(c *gin.Context) {
	var req dto.IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}

	batch, err := req.ToBatch()
	if err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_attribute", Message: err.Error()})
		return
	}

	result, err := h.engine.Ingest(c.Request.Context(), batch, req.Operation.ToOperation())
	if err != nil {
		if errors.Is(err, strata.ErrOperationBlocked) {
			c.JSON(http.StatusForbidden, dto.Result{Success: false, Data: result, Error: err.Error()})
			return
		}
		c.JSON(http.StatusUnprocessableEntity, dto.Result{Success: false, Data: result, Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, dto.Result{Success: true, Data: result})
}

// Validate handles GET /api/v1/validate
func (h *GraphHandler) Validate(c *gin.Context) {
	result := h.engine.Validate(nil)
	c.JSON(http.StatusOK, dto.Result{Success: true, Data: result})
}

// Refine handles POST /api/v1/refine
func (h *GraphHandler) Refine(c *gin.Context) {
	outcome, err := h.engine.Refine(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "refine_failed", Message: err.Error()})
		return
	}

	if h.recorder != nil {
		runID := telemetry.NewRunID()
		for _, action := range outcome.Actions {
			h.recorder.Record(telemetry.CycleRecord{
				RunID:       runID,
				Cycle:       action.Cycle,
				Action:      action.Action.String(),
				Metric:      action.Metric,
				Mutated:     action.Mutated,
				FinalState:  outcome.State.String(),
				Refinements: outcome.Refinements,
			})
		}
		// Telemetry failure never fails the request.
		_ = h.recorder.Flush()
	}

	c.JSON(http.StatusOK, dto.Result{Success: true, Data: outcome})
}

// Decohere handles POST /api/v1/decohere
func (h *GraphHandler) Decohere(c *gin.Context) {
	var req dto.DecohereRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}

	res := h.engine.Decohere(req.Query, req.Polysemous, nil)
	c.JSON(http.StatusOK, dto.Result{Success: true, Data: dto.DecohereResponse{
		Context:  res.Context,
		Resolved: res.Resolved,
		Rendered: res.Graph.Render(),
	}})
}

// Export handles GET /api/v1/export
func (h *GraphHandler) Export(c *gin.Context) {
	if c.Query("format") == "yaml" {
		c.Header("Content-Type", "application/yaml")
		c.Status(http.StatusOK)
		if err := h.engine.ExportYAML(c.Writer); err != nil {
			c.Error(err)
		}
		return
	}
	c.JSON(http.StatusOK, dto.Result{Success: true, Data: h.engine.Export()})
}

// GetNode handles GET /api/v1/nodes/:id
func (h *GraphHandler) GetNode(c *gin.Context) {
	node, err := h.engine.GetNode(c.Param("id"))
	if err != nil {
		if errors.Is(err, strata.ErrNodeNotFound) {
			c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "not_found", Message: err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "internal", Message: err.Error()})
		return
	}
	c.JSON(http.StatusOK, dto.Result{Success: true, Data: node})
}
