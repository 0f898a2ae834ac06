package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kestrelorch/kestrel/pkg/domain"
)

// RunSubmitRequest represents a run submission request
type RunSubmitRequest struct {
	Nodes  []domain.NodeSpec `json:"nodes" binding:"required"`
	Policy *PolicyRequest    `json:"policy"`
}

// PolicyRequest carries per-run scheduling overrides. Durations use Go
// duration syntax ("30s", "1m"). Zero fields fall back to server defaults.
type PolicyRequest struct {
	MaxRestarts    int    `json:"max_restarts"`
	RestartBackoff string `json:"restart_backoff"`
	HookTimeout    string `json:"hook_timeout"`
	StopTimeout    string `json:"stop_timeout"`
	HealthInterval string `json:"health_interval"`
}

func (p *PolicyRequest) toPolicy() (domain.SchedulingPolicy, error) {
	var policy domain.SchedulingPolicy
	if p == nil {
		return policy, nil
	}
	policy.MaxRestarts = p.MaxRestarts

	for _, field := range []struct {
		raw string
		dst *time.Duration
	}{
		{p.RestartBackoff, &policy.RestartBackoff},
		{p.HookTimeout, &policy.HookTimeout},
		{p.StopTimeout, &policy.StopTimeout},
		{p.HealthInterval, &policy.HealthInterval},
	} {
		if field.raw == "" {
			continue
		}
		d, err := time.ParseDuration(field.raw)
		if err != nil {
			return policy, err
		}
		*field.dst = d
	}
	return policy, nil
}

// RunSubmitResponse represents a run submission response
type RunSubmitResponse struct {
	RunID       string `json:"run_id"`
	Status      string `json:"status"`
	SubmittedAt string `json:"submitted_at"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail represents error details
type ErrorDetail struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

var commandKinds = map[string]domain.EventKind{
	"pause":   domain.CommandPause,
	"resume":  domain.CommandResume,
	"restart": domain.CommandRestart,
	"cancel":  domain.CommandCancel,
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks": gin.H{
			"orchestrator": "ok",
		},
	})
}

// handleSubmitRun handles run submission. Node hooks are resolved from
// the driver registry before the specs reach the orchestrator.
func (s *Server) handleSubmitRun(c *gin.Context) {
	var req RunSubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.Error("invalid request", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: ErrorDetail{
				Code:    "INVALID_REQUEST",
				Message: err.Error(),
			},
		})
		return
	}

	policy, err := req.Policy.toPolicy()
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: ErrorDetail{
				Code:    "INVALID_POLICY",
				Message: err.Error(),
			},
		})
		return
	}

	specs, err := s.registry.Resolve(req.Nodes)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error: ErrorDetail{
				Code:    "DRIVER_RESOLUTION_FAILED",
				Message: err.Error(),
			},
		})
		return
	}

	runID, err := s.orchestrator.SubmitSpecs(c.Request.Context(), specs, policy)
	if err != nil {
		s.logger.Error("failed to submit run", zap.Error(err))
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error: ErrorDetail{
				Code:    "SUBMISSION_FAILED",
				Message: err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusCreated, RunSubmitResponse{
		RunID:       runID,
		Status:      "submitted",
		SubmittedAt: time.Now().UTC().Format(time.RFC3339),
	})
}

// handleListRuns handles listing runs
func (s *Server) handleListRuns(c *gin.Context) {
	runs, err := s.orchestrator.ListRuns(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error: ErrorDetail{
				Code:    "LIST_FAILED",
				Message: err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"runs":  runs,
		"total": len(runs),
	})
}

// handleGetRun handles getting the full run snapshot
func (s *Server) handleGetRun(c *gin.Context) {
	runID := c.Param("id")

	state, err := s.orchestrator.GetState(c.Request.Context(), runID)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: ErrorDetail{
				Code:    "NOT_FOUND",
				Message: "Run not found",
			},
		})
		return
	}

	c.JSON(http.StatusOK, state)
}

// handleGetStatus returns the run summary without per-node detail
func (s *Server) handleGetStatus(c *gin.Context) {
	runID := c.Param("id")

	state, err := s.orchestrator.GetState(c.Request.Context(), runID)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: ErrorDetail{
				Code:    "NOT_FOUND",
				Message: "Run not found",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"run_id":       state.RunID,
		"status":       state.Status,
		"submitted_at": state.SubmittedAt,
		"completed_at": state.CompletedAt,
		"error":        state.Error,
	})
}

// handleGetGraph renders the run's dependency graph in DOT format
func (s *Server) handleGetGraph(c *gin.Context) {
	runID := c.Param("id")

	dot, err := s.orchestrator.GraphDOT(runID)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: ErrorDetail{
				Code:    "NOT_FOUND",
				Message: "Run not found or no longer live",
			},
		})
		return
	}

	c.String(http.StatusOK, dot)
}

// handleDrainRun asks a run to shut down in reverse dependency order
func (s *Server) handleDrainRun(c *gin.Context) {
	runID := c.Param("id")

	if err := s.orchestrator.Drain(runID); err != nil {
		c.JSON(http.StatusConflict, ErrorResponse{
			Error: ErrorDetail{
				Code:    "DRAIN_FAILED",
				Message: err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"run_id": runID,
		"status": "draining",
	})
}

// handleNodeCommand publishes a node command onto the control bus
func (s *Server) handleNodeCommand(c *gin.Context) {
	runID := c.Param("id")
	node := c.Param("node")
	command := c.Param("command")

	kind, ok := commandKinds[command]
	if !ok {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: ErrorDetail{
				Code:    "UNKNOWN_COMMAND",
				Message: "command must be one of pause, resume, restart, cancel",
			},
		})
		return
	}

	if err := s.orchestrator.Command(c.Request.Context(), runID, node, kind); err != nil {
		c.JSON(http.StatusConflict, ErrorResponse{
			Error: ErrorDetail{
				Code:    "COMMAND_FAILED",
				Message: err.Error(),
			},
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"run_id":  runID,
		"node":    node,
		"command": command,
	})
}
