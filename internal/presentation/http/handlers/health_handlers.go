package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/commxr/commxr-go/internal/infrastructure/observability/logging"
	"github.com/commxr/commxr-go/internal/infrastructure/observability/performance"
	"github.com/gin-gonic/gin"
)

// ModelProbe checks that the generative backend answers
type ModelProbe interface {
	Ping(ctx context.Context, timeout time.Duration) bool
	Backend() string
}

// ConnectionCounter reports live realtime connections
type ConnectionCounter interface {
	ConnectionCount() int
}

const modelProbeTimeout = 5 * time.Second

// HealthHandlers serves the liveness endpoint
type HealthHandlers struct {
	probe       ModelProbe
	connections ConnectionCounter
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
}

// NewHealthHandlers creates health handlers with injected dependencies
func NewHealthHandlers(probe ModelProbe, connections ConnectionCounter, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *HealthHandlers {
	return &HealthHandlers{
		probe:       probe,
		connections: connections,
		logger:      logger,
		perfTracker: perfTracker,
	}
}

// GetHealth handles GET /api/health. ?verbose=1 adds backend, connection and
// performance details.
func (h *HealthHandlers) GetHealth(c *gin.Context) {
	marker := h.perfTracker.StartOperation("get_health_request", "")
	defer marker.Complete()

	reachable := h.probe.Ping(c.Request.Context(), modelProbeTimeout)
	marker.AddMetadata("modelReachable", reachable)

	resp := gin.H{"status": "ok", "model_reachable": reachable}
	if c.Query("verbose") == "1" || c.Query("verbose") == "true" {
		resp["backend"] = h.probe.Backend()
		resp["connections"] = h.connections.ConnectionCount()
		resp["performance"] = h.perfTracker.TakeSnapshot()
	}

	marker.SetSuccess(true)
	h.logger.Perf().Debug("Performance for GetHealth request", "duration", marker.Elapsed(), "modelReachable", reachable)
	c.JSON(http.StatusOK, resp)
}
