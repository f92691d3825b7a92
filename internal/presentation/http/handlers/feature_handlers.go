package handlers

import (
	"net/http"
	"time"

	"github.com/commxr/commxr-go/internal/application/services"
	"github.com/commxr/commxr-go/internal/infrastructure/observability/logging"
	"github.com/commxr/commxr-go/internal/infrastructure/observability/performance"
	"github.com/commxr/commxr-go/internal/presentation/http/middleware"
	"github.com/gin-gonic/gin"
)

// FeatureHandlers accepts out-of-band device measurements
type FeatureHandlers struct {
	featureService *services.FeatureService
	logger         *logging.ChanneledLogger
	perfTracker    *performance.Tracker
}

// NewFeatureHandlers creates feature handlers with injected dependencies
func NewFeatureHandlers(featureService *services.FeatureService, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *FeatureHandlers {
	return &FeatureHandlers{
		featureService: featureService,
		logger:         logger,
		perfTracker:    perfTracker,
	}
}

// FeatureAccepted acknowledges a stored feature batch
type FeatureAccepted struct {
	ID         string    `json:"id"`
	SessionID  *string   `json:"session_id"`
	ReceivedAt time.Time `json:"received_at"`
	Status     string    `json:"status"`
}

// PostFeatures handles POST /api/features
func (h *FeatureHandlers) PostFeatures(c *gin.Context) {
	marker := h.perfTracker.StartOperation("post_features_request", "")
	defer marker.Complete()

	identity, ok := middleware.GetIdentity(c)
	if !ok {
		respondError(c, errUnauthenticated, "Session not found")
		return
	}

	var batch services.FeatureBatch
	if err := c.ShouldBindJSON(&batch); err != nil {
		h.logger.Session().Warn("Invalid feature batch", "error", err.Error())
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Invalid feature batch"})
		return
	}

	log, err := h.featureService.Record(c.Request.Context(), identity.UserID, batch)
	if err != nil {
		marker.SetError(err)
		respondError(c, err, "Session not found")
		return
	}

	marker.SetSuccess(true)
	c.JSON(http.StatusAccepted, FeatureAccepted{
		ID:         log.ID,
		SessionID:  log.SessionID,
		ReceivedAt: log.ReceivedAt,
		Status:     "accepted",
	})
}
