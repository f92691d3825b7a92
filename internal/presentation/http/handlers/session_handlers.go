package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/commxr/commxr-go/internal/application/services"
	"github.com/commxr/commxr-go/internal/domain/entities/session"
	"github.com/commxr/commxr-go/internal/domain/providers"
	"github.com/commxr/commxr-go/internal/infrastructure/messaging"
	"github.com/commxr/commxr-go/internal/infrastructure/observability/logging"
	"github.com/commxr/commxr-go/internal/infrastructure/observability/performance"
	"github.com/commxr/commxr-go/internal/presentation/http/middleware"
	"github.com/commxr/commxr-go/internal/presentation/realtime"
	"github.com/gin-gonic/gin"
)

const reportTimeout = 30 * time.Second

// TranscriptSource renders a session's conversation memory as text
type TranscriptSource interface {
	SummaryText(sessionID string) string
}

// SessionResponse is the public view of a session
type SessionResponse struct {
	ID        string         `json:"id"`
	Status    session.Status `json:"status"`
	StartedAt time.Time      `json:"started_at"`
	EndedAt   *time.Time     `json:"ended_at"`
}

func toSessionResponse(s *session.Session) SessionResponse {
	return SessionResponse{
		ID:        s.ID,
		Status:    s.Status,
		StartedAt: s.StartedAt,
		EndedAt:   s.EndedAt,
	}
}

// SessionHandlers contains all session-related HTTP handlers
type SessionHandlers struct {
	sessionService *services.SessionService
	registry       messaging.Registry
	transcripts    TranscriptSource
	reporter       providers.SessionReporter
	logger         *logging.ChanneledLogger
	perfTracker    *performance.Tracker
}

// NewSessionHandlers creates session handlers with injected dependencies.
// reporter may be nil when no mail provider is configured.
func NewSessionHandlers(sessionService *services.SessionService, registry messaging.Registry, transcripts TranscriptSource, reporter providers.SessionReporter, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *SessionHandlers {
	return &SessionHandlers{
		sessionService: sessionService,
		registry:       registry,
		transcripts:    transcripts,
		reporter:       reporter,
		logger:         logger,
		perfTracker:    perfTracker,
	}
}

// PostSession handles POST /api/sessions
func (h *SessionHandlers) PostSession(c *gin.Context) {
	marker := h.perfTracker.StartOperation("post_session_request", "")
	defer marker.Complete()

	identity, ok := middleware.GetIdentity(c)
	if !ok {
		respondError(c, errUnauthenticated, "Not found")
		return
	}

	sess, err := h.sessionService.Create(c.Request.Context(), identity.UserID)
	if err != nil {
		marker.SetError(err)
		h.logger.Session().Error("Failed to create session", "error", err)
		respondError(c, err, "Not found")
		return
	}

	marker.SetSuccess(true)
	h.logger.Perf().Info("Performance for PostSession request", "duration", marker.Elapsed(), "success", true)
	c.JSON(http.StatusCreated, toSessionResponse(sess))
}

// GetSession handles GET /api/sessions/:id
func (h *SessionHandlers) GetSession(c *gin.Context) {
	id := c.Param("id")
	marker := h.perfTracker.StartOperation("get_session_request", id)
	defer marker.Complete()

	identity, ok := middleware.GetIdentity(c)
	if !ok {
		respondError(c, errUnauthenticated, "Not found")
		return
	}

	sess, err := h.sessionService.VerifyOwner(c.Request.Context(), id, identity.UserID)
	if err != nil {
		marker.SetError(err)
		respondError(c, err, "Not found")
		return
	}

	marker.SetSuccess(true)
	c.JSON(http.StatusOK, toSessionResponse(sess))
}

// EndSession handles POST /api/sessions/:id/end. The first successful end
// notifies live connections and mails the transcript when possible.
func (h *SessionHandlers) EndSession(c *gin.Context) {
	id := c.Param("id")
	marker := h.perfTracker.StartOperation("end_session_request", id)
	defer marker.Complete()

	identity, ok := middleware.GetIdentity(c)
	if !ok {
		respondError(c, errUnauthenticated, "Not found")
		return
	}

	sess, transitioned, err := h.sessionService.EndOwned(c.Request.Context(), id, identity.UserID)
	if err != nil {
		marker.SetError(err)
		respondError(c, err, "Not found")
		return
	}

	if transitioned {
		envelope := realtime.NewEnvelope(realtime.TypeSessionEnded, time.Now())
		envelope.SessionID = sess.ID
		delivered := h.registry.SendToSession(sess.ID, envelope)
		h.logger.WithSession(logging.ChannelSession, sess.ID).Info("Session end announced", "connections", delivered)

		if h.reporter != nil && identity.Email != "" {
			go h.sendReport(identity.Email, sess.ID)
		}
	}

	marker.SetSuccess(true)
	marker.AddMetadata("transitioned", transitioned)
	h.logger.Perf().Info("Performance for EndSession request", "duration", marker.Elapsed(), "transitioned", transitioned)
	c.JSON(http.StatusOK, toSessionResponse(sess))
}

func (h *SessionHandlers) sendReport(to, sessionID string) {
	ctx, cancel := context.WithTimeout(context.Background(), reportTimeout)
	defer cancel()

	transcript := h.transcripts.SummaryText(sessionID)
	if err := h.reporter.SendSessionReport(ctx, to, sessionID, transcript); err != nil {
		h.logger.Email().Warn("Session report not sent", "sessionId", logging.MaskSessionID(sessionID), "error", err)
	}
}
