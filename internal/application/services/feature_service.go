package services

import (
	"context"
	"fmt"
	"time"

	"github.com/commxr/commxr-go/internal/domain/entities/feature"
	"github.com/commxr/commxr-go/internal/domain/repositories"
	"github.com/commxr/commxr-go/internal/infrastructure/observability/logging"
	"github.com/commxr/commxr-go/internal/infrastructure/observability/performance"
	"github.com/commxr/commxr-go/internal/infrastructure/security"
)

// FeatureBatch is an out-of-band set of device measurements
type FeatureBatch struct {
	SessionID *string            `json:"session_id"`
	Timestamp *time.Time         `json:"timestamp"`
	Facial    map[string]float64 `json:"facial"`
	Gaze      map[string]float64 `json:"gaze"`
	Voice     map[string]float64 `json:"voice"`
	Extras    map[string]any     `json:"extras"`
}

// FeatureService records feature batches, checking session ownership when one is referenced
type FeatureService struct {
	repo        repositories.FeatureLogRepository
	sessions    *SessionService
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
	now         Clock
}

// NewFeatureService creates a new feature service
func NewFeatureService(repo repositories.FeatureLogRepository, sessions *SessionService, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *FeatureService {
	return &FeatureService{
		repo:        repo,
		sessions:    sessions,
		logger:      logger,
		perfTracker: perfTracker,
		now:         time.Now,
	}
}

// Record stores the batch. A referenced session must exist and belong to userID.
func (s *FeatureService) Record(ctx context.Context, userID string, batch FeatureBatch) (*feature.Log, error) {
	sessionID := ""
	if batch.SessionID != nil {
		sessionID = *batch.SessionID
	}
	marker := s.perfTracker.StartOperation("features:record", sessionID)
	defer marker.Complete()

	if batch.SessionID != nil {
		if _, err := s.sessions.VerifyOwner(ctx, *batch.SessionID, userID); err != nil {
			marker.SetError(err)
			return nil, err
		}
	}

	log := &feature.Log{
		ID:              security.GenerateULID(),
		SessionID:       batch.SessionID,
		ReceivedAt:      s.now().UTC(),
		ClientTimestamp: batch.Timestamp,
		Facial:          batch.Facial,
		Gaze:            batch.Gaze,
		Voice:           batch.Voice,
		Extras:          batch.Extras,
	}
	if err := s.repo.Store(ctx, log); err != nil {
		marker.SetError(err)
		return nil, fmt.Errorf("failed to store feature log: %w", err)
	}

	s.logger.Session().Debug("Feature batch accepted",
		"featureLogId", log.ID,
		"facial", len(batch.Facial), "gaze", len(batch.Gaze), "voice", len(batch.Voice))
	return log, nil
}

// Forget removes all feature batches of a retired session
func (s *FeatureService) Forget(ctx context.Context, sessionID string) error {
	return s.repo.DeleteBySession(ctx, sessionID)
}
