// Package services provides application-level orchestration services
package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/commxr/commxr-go/internal/domain/apperrors"
	"github.com/commxr/commxr-go/internal/domain/entities/session"
	"github.com/commxr/commxr-go/internal/domain/repositories"
	"github.com/commxr/commxr-go/internal/infrastructure/observability/logging"
	"github.com/commxr/commxr-go/internal/infrastructure/observability/performance"
	"github.com/commxr/commxr-go/internal/infrastructure/security"
)

const (
	msgSessionNotFound  = "session not found"
	msgPermissionDenied = "You don't have permission to access this session"
)

// sessionLocks hands out one mutex per session id. Entries are dropped when the
// session is deleted so the map does not grow with retired sessions.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func (l *sessionLocks) get(id string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	return m
}

func (l *sessionLocks) forget(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.locks, id)
}

// SessionService creates, reads and ends sessions through the repository port.
// Ownership checks and end transitions for one id run under that id's lock.
type SessionService struct {
	repo        repositories.SessionRepository
	locks       *sessionLocks
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
	now         Clock
}

// NewSessionService creates a new session service
func NewSessionService(repo repositories.SessionRepository, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *SessionService {
	return &SessionService{
		repo:        repo,
		locks:       &sessionLocks{locks: make(map[string]*sync.Mutex)},
		logger:      logger,
		perfTracker: perfTracker,
		now:         time.Now,
	}
}

// Create starts a new active session owned by ownerID
func (s *SessionService) Create(ctx context.Context, ownerID string) (*session.Session, error) {
	marker := s.perfTracker.StartOperation("session:create", "")
	defer marker.Complete()

	sess := session.NewSession(security.GenerateSessionID(), ownerID, s.now())
	if err := s.repo.Save(ctx, sess); err != nil {
		marker.SetError(err)
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	marker.SessionID = sess.ID
	s.logger.WithSession(logging.ChannelSession, sess.ID).Info("Session created",
		"owner", logging.MaskUserID(ownerID))
	return sess.Clone(), nil
}

// Get returns the session or nil when it does not exist
func (s *SessionService) Get(ctx context.Context, id string) (*session.Session, error) {
	sess, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}
	return sess.Clone(), nil
}

// VerifyOwner returns the session when userID owns it. It fails with a
// NotFound error when absent and an Authorization error on owner mismatch.
func (s *SessionService) VerifyOwner(ctx context.Context, id, userID string) (*session.Session, error) {
	lock := s.locks.get(id)
	lock.Lock()
	defer lock.Unlock()

	return s.verifyOwnerLocked(ctx, id, userID)
}

func (s *SessionService) verifyOwnerLocked(ctx context.Context, id, userID string) (*session.Session, error) {
	const op = "sessions.verify_owner"

	sess, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}
	if sess == nil {
		return nil, apperrors.NotFound(op, msgSessionNotFound)
	}
	if sess.OwnerID != userID {
		s.logger.WithSession(logging.ChannelSession, id).Warn("Ownership check failed",
			"user", logging.MaskUserID(userID))
		return nil, apperrors.PermissionDenied(op, msgPermissionDenied)
	}
	return sess.Clone(), nil
}

// End marks a session ended. Ending an ended session returns it unchanged;
// an unknown id yields nil, nil.
func (s *SessionService) End(ctx context.Context, id string) (*session.Session, error) {
	lock := s.locks.get(id)
	lock.Lock()
	defer lock.Unlock()

	return s.endLocked(ctx, id)
}

func (s *SessionService) endLocked(ctx context.Context, id string) (*session.Session, error) {
	sess, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load session %s: %w", id, err)
	}
	if sess == nil {
		return nil, nil
	}

	if sess.End(s.now()) {
		if err := s.repo.Save(ctx, sess); err != nil {
			return nil, fmt.Errorf("failed to save session %s: %w", id, err)
		}
		s.logger.WithSession(logging.ChannelSession, id).Info("Session ended",
			"duration", sess.EndedAt.Sub(sess.StartedAt).String())
	}
	return sess.Clone(), nil
}

// EndOwned verifies ownership and ends the session under one lock.
// The bool reports whether this call performed the transition.
func (s *SessionService) EndOwned(ctx context.Context, id, userID string) (*session.Session, bool, error) {
	marker := s.perfTracker.StartOperation("session:end", id)
	defer marker.Complete()

	lock := s.locks.get(id)
	lock.Lock()
	defer lock.Unlock()

	before, err := s.verifyOwnerLocked(ctx, id, userID)
	if err != nil {
		marker.SetError(err)
		return nil, false, err
	}

	sess, err := s.endLocked(ctx, id)
	if err != nil {
		marker.SetError(err)
		return nil, false, err
	}
	if sess == nil {
		err := apperrors.NotFound("sessions.end", msgSessionNotFound)
		marker.SetError(err)
		return nil, false, err
	}
	return sess, !before.IsEnded(), nil
}

// PurgeEndedBefore deletes sessions that ended before cutoff and returns their ids
func (s *SessionService) PurgeEndedBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	ids, err := s.repo.ListEndedBefore(ctx, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list ended sessions: %w", err)
	}

	purged := make([]string, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return purged, err
		}

		lock := s.locks.get(id)
		lock.Lock()
		err := s.repo.Delete(ctx, id)
		lock.Unlock()
		if err != nil {
			s.logger.WithSession(logging.ChannelSession, id).Error("Failed to delete expired session", "error", err)
			continue
		}
		s.locks.forget(id)
		purged = append(purged, id)
	}
	return purged, nil
}
