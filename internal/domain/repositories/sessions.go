// Package repositories defines the storage ports for sessions and feature logs.
// Adapters live under infrastructure/persistence; the application layer only
// sees these interfaces.
package repositories

import (
	"context"
	"time"

	"github.com/commxr/commxr-go/internal/domain/entities/feature"
	"github.com/commxr/commxr-go/internal/domain/entities/session"
)

// SessionRepository stores sessions keyed by id. Get returns nil, nil when absent.
type SessionRepository interface {
	Get(ctx context.Context, id string) (*session.Session, error)
	Save(ctx context.Context, s *session.Session) error
	Delete(ctx context.Context, id string) error
	// ListEndedBefore returns ids of sessions that ended strictly before cutoff.
	ListEndedBefore(ctx context.Context, cutoff time.Time) ([]string, error)
}

// FeatureLogRepository appends out-of-band feature batches.
type FeatureLogRepository interface {
	Store(ctx context.Context, log *feature.Log) error
	CountBySession(ctx context.Context, sessionID string) (int, error)
	DeleteBySession(ctx context.Context, sessionID string) error
}
