// Package cleanup provides the background retention sweeper
package cleanup

import (
	"context"
	"log"
	"time"

	"github.com/commxr/commxr-go/internal/infrastructure/observability/logging"
)

// SessionPurger deletes sessions that ended before the cutoff
type SessionPurger interface {
	PurgeEndedBefore(ctx context.Context, cutoff time.Time) ([]string, error)
}

// MemoryClearer drops the conversation memory of a session
type MemoryClearer interface {
	Clear(sessionID string)
}

// FeatureForgetter drops stored feature batches of a session
type FeatureForgetter interface {
	Forget(ctx context.Context, sessionID string) error
}

// Worker removes ended sessions older than the retention period together
// with their conversation memory and feature logs.
type Worker struct {
	sessions SessionPurger
	memory   MemoryClearer
	features FeatureForgetter
	config   *Config
	logger   *logging.ChanneledLogger
	now      func() time.Time
}

// NewWorker creates a new sweeper with injected configuration
func NewWorker(sessions SessionPurger, memory MemoryClearer, features FeatureForgetter, config *Config, logger *logging.ChanneledLogger) *Worker {
	return &Worker{
		sessions: sessions,
		memory:   memory,
		features: features,
		config:   config,
		logger:   logger,
		now:      time.Now,
	}
}

// Start runs the sweep on every tick until ctx is done
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.config.SweepInterval)
	defer ticker.Stop()

	log.Printf("Session sweeper started (interval: %v, retention: %v)",
		w.config.SweepInterval, w.config.Retention)

	for {
		select {
		case <-ctx.Done():
			log.Println("Session sweeper stopping...")
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep performs one retention pass and returns the number of sessions removed
func (w *Worker) Sweep(ctx context.Context) int {
	start := w.now()
	cutoff := start.Add(-w.config.Retention)

	purged, err := w.sessions.PurgeEndedBefore(ctx, cutoff)
	if err != nil {
		w.logger.Cleanup().Error("Session sweep failed", "error", err, "purgedBeforeError", len(purged))
	}

	for _, id := range purged {
		w.memory.Clear(id)
		if w.features == nil {
			continue
		}
		if err := w.features.Forget(ctx, id); err != nil {
			w.logger.WithSession(logging.ChannelCleanup, id).Warn("Failed to delete feature logs", "error", err)
		}
	}

	duration := w.now().Sub(start)
	if len(purged) > 0 {
		w.logger.Cleanup().Info("Session sweep finished",
			"purged", len(purged), "cutoff", cutoff.UTC().Format(time.RFC3339), "duration", duration)
	} else if w.config.VerboseReporting {
		w.logger.Cleanup().Info("Session sweep completed, nothing expired", "duration", duration)
	}
	return len(purged)
}
