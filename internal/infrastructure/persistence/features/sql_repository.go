package features

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/commxr/commxr-go/internal/domain/entities/feature"
	"github.com/commxr/commxr-go/internal/infrastructure/observability/logging"
	"github.com/commxr/commxr-go/internal/infrastructure/persistence/database"
)

// SQLRepository stores feature batches with their maps as JSON text columns.
type SQLRepository struct {
	db     *database.DB
	logger *logging.ChanneledLogger
}

// NewSQLRepository creates a new instance of the repository.
func NewSQLRepository(db *database.DB, logger *logging.ChanneledLogger) *SQLRepository {
	return &SQLRepository{db: db, logger: logger}
}

// Store inserts one feature log.
func (r *SQLRepository) Store(ctx context.Context, log *feature.Log) error {
	const query = `
		INSERT INTO feature_logs (id, session_id, received_at, client_timestamp, facial, gaze, voice, extras)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	facial, err := jsonColumn(log.Facial)
	if err != nil {
		return fmt.Errorf("failed to encode facial features: %w", err)
	}
	gaze, err := jsonColumn(log.Gaze)
	if err != nil {
		return fmt.Errorf("failed to encode gaze features: %w", err)
	}
	voice, err := jsonColumn(log.Voice)
	if err != nil {
		return fmt.Errorf("failed to encode voice features: %w", err)
	}
	extras, err := jsonColumn(log.Extras)
	if err != nil {
		return fmt.Errorf("failed to encode extras: %w", err)
	}

	var sessionID, clientTS any
	if log.SessionID != nil {
		sessionID = *log.SessionID
	}
	if log.ClientTimestamp != nil {
		clientTS = database.FormatTime(*log.ClientTimestamp)
	}

	start := time.Now()
	_, err = r.db.ExecContext(ctx, query, log.ID, sessionID, database.FormatTime(log.ReceivedAt), clientTS, facial, gaze, voice, extras)
	r.db.CheckSlowQuery(query, time.Since(start))
	if err != nil {
		r.logger.Database().Error("Failed to store feature log", "error", err.Error())
		return err
	}
	return nil
}

// CountBySession returns how many batches reference the session.
func (r *SQLRepository) CountBySession(ctx context.Context, sessionID string) (int, error) {
	const query = `SELECT COUNT(*) FROM feature_logs WHERE session_id = ?`

	var n int
	if err := r.db.QueryRowContext(ctx, query, sessionID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// DeleteBySession removes every batch referencing the session.
func (r *SQLRepository) DeleteBySession(ctx context.Context, sessionID string) error {
	const query = `DELETE FROM feature_logs WHERE session_id = ?`

	start := time.Now()
	_, err := r.db.ExecContext(ctx, query, sessionID)
	r.db.CheckSlowQuery(query, time.Since(start))
	return err
}

func jsonColumn[T any](m map[string]T) (any, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}
