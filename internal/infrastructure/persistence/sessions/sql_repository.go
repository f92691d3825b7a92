package sessions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/commxr/commxr-go/internal/domain/entities/session"
	"github.com/commxr/commxr-go/internal/infrastructure/observability/logging"
	"github.com/commxr/commxr-go/internal/infrastructure/persistence/database"
)

// SQLRepository is the SQL-based implementation of the SessionRepository.
type SQLRepository struct {
	db     *database.DB
	logger *logging.ChanneledLogger
}

// NewSQLRepository creates a new instance of the repository.
func NewSQLRepository(db *database.DB, logger *logging.ChanneledLogger) *SQLRepository {
	return &SQLRepository{db: db, logger: logger}
}

// Get retrieves a session by id. Missing rows yield nil, nil.
func (r *SQLRepository) Get(ctx context.Context, id string) (*session.Session, error) {
	const query = `
		SELECT id, owner_id, status, started_at, ended_at
		FROM sessions
		WHERE id = ?`

	start := time.Now()
	row := r.db.QueryRowContext(ctx, query, id)

	var (
		s         session.Session
		status    string
		startedAt string
		endedAt   sql.NullString
	)
	err := row.Scan(&s.ID, &s.OwnerID, &status, &startedAt, &endedAt)
	r.db.CheckSlowQuery(query, time.Since(start))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Database().Error("Failed to load session", "error", err.Error())
		return nil, err
	}

	s.Status = session.Status(status)
	if s.StartedAt, err = database.ParseTime(startedAt); err != nil {
		return nil, fmt.Errorf("invalid started_at for session %s: %w", s.ID, err)
	}
	if endedAt.Valid {
		t, err := database.ParseTime(endedAt.String)
		if err != nil {
			return nil, fmt.Errorf("invalid ended_at for session %s: %w", s.ID, err)
		}
		s.EndedAt = &t
	}
	return &s, nil
}

// Save upserts the session row.
func (r *SQLRepository) Save(ctx context.Context, s *session.Session) error {
	const query = `
		INSERT INTO sessions (id, owner_id, status, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			owner_id = excluded.owner_id,
			status = excluded.status,
			started_at = excluded.started_at,
			ended_at = excluded.ended_at`

	var endedAt any
	if s.EndedAt != nil {
		endedAt = database.FormatTime(*s.EndedAt)
	}

	start := time.Now()
	_, err := r.db.ExecContext(ctx, query, s.ID, s.OwnerID, string(s.Status), database.FormatTime(s.StartedAt), endedAt)
	r.db.CheckSlowQuery(query, time.Since(start))
	if err != nil {
		r.logger.Database().Error("Failed to save session", "error", err.Error())
		return err
	}
	r.logger.Database().Debug("Session saved", "status", s.Status, "duration", time.Since(start))
	return nil
}

// Delete removes the session row.
func (r *SQLRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM sessions WHERE id = ?`

	start := time.Now()
	_, err := r.db.ExecContext(ctx, query, id)
	r.db.CheckSlowQuery(query, time.Since(start))
	return err
}

// ListEndedBefore returns ids of sessions that ended strictly before cutoff.
func (r *SQLRepository) ListEndedBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	const query = `
		SELECT id FROM sessions
		WHERE status = ? AND ended_at IS NOT NULL AND ended_at < ?
		ORDER BY id`

	start := time.Now()
	rows, err := r.db.QueryContext(ctx, query, string(session.StatusEnded), database.FormatTime(cutoff))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	r.db.CheckSlowQuery(query, time.Since(start))
	return ids, rows.Err()
}
