// Package session provides the domain entity for a coaching session owned by
// a single authenticated user.
package session

import "time"

// Status is the lifecycle state of a session
type Status string

const (
	StatusActive Status = "active"
	StatusEnded  Status = "ended"
)

// Session represents one bounded interaction between a user and the assistant
type Session struct {
	ID        string     `json:"id"`
	OwnerID   string     `json:"owner_id"`
	Status    Status     `json:"status"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at"`
}

// NewSession creates an active session started at now
func NewSession(id, ownerID string, now time.Time) *Session {
	return &Session{
		ID:        id,
		OwnerID:   ownerID,
		Status:    StatusActive,
		StartedAt: now.UTC(),
	}
}

// IsEnded reports whether the session has been ended
func (s *Session) IsEnded() bool {
	return s.Status == StatusEnded
}

// End marks the session ended at now. Ending twice keeps the first end time.
func (s *Session) End(now time.Time) bool {
	if s.IsEnded() {
		return false
	}
	t := now.UTC()
	s.Status = StatusEnded
	s.EndedAt = &t
	return true
}

// Clone returns a copy safe to hand to callers outside the registry lock
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	if s.EndedAt != nil {
		t := *s.EndedAt
		c.EndedAt = &t
	}
	return &c
}
