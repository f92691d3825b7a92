// Package sessions provides the in-memory and SQL implementations of the
// session repository port.
package sessions

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/commxr/commxr-go/internal/domain/entities/session"
)

// MemoryRepository keeps sessions in a mutex-guarded map.
type MemoryRepository struct {
	mu       sync.RWMutex
	sessions map[string]*session.Session
}

// NewMemoryRepository creates an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{sessions: make(map[string]*session.Session)}
}

// Get returns a copy of the session, or nil when absent.
func (r *MemoryRepository) Get(_ context.Context, id string) (*session.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sessions[id].Clone(), nil
}

// Save inserts or replaces the session.
func (r *MemoryRepository) Save(_ context.Context, s *session.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s.Clone()
	return nil
}

// Delete removes the session. Unknown ids are ignored.
func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}

// ListEndedBefore returns ids of sessions ended strictly before cutoff, sorted.
func (r *MemoryRepository) ListEndedBefore(_ context.Context, cutoff time.Time) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []string
	for id, s := range r.sessions {
		if s.IsEnded() && s.EndedAt != nil && s.EndedAt.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}
