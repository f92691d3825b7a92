// Package features provides storage for out-of-band feature batches.
package features

import (
	"context"
	"sync"

	"github.com/commxr/commxr-go/internal/domain/entities/feature"
)

// MemoryRepository appends feature logs to an in-process slice.
type MemoryRepository struct {
	mu   sync.RWMutex
	logs []*feature.Log
}

// NewMemoryRepository creates an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) Store(_ context.Context, log *feature.Log) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, log)
	return nil
}

func (r *MemoryRepository) CountBySession(_ context.Context, sessionID string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, l := range r.logs {
		if l.SessionID != nil && *l.SessionID == sessionID {
			n++
		}
	}
	return n, nil
}

func (r *MemoryRepository) DeleteBySession(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.logs[:0]
	for _, l := range r.logs {
		if l.SessionID == nil || *l.SessionID != sessionID {
			kept = append(kept, l)
		}
	}
	r.logs = kept
	return nil
}
