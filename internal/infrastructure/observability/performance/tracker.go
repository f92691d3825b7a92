// Package performance provides performance tracking and monitoring capabilities
// for pipeline stages and HTTP operations with bounded retention.
package performance

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Tracker manages performance markers and provides metrics aggregation
type Tracker struct {
	active    map[*Marker]struct{} // Markers started but not completed
	completed []*Marker            // Ring of recently completed markers
	next      int                  // Next write position in completed
	stats     map[string]*OperationStats
	mu        sync.RWMutex
	started   time.Time
	config    *TrackerConfig
}

// TrackerConfig contains configuration options for the performance tracker
type TrackerConfig struct {
	MaxMarkers             int           `json:"maxMarkers"`             // Maximum number of completed markers to retain
	SlowOperationThreshold time.Duration `json:"slowOperationThreshold"` // Average above this marks health degraded
	FailureRatioThreshold  float64       `json:"failureRatioThreshold"`  // Failure ratio above this marks health unhealthy
}

// DefaultTrackerConfig returns a sensible default configuration
func DefaultTrackerConfig() *TrackerConfig {
	return &TrackerConfig{
		MaxMarkers:             1000,
		SlowOperationThreshold: 5 * time.Second,
		FailureRatioThreshold:  0.5,
	}
}

// NewTracker creates a new performance tracker with the given configuration
func NewTracker(config *TrackerConfig) *Tracker {
	if config == nil {
		config = DefaultTrackerConfig()
	}
	if config.MaxMarkers <= 0 {
		config.MaxMarkers = DefaultTrackerConfig().MaxMarkers
	}

	return &Tracker{
		active:    make(map[*Marker]struct{}),
		completed: make([]*Marker, 0, config.MaxMarkers),
		stats:     make(map[string]*OperationStats),
		started:   time.Now(),
		config:    config,
	}
}

// StartOperation creates and tracks a new performance marker for an operation
func (t *Tracker) StartOperation(operation, sessionID string) *Marker {
	marker := &Marker{
		Operation: operation,
		SessionID: sessionID,
		StartTime: time.Now(),
		Metadata:  make(map[string]any),
		Success:   true, // Assume success until proven otherwise
		tracker:   t,
	}

	t.mu.Lock()
	t.active[marker] = struct{}{}
	t.mu.Unlock()

	return marker
}

// StartOperationWithContext creates a performance marker that fails itself when ctx ends first
func (t *Tracker) StartOperationWithContext(ctx context.Context, operation, sessionID string) *Marker {
	marker := t.StartOperation(operation, sessionID)

	go func() {
		<-ctx.Done()
		marker.mu.Lock()
		done := marker.Completed
		marker.mu.Unlock()
		if !done {
			marker.SetError(ctx.Err())
			marker.Complete()
		}
	}()

	return marker
}

func (t *Tracker) record(m *Marker) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.active, m)

	if len(t.completed) < t.config.MaxMarkers {
		t.completed = append(t.completed, m)
	} else {
		t.completed[t.next] = m
		t.next = (t.next + 1) % t.config.MaxMarkers
	}

	m.mu.Lock()
	op, duration, success, errMsg := m.Operation, m.Duration, m.Success, m.Error
	m.mu.Unlock()

	s, ok := t.stats[op]
	if !ok {
		s = &OperationStats{Operation: op}
		t.stats[op] = s
	}
	s.AvgDuration = (s.AvgDuration*time.Duration(s.Count) + duration) / time.Duration(s.Count+1)
	s.Count++
	if duration > s.MaxDuration {
		s.MaxDuration = duration
	}
	if !success {
		s.Failures++
		s.LastError = errMsg
	}
}

// GetRecent returns up to limit recently completed operations, newest first
func (t *Tracker) GetRecent(limit int) []Record {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Record, 0, len(t.completed))
	for _, m := range t.completed {
		m.mu.Lock()
		out = append(out, Record{
			Operation: m.Operation,
			SessionID: m.SessionID,
			EndTime:   m.EndTime,
			Duration:  m.Duration,
			Success:   m.Success,
			Error:     m.Error,
		})
		m.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EndTime.After(out[j].EndTime) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// GetStats returns aggregated statistics per operation
func (t *Tracker) GetStats() map[string]OperationStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]OperationStats, len(t.stats))
	for k, v := range t.stats {
		out[k] = *v
	}
	return out
}

// TakeSnapshot captures the current state of all operations
func (t *Tracker) TakeSnapshot() *Snapshot {
	stats := t.GetStats()

	t.mu.RLock()
	active := len(t.active)
	t.mu.RUnlock()

	return &Snapshot{
		Timestamp:        time.Now().UTC(),
		Uptime:           time.Since(t.started).Round(time.Second).String(),
		OverallHealth:    t.calculateHealth(stats),
		ActiveOperations: active,
		Operations:       stats,
	}
}

func (t *Tracker) calculateHealth(stats map[string]OperationStats) HealthStatus {
	if len(stats) == 0 {
		return HealthUnknown
	}

	health := HealthHealthy
	for _, s := range stats {
		if s.Count == 0 {
			continue
		}
		if float64(s.Failures)/float64(s.Count) > t.config.FailureRatioThreshold {
			return HealthUnhealthy
		}
		if s.AvgDuration > t.config.SlowOperationThreshold {
			health = HealthDegraded
		}
	}
	return health
}

// Reset drops all retained markers and statistics
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active = make(map[*Marker]struct{})
	t.completed = t.completed[:0]
	t.next = 0
	t.stats = make(map[string]*OperationStats)
}
