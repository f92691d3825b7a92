// Package performance provides performance monitoring data structures and utilities
// for tracking pipeline stages and request handling across the coaching backend.
package performance

import (
	"sync"
	"time"
)

// Marker represents a single performance measurement for an operation
type Marker struct {
	Operation string         `json:"operation"`       // e.g., "pipeline:transcribe", "session:create"
	SessionID string         `json:"sessionId"`       // Session the operation ran for, if any
	StartTime time.Time      `json:"startTime"`       // When the operation started
	EndTime   time.Time      `json:"endTime"`         // When the operation completed
	Duration  time.Duration  `json:"duration"`        // Total operation duration
	Success   bool           `json:"success"`         // Whether the operation completed successfully
	Error     string         `json:"error,omitempty"` // Error message if operation failed
	Metadata  map[string]any `json:"metadata"`        // Additional operation-specific data
	Completed bool           `json:"completed"`       // Whether Complete() has been called

	mu      sync.Mutex
	tracker *Tracker
}

// Complete marks the operation as finished and records it with its tracker
func (m *Marker) Complete() {
	m.mu.Lock()
	if m.Completed {
		m.mu.Unlock()
		return
	}
	m.EndTime = time.Now()
	m.Duration = m.EndTime.Sub(m.StartTime)
	m.Completed = true
	m.mu.Unlock()

	if m.tracker != nil {
		m.tracker.record(m)
	}
}

// SetSuccess marks the operation as successful or failed
func (m *Marker) SetSuccess(success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Success = success
}

// SetError sets an error message and marks the operation as failed
func (m *Marker) SetError(err error) {
	if err == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Error = err.Error()
	m.Success = false
}

// AddMetadata adds key-value metadata to the marker
func (m *Marker) AddMetadata(key string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Metadata == nil {
		m.Metadata = make(map[string]any)
	}
	m.Metadata[key] = value
}

// Elapsed returns the running duration, or the final one once completed
func (m *Marker) Elapsed() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Completed {
		return m.Duration
	}
	return time.Since(m.StartTime)
}

// Record is an immutable copy of a completed marker
type Record struct {
	Operation string        `json:"operation"`
	SessionID string        `json:"sessionId,omitempty"`
	EndTime   time.Time     `json:"endTime"`
	Duration  time.Duration `json:"duration"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
}

// OperationStats aggregates completed markers for one operation name
type OperationStats struct {
	Operation   string        `json:"operation"`
	Count       int           `json:"count"`
	Failures    int           `json:"failures"`
	AvgDuration time.Duration `json:"avgDuration"`
	MaxDuration time.Duration `json:"maxDuration"`
	LastError   string        `json:"lastError,omitempty"`
}

// HealthStatus represents the overall health of a system component
type HealthStatus string

const (
	HealthHealthy   HealthStatus = "healthy"   // All operations performing within normal parameters
	HealthDegraded  HealthStatus = "degraded"  // Some operations showing performance issues
	HealthUnhealthy HealthStatus = "unhealthy" // Significant performance problems detected
	HealthUnknown   HealthStatus = "unknown"   // Unable to determine health status
)

// Snapshot is a point-in-time view of tracked operations
type Snapshot struct {
	Timestamp        time.Time                 `json:"timestamp"`
	Uptime           string                    `json:"uptime"`
	OverallHealth    HealthStatus              `json:"overallHealth"`
	ActiveOperations int                       `json:"activeOperations"`
	Operations       map[string]OperationStats `json:"operations"`
}
