// Package messaging provides the registry of live realtime connections.
package messaging

import (
	"sync"

	"github.com/commxr/commxr-go/internal/infrastructure/observability/logging"
)

// ConnectionRegistry indexes connections by session and sessions by connection.
// Sends happen outside the lock on a snapshot; a connection whose send fails is
// unregistered and closed without affecting delivery to the others.
type ConnectionRegistry struct {
	mu       sync.Mutex
	sessions map[string]map[Connection]struct{}
	bindings map[Connection]string
	logger   *logging.ChanneledLogger
}

var _ Registry = (*ConnectionRegistry)(nil)

// NewConnectionRegistry creates an empty registry
func NewConnectionRegistry(logger *logging.ChanneledLogger) *ConnectionRegistry {
	return &ConnectionRegistry{
		sessions: make(map[string]map[Connection]struct{}),
		bindings: make(map[Connection]string),
		logger:   logger,
	}
}

// Register binds conn to sessionID. Re-registering moves the binding.
func (r *ConnectionRegistry) Register(conn Connection, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if previous, ok := r.bindings[conn]; ok {
		r.removeLocked(conn, previous)
	}
	if r.sessions[sessionID] == nil {
		r.sessions[sessionID] = make(map[Connection]struct{})
	}
	r.sessions[sessionID][conn] = struct{}{}
	r.bindings[conn] = sessionID

	r.logger.WithSession(logging.ChannelRealtime, sessionID).Debug("Connection registered",
		"connectionId", conn.ID(), "sessionConnections", len(r.sessions[sessionID]))
}

// Unregister removes conn. Unknown connections are ignored.
func (r *ConnectionRegistry) Unregister(conn Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessionID, ok := r.bindings[conn]
	if !ok {
		return
	}
	r.removeLocked(conn, sessionID)
	r.logger.WithSession(logging.ChannelRealtime, sessionID).Debug("Connection unregistered", "connectionId", conn.ID())
}

func (r *ConnectionRegistry) removeLocked(conn Connection, sessionID string) {
	delete(r.bindings, conn)
	if set, ok := r.sessions[sessionID]; ok {
		delete(set, conn)
		if len(set) == 0 {
			delete(r.sessions, sessionID)
		}
	}
}

// SendToSession delivers payload to every connection of the session and
// returns how many sends succeeded.
func (r *ConnectionRegistry) SendToSession(sessionID string, payload any) int {
	r.mu.Lock()
	targets := make([]Connection, 0, len(r.sessions[sessionID]))
	for conn := range r.sessions[sessionID] {
		targets = append(targets, conn)
	}
	r.mu.Unlock()

	return r.deliver(targets, payload)
}

// Broadcast delivers payload to every registered connection
func (r *ConnectionRegistry) Broadcast(payload any) int {
	r.mu.Lock()
	targets := make([]Connection, 0, len(r.bindings))
	for conn := range r.bindings {
		targets = append(targets, conn)
	}
	r.mu.Unlock()

	return r.deliver(targets, payload)
}

func (r *ConnectionRegistry) deliver(targets []Connection, payload any) int {
	delivered := 0
	for _, conn := range targets {
		if err := conn.SendJSON(payload); err != nil {
			r.logger.Realtime().Warn("Send failed, dropping connection", "connectionId", conn.ID(), "error", err)
			r.Unregister(conn)
			_ = conn.Close()
			continue
		}
		delivered++
	}
	return delivered
}

// SessionConnectionCount returns the number of live connections for a session
func (r *ConnectionRegistry) SessionConnectionCount(sessionID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions[sessionID])
}

// ConnectionCount returns the total number of live connections
func (r *ConnectionRegistry) ConnectionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bindings)
}

// CloseAll unregisters and closes every connection, returning how many were closed
func (r *ConnectionRegistry) CloseAll() int {
	r.mu.Lock()
	targets := make([]Connection, 0, len(r.bindings))
	for conn := range r.bindings {
		targets = append(targets, conn)
	}
	r.sessions = make(map[string]map[Connection]struct{})
	r.bindings = make(map[Connection]string)
	r.mu.Unlock()

	for _, conn := range targets {
		_ = conn.Close()
	}
	return len(targets)
}
