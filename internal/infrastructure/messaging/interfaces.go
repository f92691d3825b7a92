// Package messaging defines interfaces for real-time communication.
package messaging

// Connection is one live client channel. SendJSON must be safe for concurrent use.
type Connection interface {
	ID() string
	SendJSON(payload any) error
	Close() error
}

// Registry tracks live connections per session and fans messages out to them.
type Registry interface {
	Register(conn Connection, sessionID string)
	Unregister(conn Connection)
	SendToSession(sessionID string, payload any) int
	Broadcast(payload any) int
	SessionConnectionCount(sessionID string) int
}
