// Package realtime implements the websocket protocol between devices and the
// analysis pipeline.
package realtime

import (
	"sync"
	"time"

	"github.com/commxr/commxr-go/internal/infrastructure/messaging"
	"github.com/commxr/commxr-go/internal/infrastructure/security"
	"github.com/gorilla/websocket"
)

// WSConnection adapts a gorilla websocket to messaging.Connection. gorilla
// allows one concurrent writer, so every write takes writeMu.
type WSConnection struct {
	id        string
	ws        *websocket.Conn
	writeMu   sync.Mutex
	writeWait time.Duration
	closeOnce sync.Once
	closeErr  error
}

var _ messaging.Connection = (*WSConnection)(nil)

// NewWSConnection wraps ws. writeWait bounds every write.
func NewWSConnection(ws *websocket.Conn, writeWait time.Duration) *WSConnection {
	if writeWait <= 0 {
		writeWait = 10 * time.Second
	}
	return &WSConnection{id: security.GenerateULID(), ws: ws, writeWait: writeWait}
}

// ID returns the connection identifier
func (c *WSConnection) ID() string { return c.id }

// SendJSON writes payload as one text frame
func (c *WSConnection) SendJSON(payload any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeWait)); err != nil {
		return err
	}
	return c.ws.WriteJSON(payload)
}

// Ping sends a keepalive control frame
func (c *WSConnection) Ping() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeWait))
}

// CloseWithCode sends a close frame with code and reason, then closes the socket
func (c *WSConnection) CloseWithCode(code int, reason string) error {
	c.writeMu.Lock()
	_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(c.writeWait))
	c.writeMu.Unlock()
	return c.Close()
}

// Close closes the underlying socket. Repeated calls return the first result.
func (c *WSConnection) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.ws.Close()
	})
	return c.closeErr
}
