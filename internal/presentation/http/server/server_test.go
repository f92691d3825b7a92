package server

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/commxr/commxr-go/internal/application/container"
	"github.com/commxr/commxr-go/internal/infrastructure/messaging"
	"github.com/commxr/commxr-go/internal/infrastructure/observability/logging"
	"github.com/commxr/commxr-go/internal/infrastructure/observability/performance"
	"github.com/commxr/commxr-go/internal/presentation/realtime"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type socketStub struct {
	id     string
	mu     sync.Mutex
	sent   []any
	closed bool
}

func (s *socketStub) ID() string { return s.id }

func (s *socketStub) SendJSON(payload any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, payload)
	return nil
}

func (s *socketStub) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func newTestServer(port string) (*Server, *messaging.ConnectionRegistry) {
	gin.SetMode(gin.TestMode)
	logger := logging.NewNopLogger()
	registry := messaging.NewConnectionRegistry(logger)
	c := &container.Container{
		Connections: registry,
		Logger:      logger,
		PerfTracker: performance.NewTracker(nil),
	}
	return New(port, c), registry
}

func TestNewUsesGivenPort(t *testing.T) {
	srv, _ := newTestServer("9123")
	assert.Equal(t, ":9123", srv.Addr())
}

func TestStopAnnouncesShutdownThenClosesSockets(t *testing.T) {
	srv, registry := newTestServer("0")
	a, b := &socketStub{id: "a"}, &socketStub{id: "b"}
	registry.Register(a, "s1")
	registry.Register(b, "s2")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))

	for _, s := range []*socketStub{a, b} {
		require.Len(t, s.sent, 1)
		envelope, ok := s.sent[0].(realtime.Envelope)
		require.True(t, ok)
		assert.Equal(t, realtime.TypeServerShutdown, envelope.Type)
		assert.NotEmpty(t, envelope.Timestamp)
		assert.True(t, s.closed)
	}
	assert.Equal(t, 0, registry.ConnectionCount())
}
