// Package server provides HTTP server initialization and management.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/commxr/commxr-go/internal/application/container"
	"github.com/commxr/commxr-go/internal/presentation/http/routes"
	"github.com/commxr/commxr-go/internal/presentation/realtime"
	"github.com/commxr/commxr-go/pkg/config"
)

// Server wraps the HTTP server and the realtime connections it hands out
type Server struct {
	httpServer *http.Server
	container  *container.Container
}

// New creates a new HTTP server instance with dependency injection.
// An empty port falls back to PORT.
func New(port string, container *container.Container) *Server {
	if port == "" {
		port = config.Port
	}
	router := routes.SetupRoutes(container)

	httpServer := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadTimeout:       config.ServerReadTimeout,
		ReadHeaderTimeout: config.ServerReadTimeout,
		WriteTimeout:      config.ServerWriteTimeout,
		IdleTimeout:       config.ServerIdleTimeout,
	}

	return &Server{
		httpServer: httpServer,
		container:  container,
	}
}

// Addr returns the listen address
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start begins listening for HTTP requests
func (s *Server) Start() error {
	log.Printf("Starting HTTP server on %s", s.httpServer.Addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	return nil
}

// Stop announces SERVER_SHUTDOWN to realtime clients, drains HTTP requests
// and then closes the websockets, which Shutdown does not track once hijacked.
func (s *Server) Stop(ctx context.Context) error {
	logger := s.container.Logger
	connections := s.container.Connections

	notified := connections.Broadcast(realtime.NewEnvelope(realtime.TypeServerShutdown, time.Now()))
	logger.Shutdown().Info("Realtime clients notified", "connections", notified)

	log.Println("Shutting down HTTP server...")
	err := s.httpServer.Shutdown(ctx)

	closed := connections.CloseAll()
	logger.Shutdown().Info("Realtime connections closed", "connections", closed)
	return err
}
