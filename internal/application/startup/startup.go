// Package startup prepares the application server
package startup

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/commxr/commxr-go/internal/application/container"
	"github.com/commxr/commxr-go/internal/infrastructure/cleanup"
	"github.com/commxr/commxr-go/internal/presentation/http/server"
	"github.com/commxr/commxr-go/pkg/config"
	"github.com/gin-gonic/gin"
)

// Initialize performs the complete startup sequence and blocks until shutdown
func Initialize() error {
	setupLogging()

	start := time.Now().UTC()

	ctx, cancelBackgroundTasks := context.WithCancel(context.Background())
	defer cancelBackgroundTasks()

	log.Println("\033[32m" + `
  comm-xr  ·  realtime conversation coaching
` + "\033[0m")

	// Step 1: Create dependency injection container (logger is created here)
	log.Println("Initializing dependency injection container...")
	appContainer, err := container.NewContainer(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize container: %w", err)
	}
	defer appContainer.Close()
	log.Println("✓ Dependency injection container created with singleton services.")

	logger := appContainer.Logger
	logger.Startup().Info("Container initialization complete - switching to channeled logging",
		"sessionStore", config.SessionStore,
		"rateLimitBackend", config.RateLimitBackend,
		"generativeBackend", appContainer.ResponseGenerator.Backend(),
		"transcription", config.AssemblyAIAPIKey != "",
		"sessionReports", appContainer.Reporter != nil)

	// Step 2: Start background retention sweeper
	logger.Startup().Info("Starting background session sweeper...")
	startWorkerTime := time.Now()

	sweeper := cleanup.NewWorker(
		appContainer.SessionService,
		appContainer.ConversationService,
		appContainer.FeatureService,
		cleanup.NewConfig(),
		logger,
	)
	go sweeper.Start(ctx)

	logger.Startup().Info("Background session sweeper started", "duration", time.Since(startWorkerTime))

	// Step 3: Start HTTP server
	logger.Startup().Info("Starting HTTP server...")
	startServerTime := time.Now()

	httpServer := server.New(config.Port, appContainer)
	port := config.Port

	logger.Startup().Info("HTTP server initialized", "port", port, "duration", time.Since(startServerTime))

	// Step 4: Setup graceful shutdown
	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		logger.System().Info("Starting HTTP server", "address", httpServer.Addr())
		if err := httpServer.Start(); err != nil {
			logger.System().Error("HTTP server failed", "error", err.Error())
			serverErr <- err
		}
	}()

	logger.Startup().Info("Application startup complete",
		"totalDuration", time.Since(start),
		"port", port)

	// Wait for shutdown signal or a listener failure
	select {
	case <-gracefulShutdown:
		logger.Shutdown().Info("Shutdown signal received, starting graceful shutdown...")
	case err := <-serverErr:
		cancelBackgroundTasks()
		return err
	}

	shutdownStart := time.Now()

	// Cancel background tasks
	cancelBackgroundTasks()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()

	logger.Shutdown().Info("Stopping HTTP server...")
	if err := httpServer.Stop(shutdownCtx); err != nil {
		logger.Shutdown().Error("Error during server shutdown", "error", err.Error())
	} else {
		logger.Shutdown().Info("HTTP server stopped successfully")
	}

	elapsed := time.Since(start)
	logger.Shutdown().Info("Application shutdown complete",
		"totalUptime", elapsed,
		"shutdownDuration", time.Since(shutdownStart))

	return nil
}

// setupLogging configures application logging
func setupLogging() {
	if os.Getenv("GIN_MODE") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	log.SetFlags(log.LstdFlags | log.Lshortfile)
}
