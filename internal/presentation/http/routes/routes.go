// Package routes provides HTTP route configuration for the presentation layer.
package routes

import (
	"github.com/commxr/commxr-go/internal/application/container"
	"github.com/commxr/commxr-go/internal/domain/providers"
	"github.com/commxr/commxr-go/internal/presentation/http/handlers"
	"github.com/commxr/commxr-go/internal/presentation/http/middleware"
	"github.com/commxr/commxr-go/pkg/config"
	"github.com/gin-gonic/gin"
)

// SetupRoutes configures all HTTP routes and middleware with dependency injection.
func SetupRoutes(container *container.Container) *gin.Engine {
	r := gin.Default()

	r.Use(middleware.CORSMiddleware(config.CORSAllowedOrigins))

	// Nil *ResendReporter must not become a non-nil interface
	var reporter providers.SessionReporter
	if container.Reporter != nil {
		reporter = container.Reporter
	}

	// Initialize handlers
	healthHandlers := handlers.NewHealthHandlers(container.ResponseGenerator, container.Connections, container.Logger, container.PerfTracker)
	authHandlers := handlers.NewAuthHandlers(container.AuthService, container.Logger, container.PerfTracker)
	sessionHandlers := handlers.NewSessionHandlers(
		container.SessionService,
		container.Connections,
		container.ConversationService,
		reporter,
		container.Logger,
		container.PerfTracker,
	)
	featureHandlers := handlers.NewFeatureHandlers(container.FeatureService, container.Logger, container.PerfTracker)
	realtimeHandlers := handlers.NewRealtimeHandlers(container.Realtime, container.Logger)

	api := r.Group("/api")
	{
		api.GET("/health", healthHandlers.GetHealth)
		api.POST("/auth/token", authHandlers.PostToken)

		// Websocket authenticates with the query token during the handshake
		api.GET("/realtime", realtimeHandlers.Connect)

		protected := api.Group("/")
		protected.Use(middleware.AuthMiddleware(container.AuthService, container.Logger, container.PerfTracker))
		protected.Use(middleware.RateLimitMiddleware(container.RateLimiter, container.RateLimitPolicy, container.Logger))
		{
			protected.POST("/sessions", sessionHandlers.PostSession)
			protected.GET("/sessions/:id", sessionHandlers.GetSession)
			protected.POST("/sessions/:id/end", sessionHandlers.EndSession)
			protected.POST("/features", featureHandlers.PostFeatures)
		}
	}

	return r
}
