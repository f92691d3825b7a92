// Package container provides dependency injection for all singleton services
package container

import (
	"context"
	"fmt"
	"log"

	"github.com/commxr/commxr-go/internal/application/services"
	"github.com/commxr/commxr-go/internal/domain/providers"
	"github.com/commxr/commxr-go/internal/domain/repositories"
	"github.com/commxr/commxr-go/internal/infrastructure/email"
	"github.com/commxr/commxr-go/internal/infrastructure/generation"
	"github.com/commxr/commxr-go/internal/infrastructure/messaging"
	"github.com/commxr/commxr-go/internal/infrastructure/observability/logging"
	"github.com/commxr/commxr-go/internal/infrastructure/observability/performance"
	"github.com/commxr/commxr-go/internal/infrastructure/persistence/database"
	"github.com/commxr/commxr-go/internal/infrastructure/persistence/features"
	"github.com/commxr/commxr-go/internal/infrastructure/persistence/sessions"
	"github.com/commxr/commxr-go/internal/infrastructure/ratelimit"
	"github.com/commxr/commxr-go/internal/infrastructure/security"
	"github.com/commxr/commxr-go/internal/infrastructure/speech"
	"github.com/commxr/commxr-go/internal/presentation/realtime"
	"github.com/commxr/commxr-go/pkg/config"
)

// Generative provider names accepted by GENERATIVE_PROVIDER
const (
	ProviderLeMUR  = "lemur"
	ProviderOpenAI = "openai"
	ProviderNone   = "none"
)

// Container holds all singleton services and infrastructure dependencies
type Container struct {
	// Core Services
	AuthService         *services.AuthService
	SessionService      *services.SessionService
	FeatureService      *services.FeatureService
	ConversationService *services.ConversationService
	EmotionInterpreter  *services.EmotionInterpreter
	ResponseGenerator   *services.ResponseGenerator
	AnalysisPipeline    *services.AnalysisPipeline

	// Admission control
	RateLimiter     services.RateLimiter
	RateLimitPolicy services.RateLimitPolicy

	// Realtime channel
	Connections *messaging.ConnectionRegistry
	Realtime    *realtime.Handler

	// Optional outbound mail, nil when RESEND_API_KEY is unset
	Reporter *email.ResendReporter

	// Infrastructure Dependencies
	Logger      *logging.ChanneledLogger
	PerfTracker *performance.Tracker

	closers []func() error
}

// NewContainer creates and wires all singleton services from pkg/config
func NewContainer(ctx context.Context) (*Container, error) {
	logger, err := newLogger()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	perfTracker := performance.NewTracker(performance.DefaultTrackerConfig())

	c := &Container{
		Logger:      logger,
		PerfTracker: perfTracker,
	}

	sessionRepo, featureRepo, err := c.newStores(ctx)
	if err != nil {
		c.Close()
		return nil, err
	}

	if err := c.newRateLimiter(ctx); err != nil {
		c.Close()
		return nil, err
	}

	secret := config.JWTSecret
	if secret == "" {
		secret, err = security.GenerateSecureKey(32)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to generate JWT secret: %w", err)
		}
		log.Println("WARNING: JWT_SECRET not set - using an ephemeral secret, tokens will not survive a restart")
	}
	c.AuthService = services.NewAuthService(services.AuthConfig{
		JWTSecret:          secret,
		Issuer:             config.JWTIssuer,
		TokenTTL:           config.TokenTTL,
		IssuerPasswordHash: config.TokenIssuerPasswordHash,
	}, logger, perfTracker)

	c.SessionService = services.NewSessionService(sessionRepo, logger, perfTracker)
	c.FeatureService = services.NewFeatureService(featureRepo, c.SessionService, logger, perfTracker)
	c.ConversationService = services.NewConversationService(config.MaxHistoryPerSession, logger)
	c.EmotionInterpreter = services.NewEmotionInterpreter()

	backend, err := newTextGenerator(logger)
	if err != nil {
		c.Close()
		return nil, err
	}
	c.ResponseGenerator = services.NewResponseGenerator(backend, services.ResponseGeneratorConfig{
		Language:    config.ResponseLanguage,
		CallTimeout: config.GenerativeTimeout,
		Retry:       services.DefaultRetryPolicy(),
	}, logger, perfTracker)

	var transcriber providers.Transcriber
	if config.AssemblyAIAPIKey != "" {
		t, err := speech.NewAssemblyAITranscriber(config.AssemblyAIAPIKey, config.TranscriptionLanguage, logger, perfTracker)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to create transcriber: %w", err)
		}
		transcriber = t
	} else {
		logger.Speech().Warn("ASSEMBLYAI_API_KEY not set - audio will not be transcribed")
	}

	c.AnalysisPipeline = services.NewAnalysisPipeline(transcriber, c.ConversationService, c.EmotionInterpreter, c.ResponseGenerator,
		services.PipelineConfig{
			ContextTurns:         config.ContextTurns,
			TranscriptionTimeout: config.TranscriptionTimeout,
		}, logger, perfTracker)

	c.Connections = messaging.NewConnectionRegistry(logger)
	c.Realtime = realtime.NewHandler(c.AuthService, c.SessionService, c.Connections, c.AnalysisPipeline, realtime.Config{
		ReadLimit:    int64(config.WSReadLimitBytes),
		PingInterval: config.WSPingInterval,
		PongWait:     config.WSPongWait,
		WriteWait:    config.WSWriteWait,
	}, logger, perfTracker)

	if config.ResendAPIKey != "" {
		reporter, err := email.NewResendReporter(config.ResendAPIKey, config.ReportEmailFrom, config.ReportEmailFromName, logger)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to create email reporter: %w", err)
		}
		c.Reporter = reporter
	}

	return c, nil
}

func newLogger() (*logging.ChanneledLogger, error) {
	cfg := logging.DefaultLoggerConfig()
	cfg.DefaultLevel = logging.ParseLevel(config.LogLevel)
	cfg.JSONFormat = config.LogJSON
	cfg.OutputToFile = config.LogToFile
	cfg.LogDirectory = config.LogDirectory
	return logging.NewChanneledLogger(cfg)
}

func (c *Container) newStores(ctx context.Context) (repositories.SessionRepository, repositories.FeatureLogRepository, error) {
	if config.SessionStore == "memory" {
		c.Logger.Database().Info("Using in-memory session store")
		return sessions.NewMemoryRepository(), features.NewMemoryRepository(), nil
	}

	driver, err := database.DriverFor(config.SessionStore)
	if err != nil {
		return nil, nil, err
	}
	db, err := database.NewConnectionWithLogger(ctx, driver, config.DBDSN, database.Options{
		MaxOpenConns:       config.DBMaxOpenConns,
		MaxIdleConns:       config.DBMaxIdleConns,
		SlowQueryThreshold: config.SlowQueryThreshold,
	}, c.Logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to %s store: %w", config.SessionStore, err)
	}
	c.closers = append(c.closers, db.Close)

	if err := database.NewTableCreator().CreateSchema(ctx, db); err != nil {
		return nil, nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return sessions.NewSQLRepository(db, c.Logger), features.NewSQLRepository(db, c.Logger), nil
}

func (c *Container) newRateLimiter(ctx context.Context) error {
	c.RateLimitPolicy = services.DefaultRateLimitPolicy(config.RateLimitWindow, config.RateLimitDefault)

	switch config.RateLimitBackend {
	case "memory":
		c.RateLimiter = services.NewMemoryRateLimiter(nil)
	case "redis":
		client, err := ratelimit.NewClientFromURL(ctx, config.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		c.closers = append(c.closers, client.Close)
		c.RateLimiter = ratelimit.NewRedisLimiter(client, c.Logger)
	default:
		return fmt.Errorf("unsupported rate limit backend %q", config.RateLimitBackend)
	}
	c.Logger.RateLimit().Info("Rate limiter ready", "backend", config.RateLimitBackend, "window", config.RateLimitWindow)
	return nil
}

func newTextGenerator(logger *logging.ChanneledLogger) (providers.TextGenerator, error) {
	switch config.GenerativeProvider {
	case ProviderLeMUR:
		if config.AssemblyAIAPIKey == "" {
			logger.LLM().Warn("ASSEMBLYAI_API_KEY not set - suggestions are unavailable")
			return generation.Unconfigured{}, nil
		}
		return generation.NewLeMURGenerator(config.AssemblyAIAPIKey, config.GenerativeModel, logger)
	case ProviderOpenAI:
		if config.OpenAIAPIKey == "" {
			logger.LLM().Warn("OPENAI_API_KEY not set - suggestions are unavailable")
			return generation.Unconfigured{}, nil
		}
		return generation.NewOpenAIGenerator(config.OpenAIAPIKey, config.OpenAIBaseURL, config.GenerativeModel, logger)
	case ProviderNone:
		return generation.Unconfigured{}, nil
	default:
		return nil, fmt.Errorf("unsupported generative provider %q", config.GenerativeProvider)
	}
}

// Close releases stores, clients and log files in reverse order of creation
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			log.Printf("Error during container close: %v", err)
		}
	}
	c.closers = nil
	if c.Logger != nil {
		_ = c.Logger.Close()
	}
}
