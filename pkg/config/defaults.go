// Package config provides centralized default values for the coaching backend
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

var envLoaded sync.Once

func loadEnvFile() {
	envLoaded.Do(func() {
		// godotenv never overrides variables already present in the environment
		if err := godotenv.Load(); err != nil {
			return
		}
		log.Println("Loaded configuration overrides from .env file")
	})
}

func getEnvInt(key string, defaultValue int) int {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.Atoi(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%d (default: %d)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvString(key string, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		if val != defaultValue {
			log.Printf("Config override: %s=%s (default: %s)", key, redact(key, val), redact(key, defaultValue))
		}
		return val
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := strconv.ParseBool(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%t (default: %t)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if valStr := os.Getenv(key); valStr != "" {
		if val, err := time.ParseDuration(valStr); err == nil {
			if val != defaultValue {
				log.Printf("Config override: %s=%s (default: %s)", key, val, defaultValue)
			}
			return val
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	valStr := os.Getenv(key)
	if valStr == "" {
		return defaultValue
	}
	parts := strings.Split(valStr, ",")
	values := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			values = append(values, p)
		}
	}
	log.Printf("Config override: %s=%v", key, values)
	return values
}

// redact keeps secrets out of the boot log
func redact(key, value string) string {
	upper := strings.ToUpper(key)
	if value == "" {
		return value
	}
	if strings.Contains(upper, "KEY") || strings.Contains(upper, "SECRET") ||
		strings.Contains(upper, "PASSWORD") || strings.Contains(upper, "DSN") ||
		strings.Contains(upper, "REDIS_URL") {
		return "****"
	}
	return value
}

var (
	// Server Configuration
	Port               string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration
	ServerIdleTimeout  time.Duration
	ShutdownTimeout    time.Duration
	CORSAllowedOrigins []string

	// Authentication
	JWTSecret               string
	JWTIssuer               string
	TokenTTL                time.Duration
	TokenIssuerPasswordHash string

	// Session storage
	SessionStore       string
	DBDSN              string
	DBMaxOpenConns     int
	DBMaxIdleConns     int
	SlowQueryThreshold time.Duration

	// Rate limiting
	RateLimitBackend string
	RedisURL         string
	RateLimitWindow  time.Duration
	RateLimitDefault int

	// Conversation memory
	MaxHistoryPerSession int
	ContextTurns         int

	// Generative backend
	GenerativeProvider string
	GenerativeTimeout  time.Duration
	GenerativeModel    string
	AssemblyAIAPIKey   string
	OpenAIAPIKey       string
	OpenAIBaseURL      string
	ResponseLanguage   string

	// Transcription
	TranscriptionTimeout  time.Duration
	TranscriptionLanguage string

	// Realtime channel
	WSReadLimitBytes int
	WSPingInterval   time.Duration
	WSPongWait       time.Duration
	WSWriteWait      time.Duration

	// Retention
	SessionRetention     time.Duration
	SessionSweepInterval time.Duration
	SessionSweepVerbose  bool

	// Session report email
	ResendAPIKey        string
	ReportEmailFrom     string
	ReportEmailFromName string

	// Logging
	LogLevel     string
	LogJSON      bool
	LogToFile    bool
	LogDirectory string
)

func init() {
	loadEnvFile()

	// Server Configuration
	Port = getEnvString("PORT", "8080")
	ServerReadTimeout = getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second)
	ServerWriteTimeout = getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second)
	ServerIdleTimeout = getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second)
	ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", 30*time.Second)
	CORSAllowedOrigins = getEnvList("CORS_ALLOWED_ORIGINS", []string{
		"http://localhost:3000",
		"http://127.0.0.1:3000",
		"http://[::1]:3000",
	})

	// Authentication
	JWTSecret = getEnvString("JWT_SECRET", "")
	JWTIssuer = getEnvString("JWT_ISSUER", "commxr")
	TokenTTL = getEnvDuration("TOKEN_TTL", time.Hour)
	TokenIssuerPasswordHash = getEnvString("TOKEN_ISSUER_PASSWORD_HASH", "")

	// Session storage
	SessionStore = getEnvString("SESSION_STORE", "memory")
	DBDSN = getEnvString("DB_DSN", "file:commxr.db?_foreign_keys=on")
	DBMaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", 10)
	DBMaxIdleConns = getEnvInt("DB_MAX_IDLE_CONNS", 3)
	SlowQueryThreshold = getEnvDuration("SLOW_QUERY_THRESHOLD", 250*time.Millisecond)

	// Rate limiting
	RateLimitBackend = getEnvString("RATE_LIMIT_BACKEND", "memory")
	RedisURL = getEnvString("REDIS_URL", "redis://localhost:6379/0")
	RateLimitWindow = getEnvDuration("RATE_LIMIT_WINDOW", 60*time.Second)
	RateLimitDefault = getEnvInt("RATE_LIMIT_DEFAULT", 60)

	// Conversation memory
	MaxHistoryPerSession = getEnvInt("MAX_HISTORY_PER_SESSION", 100)
	ContextTurns = getEnvInt("CONTEXT_TURNS", 10)

	// Generative backend
	GenerativeProvider = getEnvString("GENERATIVE_PROVIDER", "lemur")
	GenerativeTimeout = getEnvDuration("GENERATIVE_TIMEOUT", 8*time.Second)
	GenerativeModel = getEnvString("GENERATIVE_MODEL", "")
	AssemblyAIAPIKey = getEnvString("ASSEMBLYAI_API_KEY", "")
	OpenAIAPIKey = getEnvString("OPENAI_API_KEY", "")
	OpenAIBaseURL = getEnvString("OPENAI_BASE_URL", "")
	ResponseLanguage = getEnvString("RESPONSE_LANGUAGE", "Japanese")

	// Transcription
	TranscriptionTimeout = getEnvDuration("TRANSCRIPTION_TIMEOUT", 10*time.Second)
	TranscriptionLanguage = getEnvString("TRANSCRIPTION_LANGUAGE", "ja")

	// Realtime channel
	WSReadLimitBytes = getEnvInt("WS_READ_LIMIT_BYTES", 4<<20)
	WSPingInterval = getEnvDuration("WS_PING_INTERVAL", 30*time.Second)
	WSPongWait = getEnvDuration("WS_PONG_WAIT", 75*time.Second)
	WSWriteWait = getEnvDuration("WS_WRITE_WAIT", 10*time.Second)

	// Retention
	SessionRetention = getEnvDuration("SESSION_RETENTION", 24*time.Hour)
	SessionSweepInterval = getEnvDuration("SESSION_SWEEP_INTERVAL", 15*time.Minute)
	SessionSweepVerbose = getEnvBool("SESSION_SWEEP_VERBOSE", false)

	// Session report email
	ResendAPIKey = getEnvString("RESEND_API_KEY", "")
	ReportEmailFrom = getEnvString("REPORT_EMAIL_FROM", "noreply@commxr.app")
	ReportEmailFromName = getEnvString("REPORT_EMAIL_FROM_NAME", "Comm-XR")

	// Logging
	LogLevel = getEnvString("LOG_LEVEL", "info")
	LogJSON = getEnvBool("LOG_JSON", true)
	LogToFile = getEnvBool("LOG_TO_FILE", false)
	LogDirectory = getEnvString("LOG_DIRECTORY", "logs")
}
