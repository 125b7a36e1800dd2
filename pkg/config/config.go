package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port      string
	LogLevel  string
	LogFormat string

	// Storage
	DatabaseDriver string // postgres | sqlite
	DatabaseURL    string
	RedisURL       string

	// Cross-instance change feed
	FeedRelay         string // none | redis | pubsub
	FeedChannel       string
	GoogleProjectID   string
	GooglePubSubTopic string
	GoogleCredentials string

	// AI
	AIProvider       string // anthropic | gemini | ollama | auto
	AnthropicAPIKey  string
	AnthropicBaseURL string
	ClassifyModel    string
	BriefingModel    string
	GeminiAPIKey     string
	GeminiModel      string
	OllamaBaseURL    string
	OllamaModel      string
	AITimeout        time.Duration

	// Semantic search
	ChromaAPIKey   string
	ChromaTenant   string
	ChromaDatabase string

	// Push
	FirebaseCredentials string
	BriefingPushTime    string // HH:MM, empty disables

	// IMAP poller, disabled without a host
	IMAPHost         string
	IMAPPort         int
	IMAPUsername     string
	IMAPPassword     string
	IMAPMailbox      string
	IMAPPollInterval time.Duration

	TimeZone        *time.Location
	SessionIdleTTL  time.Duration
	ShutdownTimeout time.Duration
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		Port:      getEnv("PORT", "8080"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "console"),

		DatabaseDriver: getEnv("DATABASE_DRIVER", "sqlite"),
		DatabaseURL:    getEnv("DATABASE_URL", "data/triage.db"),
		RedisURL:       getEnv("REDIS_URL", ""),

		FeedRelay:         getEnv("FEED_RELAY", "none"),
		FeedChannel:       getEnv("FEED_CHANNEL", "items-changes"),
		GoogleProjectID:   getEnv("GOOGLE_PROJECT_ID", ""),
		GooglePubSubTopic: getEnv("GOOGLE_PUBSUB_TOPIC", "items-changes"),
		GoogleCredentials: getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),

		AIProvider:       getEnv("AI_PROVIDER", "anthropic"),
		AnthropicAPIKey:  getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicBaseURL: getEnv("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
		ClassifyModel:    getEnv("CLASSIFY_MODEL", "claude-haiku-4-5-20251001"),
		BriefingModel:    getEnv("BRIEFING_MODEL", "claude-sonnet-4-6"),
		GeminiAPIKey:     getEnv("GEMINI_API_KEY", ""),
		GeminiModel:      getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		OllamaBaseURL:    getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
		OllamaModel:      getEnv("OLLAMA_MODEL", "llama3.2"),
		AITimeout:        getDuration("AI_TIMEOUT", 30*time.Second),

		ChromaAPIKey:   getEnv("CHROMA_API_KEY", ""),
		ChromaTenant:   getEnv("CHROMA_TENANT", ""),
		ChromaDatabase: getEnv("CHROMA_DATABASE", ""),

		FirebaseCredentials: getEnv("FIREBASE_CREDENTIALS", ""),
		BriefingPushTime:    getEnv("BRIEFING_PUSH_TIME", "07:30"),

		IMAPHost:         getEnv("IMAP_HOST", ""),
		IMAPPort:         getInt("IMAP_PORT", 993),
		IMAPUsername:     getEnv("IMAP_USERNAME", ""),
		IMAPPassword:     getEnv("IMAP_PASSWORD", ""),
		IMAPMailbox:      getEnv("IMAP_MAILBOX", "INBOX"),
		IMAPPollInterval: getDuration("IMAP_POLL_INTERVAL", 2*time.Minute),

		TimeZone:        getLocation("TZ_NAME", time.Local),
		SessionIdleTTL:  getDuration("SESSION_IDLE_TTL", 30*time.Minute),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getLocation(key string, defaultValue *time.Location) *time.Location {
	if value := os.Getenv(key); value != "" {
		if loc, err := time.LoadLocation(value); err == nil {
			return loc
		}
	}
	return defaultValue
}
