// Package config loads application configuration from the environment.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	// Application
	AppEnv    string
	LogLevel  string
	LogFormat string

	// UserID identifies the single local user in CLI and local mode.
	UserID string

	// TokenEncKey is the base64-encoded 32-byte AES key for OAuth tokens.
	TokenEncKey string

	// Database. An empty DatabaseURL selects local SQLite mode.
	DatabaseURL      string
	SQLitePath       string
	DatabaseMaxConns int

	// Redis backs distributed sync locks. Optional; in-process locks are
	// used when unset.
	RedisURL string

	// RabbitMQ carries outbox events. Optional in development.
	RabbitMQURL string

	// Outbox
	OutboxPollInterval     time.Duration
	OutboxBatchSize        int
	OutboxMaxRetries       int
	OutboxProcessorEnabled bool

	// HTTP API
	APIAddr string

	// Worker
	WorkerHealthAddr   string
	WorkerSyncSchedule string
	WorkerConcurrency  int

	// MCP
	MCPAddr      string
	MCPAuthToken string

	// Calendar provider selection: "google" or "caldav".
	CalendarProvider string

	// Google OAuth
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	// CalDAV. BaseURL empty means Apple iCloud.
	CalDAVBaseURL  string
	CalDAVUsername string
	CalDAVPassword string
}

// Load loads configuration from environment variables, reading a .env
// file first when one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:    getEnv("APP_ENV", "development"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", ""),

		UserID:      getEnv("CALBREW_USER_ID", "00000000-0000-0000-0000-000000000001"),
		TokenEncKey: getEnv("TOKEN_ENC_KEY", ""),

		DatabaseURL:      getEnv("DATABASE_URL", ""),
		SQLitePath:       getEnv("CALBREW_DB_PATH", ""),
		DatabaseMaxConns: getIntEnv("DATABASE_MAX_CONNS", 8),

		RedisURL:    getEnv("REDIS_URL", ""),
		RabbitMQURL: getEnv("RABBITMQ_URL", ""),

		OutboxPollInterval:     getDurationEnv("OUTBOX_POLL_INTERVAL", 100*time.Millisecond),
		OutboxBatchSize:        getIntEnv("OUTBOX_BATCH_SIZE", 100),
		OutboxMaxRetries:       getIntEnv("OUTBOX_MAX_RETRIES", 5),
		OutboxProcessorEnabled: getBoolEnv("OUTBOX_PROCESSOR_ENABLED", true),

		APIAddr: getEnv("API_ADDR", ":8080"),

		WorkerHealthAddr:   getEnv("WORKER_HEALTH_ADDR", ":8081"),
		WorkerSyncSchedule: getEnv("WORKER_SYNC_SCHEDULE", "0 3 * * *"),
		WorkerConcurrency:  getIntEnv("WORKER_CONCURRENCY", 4),

		MCPAddr:      getEnv("MCP_ADDR", ":8082"),
		MCPAuthToken: getEnv("MCP_AUTH_TOKEN", ""),

		CalendarProvider: getEnv("CALENDAR_PROVIDER", "google"),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", "http://localhost:8080/oauth/callback"),

		CalDAVBaseURL:  getEnv("CALDAV_BASE_URL", ""),
		CalDAVUsername: getEnv("CALDAV_USERNAME", ""),
		CalDAVPassword: getEnv("CALDAV_PASSWORD", ""),
	}

	return cfg, nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// LocalMode reports whether the zero-config SQLite store should be used.
func (c *Config) LocalMode() bool {
	return c.DatabaseURL == ""
}

// GoogleConfigured reports whether the Google OAuth client is set up.
func (c *Config) GoogleConfigured() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// CalDAVConfigured reports whether CalDAV basic-auth credentials are set.
func (c *Config) CalDAVConfigured() bool {
	return c.CalDAVUsername != "" && c.CalDAVPassword != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
