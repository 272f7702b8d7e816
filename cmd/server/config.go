package main

import (
	"os"
	"strconv"
	"time"

	"arena-platform/backend/internal/db"
	"arena-platform/backend/internal/redis"

	"github.com/joho/godotenv"
)

// Config holds all configuration values for the application
type Config struct {
	// Database configuration
	DBConfig db.Config

	// Redis configuration. An empty host disables Redis and the server
	// falls back to in-process locks.
	RedisConfig redis.Config

	// Server configuration
	ServerPort  string
	Environment string

	// Authentication
	JWTSecret string
	TokenTTL  time.Duration

	// Tournament engine
	RequireConfirmation bool
	StarterInterval     time.Duration

	// WebSocket sessions
	WSQueueSize int
	WSAuthGrace time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() Config {
	// Load .env file if it exists
	godotenv.Load()

	return Config{
		DBConfig: db.Config{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "3306"),
			User:     getEnv("DB_USER", "root"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "arena_platform"),
		},
		RedisConfig: redis.Config{
			Host:     getEnv("REDIS_HOST", ""),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		ServerPort:          getEnv("SERVER_PORT", "8080"),
		Environment:         getEnv("ENV", "development"),
		JWTSecret:           getEnv("JWT_SECRET", "secret"),
		TokenTTL:            getEnvDuration("TOKEN_TTL", 24*time.Hour),
		RequireConfirmation: getEnvBool("REQUIRE_RESULT_CONFIRMATION", false),
		StarterInterval:     getEnvDuration("STARTER_INTERVAL", 5*time.Second),
		WSQueueSize:         getEnvInt("WS_QUEUE_SIZE", 256),
		WSAuthGrace:         getEnvDuration("WS_AUTH_GRACE", 15*time.Second),
	}
}

// getEnv retrieves an environment variable or returns a fallback value
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
