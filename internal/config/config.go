package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Environment
	Environment string
	LogLevel    string

	// Database
	DatabaseURL    string
	MigrateOnStart bool

	// Redis
	RedisURL string
	StateTTL time.Duration

	// Server
	Port        string
	FrontendURL string

	// Game Settings
	VictoryPoints        int
	TradeTTL             time.Duration
	TradeSweepInterval   time.Duration
	PersistRetryInterval time.Duration

	// Automation
	AIPollInterval       time.Duration
	AIThinkTime          time.Duration
	AIMaxActionsPerCycle int
	AIPersonality        string
	AIDifficulty         string

	// Security
	JWTSecret    string
	SeatTokenTTL time.Duration
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	return &Config{
		// Environment
		Environment: getEnv("APP_ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		// Database
		DatabaseURL:    getEnv("DATABASE_URL", "postgres://localhost:5432/hexsettle?sslmode=disable"),
		MigrateOnStart: getEnvBool("MIGRATE_ON_START", false),

		// Redis
		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),
		StateTTL: getEnvDuration("STATE_TTL_MINUTES", 24*60, time.Minute),

		// Server
		Port:        getEnv("APP_PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:5173"),

		// Game Settings
		VictoryPoints:        getEnvInt("VICTORY_POINTS", 10),
		TradeTTL:             getEnvDuration("TRADE_TTL_SECONDS", 60, time.Second),
		TradeSweepInterval:   getEnvDuration("TRADE_SWEEP_INTERVAL_SECONDS", 5, time.Second),
		PersistRetryInterval: getEnvDuration("PERSIST_RETRY_SECONDS", 10, time.Second),

		// Automation
		AIPollInterval:       getEnvDuration("AI_POLL_INTERVAL_MS", 1000, time.Millisecond),
		AIThinkTime:          getEnvDuration("AI_THINK_TIME_MS", 800, time.Millisecond),
		AIMaxActionsPerCycle: getEnvInt("AI_MAX_ACTIONS_PER_CYCLE", 12),
		AIPersonality:        getEnv("AI_DEFAULT_PERSONALITY", "balanced"),
		AIDifficulty:         getEnv("AI_DEFAULT_DIFFICULTY", "medium"),

		// Security
		JWTSecret:    getEnv("JWT_SECRET", "change-me-in-production"),
		SeatTokenTTL: getEnvDuration("SEAT_TOKEN_TTL_HOURS", 12, time.Hour),
	}
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return defaultValue
}

// getEnvDuration reads an integer count of unit.
func getEnvDuration(key string, defaultValue int, unit time.Duration) time.Duration {
	return time.Duration(getEnvInt(key, defaultValue)) * unit
}
