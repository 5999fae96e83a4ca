package config

import (
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	// Ephemeris collaborator
	EphemerisEndpoint string
	HeartbeatWSURL    string // empty disables the connectivity monitor

	// Database configuration
	DatabaseHost     string
	DatabasePort     string
	DatabaseName     string
	DatabaseUser     string
	DatabasePassword string

	// Redis configuration
	RedisHost     string
	RedisPassword string
	RedisPort     string

	// API server
	APIPort int

	// Sync configuration
	Sync SyncConfig
}

// SyncConfig holds sync engine tuning parameters
type SyncConfig struct {
	// Global broadcast timer period, seconds
	GlobalRefreshSeconds int
	// Default per-chart update interval when the caller passes none, minutes
	DefaultUpdateIntervalMinutes int
	// Minimum age of the last full update before progressions recompute, hours
	ProgressionRefreshHours int
	// Outbound ephemeris request rate limit
	EphemerisRequestsPerSecond float64
	EphemerisBurst             int
	// Cached transit snapshot lifetime, seconds
	SnapshotCacheTTLSeconds int
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	// Load .env file if exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	return &Config{
		EphemerisEndpoint: getEnvOrDefault("EPHEMERIS_ENDPOINT", "https://api.cosmichub.io/ephemeris"),
		HeartbeatWSURL:    getEnvOrDefault("EPHEMERIS_HEARTBEAT_WS_URL", ""),

		// Database configuration
		DatabaseHost:     getEnvOrDefault("DB_HOST", "localhost"),
		DatabasePort:     getEnvOrDefault("DB_PORT", "5432"),
		DatabaseName:     getEnvOrDefault("DB_NAME", "cosmichub_sync"),
		DatabaseUser:     getEnvOrDefault("DB_USER", "cosmichub"),
		DatabasePassword: getEnvOrDefault("DB_PASSWORD", "cosmichub123"),

		// Redis configuration
		RedisHost:     getEnvOrDefault("REDIS_HOST", "localhost"),
		RedisPort:     getEnvOrDefault("REDIS_PORT", "6379"),
		RedisPassword: getEnvOrDefault("REDIS_PASSWORD", ""),

		APIPort: getEnvInt("API_PORT", 8080),

		// Sync configuration
		Sync: SyncConfig{
			GlobalRefreshSeconds:         getEnvInt("SYNC_GLOBAL_REFRESH_SECONDS", 60),
			DefaultUpdateIntervalMinutes: getEnvInt("SYNC_DEFAULT_UPDATE_INTERVAL", 60),
			ProgressionRefreshHours:      getEnvInt("SYNC_PROGRESSION_REFRESH_HOURS", 24),
			EphemerisRequestsPerSecond:   getEnvFloat("EPHEMERIS_RATE_LIMIT_RPS", 5.0),
			EphemerisBurst:               getEnvInt("EPHEMERIS_RATE_LIMIT_BURST", 10),
			SnapshotCacheTTLSeconds:      getEnvInt("SYNC_SNAPSHOT_CACHE_TTL", 90),
		},
	}
}

// getEnvInt gets environment variable as int or returns default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var intValue int
	if _, err := fmt.Sscanf(value, "%d", &intValue); err != nil {
		return defaultValue
	}
	return intValue
}

// getEnvFloat gets environment variable as float64 or returns default value
func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var floatValue float64
	if _, err := fmt.Sscanf(value, "%f", &floatValue); err != nil {
		return defaultValue
	}
	return floatValue
}

// getEnvOrDefault gets environment variable or returns default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
