package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the runtime configuration for the security core
type Config struct {
	Port        string
	Environment string

	Database DatabaseConfig

	// RedisAddr enables the Redis-backed velocity and session stores when
	// set; empty falls back to in-memory stores.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// SessionSecret signs and verifies HS256 session tokens
	SessionSecret string
	// SessionFreshWindow is how long after authentication a session counts
	// as fresh for RequireFreshSession actions
	SessionFreshWindow time.Duration

	// BreakGlassSecret validates emergency-override credentials
	BreakGlassSecret string

	// GeoIPDatabasePath points at a MaxMind City database; empty disables
	// geo-derived risk signals.
	GeoIPDatabasePath string

	// BiometricShardURLs is the configured set of matcher shard addresses
	BiometricShardURLs []string
	// BiometricTimeout bounds the whole scatter-gather identify call
	BiometricTimeout time.Duration

	// BruteForceThreshold failures within BruteForceWindow classify the
	// principal as under brute force
	BruteForceThreshold int
	BruteForceWindow    time.Duration

	RateLimitMaxRequests int
	RateLimitWindow      time.Duration
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
	SSLMode  string
}

// Load reads configuration from environment variables with defaults
func Load() *Config {
	return &Config{
		Port:        getEnvOrDefault("PORT", "8080"),
		Environment: getEnvOrDefault("ENVIRONMENT", "development"),
		Database: DatabaseConfig{
			Host:     getEnvOrDefault("DB_HOSTNAME", "localhost"),
			Port:     getEnvOrDefault("DB_PORT", "5432"),
			Username: getEnvOrDefault("DB_USERNAME", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", "password"),
			Database: getEnvOrDefault("DB_DATABASENAME", "trust_core"),
			SSLMode:  getEnvOrDefault("DB_SSLMODE", "require"),
		},
		RedisAddr:            os.Getenv("REDIS_ADDR"),
		RedisPassword:        os.Getenv("REDIS_PASSWORD"),
		RedisDB:              parseIntOrDefault("REDIS_DB", 0),
		SessionSecret:        getEnvOrDefault("SESSION_SECRET", ""),
		SessionFreshWindow:   parseDurationOrDefault("SESSION_FRESH_WINDOW", "15m"),
		BreakGlassSecret:     os.Getenv("BREAK_GLASS_SECRET"),
		GeoIPDatabasePath:    os.Getenv("GEOIP_DB_PATH"),
		BiometricShardURLs:   parseListOrDefault("BIOMETRIC_SHARD_URLS", nil),
		BiometricTimeout:     parseDurationOrDefault("BIOMETRIC_TIMEOUT", "3s"),
		BruteForceThreshold:  parseIntOrDefault("BRUTE_FORCE_THRESHOLD", 5),
		BruteForceWindow:     parseDurationOrDefault("BRUTE_FORCE_WINDOW", "10m"),
		RateLimitMaxRequests: parseIntOrDefault("RATE_LIMIT_MAX_REQUESTS", 100),
		RateLimitWindow:      parseDurationOrDefault("RATE_LIMIT_WINDOW", "1m"),
	}
}

// getEnvOrDefault gets environment variable or returns default value
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseIntOrDefault parses an integer from environment variable or returns default
func parseIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// parseDurationOrDefault parses a duration from environment variable or returns default
func parseDurationOrDefault(key, defaultValue string) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	parsed, _ := time.ParseDuration(defaultValue)
	return parsed
}

// parseListOrDefault parses a comma-separated list from environment variable
func parseListOrDefault(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
