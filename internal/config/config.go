package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Port string
	Env  string

	// Storage. DATABASE_URL selects postgres; SQLITE_PATH selects sqlite;
	// with neither set the server runs on the in-memory store.
	DatabaseURL string
	SQLitePath  string
	RedisURL    string

	// Platform directory service. Empty means the built-in static directory,
	// which treats every identifier as an ad hoc room.
	DirectoryURL string

	AllowedOrigins []string
	SendsPerMinute int64
}

// Load reads configuration from environment variables.
// In development, it loads from .env file if present.
// In production, it panics on missing required variables.
func Load() *Config {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		Env:            getEnv("ENV", "development"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		SQLitePath:     os.Getenv("SQLITE_PATH"),
		RedisURL:       os.Getenv("REDIS_URL"),
		DirectoryURL:   os.Getenv("DIRECTORY_URL"),
		SendsPerMinute: getEnvInt64("SENDS_PER_MINUTE", 30),
	}

	// Parse allowed origins (comma-separated)
	origins := getEnv("ALLOWED_ORIGINS", "*")
	for _, entry := range strings.Split(origins, ",") {
		entry = strings.TrimSpace(entry)
		if entry != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, entry)
		}
	}

	// In production, require durable storage and the platform directory
	if cfg.Env == "production" {
		if cfg.DatabaseURL == "" && cfg.SQLitePath == "" {
			panic("DATABASE_URL or SQLITE_PATH is required in production")
		}
		if cfg.DirectoryURL == "" {
			panic("DIRECTORY_URL is required in production")
		}
	}

	return cfg
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
	}
	return defaultValue
}
