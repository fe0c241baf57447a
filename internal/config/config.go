// Package config loads and validates environment variables at startup.
// Fail-fast: if a required variable is missing, the process exits with an error.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all runtime configuration for the feed service.
type Config struct {
	Port        string
	DatabaseURL string
	RedisURL    string

	GeminiAPIKey    string
	GeminiModel     string
	ScorerRateLimit int // collaborator calls per minute

	PruneSpec string // cron spec for the suggestion prune sweep
}

// Load reads environment variables and returns a validated Config.
func Load() (*Config, error) {
	var missing []string

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		missing = append(missing, "REDIS_URL")
	}

	geminiKey := os.Getenv("GEMINI_API_KEY")
	if geminiKey == "" {
		missing = append(missing, "GEMINI_API_KEY")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	port := os.Getenv("FEED_PORT")
	if port == "" {
		port = "8083"
	}

	return &Config{
		Port:            port,
		DatabaseURL:     dbURL,
		RedisURL:        redisURL,
		GeminiAPIKey:    geminiKey,
		GeminiModel:     getEnvString("GEMINI_MODEL", ""),
		ScorerRateLimit: getEnvInt("SCORER_RATE_LIMIT", 30),
		PruneSpec:       getEnvString("SUGGESTION_PRUNE_SPEC", "@daily"),
	}, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}
