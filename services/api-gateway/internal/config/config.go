// Package config centralises configuration parsing for the API gateway.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures runtime configuration values for the gateway.
type Config struct {
	HTTPAddress              string
	UserServiceURL           string
	ActivityServiceURL       string
	RecommendationServiceURL string
	DirectoryTimeout         time.Duration
	IdentityCacheTTL         time.Duration // Zero disables the resolution cache.
	IdentityCacheSize        int
	JWTSecret                string // Empty leaves signature checks to the identity provider edge.
	JWTIssuer                string
	LogLevel                 string
	LogPretty                bool
}

// Load reads environment variables into Config, applying defaults for local dev.
func Load() Config {
	return Config{
		HTTPAddress:              getEnv("HTTP_ADDRESS", ":8080"),
		UserServiceURL:           getEnv("USER_SERVICE_URL", "http://user-service:8081"),
		ActivityServiceURL:       getEnv("ACTIVITY_SERVICE_URL", "http://activity-service:8082"),
		RecommendationServiceURL: getEnv("RECOMMENDATION_SERVICE_URL", "http://recommendation-service:8083"),
		DirectoryTimeout:         getDurationEnv("DIRECTORY_TIMEOUT", 3*time.Second),
		IdentityCacheTTL:         getDurationEnv("IDENTITY_CACHE_TTL", 0),
		IdentityCacheSize:        getIntEnv("IDENTITY_CACHE_SIZE", 10000),
		JWTSecret:                getEnv("JWT_SECRET", ""),
		JWTIssuer:                getEnv("JWT_ISSUER", ""),
		LogLevel:                 getEnv("LOG_LEVEL", "info"),
		LogPretty:                getBoolEnv("LOG_PRETTY", false),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBoolEnv(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}
