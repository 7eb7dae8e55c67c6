// Package config centralises configuration parsing for the user service.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config captures runtime configuration values for the user service.
type Config struct {
	HTTPAddress    string
	PostgresURL    string // Empty selects the in-memory repository.
	BcryptCost     int
	ConnectTimeout time.Duration
	LogLevel       string
	LogPretty      bool
}

// Load reads environment variables into Config, applying defaults for local dev.
func Load() Config {
	return Config{
		HTTPAddress:    getEnv("HTTP_ADDRESS", ":8081"),
		PostgresURL:    getEnv("POSTGRES_URL", ""),
		BcryptCost:     getIntEnv("BCRYPT_COST", 10),
		ConnectTimeout: getDurationEnv("POSTGRES_CONNECT_TIMEOUT", 10*time.Second),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogPretty:      getBoolEnv("LOG_PRETTY", false),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
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
