// Package config centralises configuration parsing for the activity service.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"example.com/fitness/libs/go/events"
)

// Config captures runtime configuration values for the activity service.
type Config struct {
	HTTPAddress      string
	MongoURI         string
	MongoDatabase    string
	MongoTimeout     time.Duration
	UserServiceURL   string
	DirectoryTimeout time.Duration
	KafkaBrokers     []string
	ActivityTopic    string
	PublishTimeout   time.Duration
	LogLevel         string
	LogPretty        bool
}

// Load reads environment variables into Config, applying sensible defaults for local dev.
func Load() Config {
	cfg := Config{
		HTTPAddress:      getEnv("HTTP_ADDRESS", ":8082"),
		MongoURI:         getEnv("MONGO_URI", "mongodb://mongo:27017"),
		MongoDatabase:    getEnv("MONGO_DATABASE", "fitness"),
		MongoTimeout:     getDurationEnv("MONGO_TIMEOUT", 10*time.Second),
		UserServiceURL:   getEnv("USER_SERVICE_URL", "http://user-service:8081"),
		DirectoryTimeout: getDurationEnv("DIRECTORY_TIMEOUT", 3*time.Second),
		ActivityTopic:    getEnv("ACTIVITY_TOPIC", events.DefaultActivityTopic),
		PublishTimeout:   getDurationEnv("PUBLISH_TIMEOUT", 5*time.Second),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		LogPretty:        getBoolEnv("LOG_PRETTY", false),
	}

	brokers := getEnv("KAFKA_BROKERS", "kafka:9092")
	cfg.KafkaBrokers = splitAndTrim(brokers)
	return cfg
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func splitAndTrim(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
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
