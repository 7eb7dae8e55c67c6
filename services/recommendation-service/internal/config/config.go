// Package config centralises configuration parsing for the recommendation service.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"example.com/fitness/libs/go/events"
)

// Config captures runtime configuration values for the recommendation service.
type Config struct {
	KafkaBrokers    []string
	ConsumerGroup   string
	ActivityTopic   string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	PendingQueueCap int64
	PendingQueueTTL time.Duration
	HTTPAddress     string
	LogLevel        string
	LogPretty       bool
}

// Load reads environment variables and applies defaults.
func Load() Config {
	return Config{
		KafkaBrokers:    splitAndTrim(getEnv("KAFKA_BROKERS", "kafka:9092")),
		ConsumerGroup:   getEnv("CONSUMER_GROUP_ID", "recommendation-consumer"),
		ActivityTopic:   getEnv("ACTIVITY_TOPIC", events.DefaultActivityTopic),
		RedisAddr:       getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		RedisDB:         getIntEnv("REDIS_DB", 0),
		PendingQueueCap: int64(getIntEnv("PENDING_QUEUE_CAP", 50)),
		PendingQueueTTL: getDurationEnv("PENDING_QUEUE_TTL", 7*24*time.Hour),
		HTTPAddress:     getEnv("HTTP_ADDRESS", ":8083"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogPretty:       getBoolEnv("LOG_PRETTY", false),
	}
}

func splitAndTrim(value string) []string {
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
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
