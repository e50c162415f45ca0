package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port        string
	Environment string
	StoreType   string
	MongoURI    string
	MongoDB     string

	AgentName            string
	ConfirmationTimeout  time.Duration
	CaseEventsWebhookURL string

	MaxRetries    int
	RetryDelay    time.Duration
	RetryMaxDelay time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8082"),
		Environment: getEnv("ENVIRONMENT", "development"),
		StoreType:   getEnv("STORE_TYPE", "memory"),
		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:     getEnv("MONGO_DB", "commerce"),

		AgentName:            getEnv("AGENT_NAME", "arbitration-agent"),
		ConfirmationTimeout:  getDuration("CONFIRMATION_TIMEOUT", 24*time.Hour),
		CaseEventsWebhookURL: getEnv("CASE_EVENTS_WEBHOOK_URL", ""),

		MaxRetries:    getInt("MAX_RETRIES", 3),
		RetryDelay:    getDuration("RETRY_DELAY", 1*time.Second),
		RetryMaxDelay: getDuration("RETRY_MAX_DELAY", 8*time.Second),
	}

	return cfg, nil
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil && n > 0 {
			return n
		}
	}
	return defaultValue
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
