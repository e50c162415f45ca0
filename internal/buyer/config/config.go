package config

import (
	"os"
	"strings"
)

type Config struct {
	Port        string
	Environment string
	StoreType   string
	MongoURI    string
	MongoDB     string

	AgentName                 string
	SelfURL                   string
	BuyerID                   string
	BuyerName                 string
	AcceptedArbitrationAgents []string
	DefaultArbitrationAgent   string
}

func Load() (*Config, error) {
	port := getEnv("PORT", "8083")
	cfg := &Config{
		Port:        port,
		Environment: getEnv("ENVIRONMENT", "development"),
		StoreType:   getEnv("STORE_TYPE", "memory"),
		MongoURI:    getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:     getEnv("MONGO_DB", "commerce"),

		AgentName:                 getEnv("AGENT_NAME", "buyer-agent"),
		SelfURL:                   getEnv("SELF_URL", "http://localhost:"+port),
		BuyerID:                   getEnv("BUYER_ID", "buyer-001"),
		BuyerName:                 getEnv("BUYER_NAME", ""),
		AcceptedArbitrationAgents: splitList(getEnv("ACCEPTED_ARBITRATION_AGENTS", "")),
		DefaultArbitrationAgent:   getEnv("DEFAULT_ARBITRATION_AGENT", ""),
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
