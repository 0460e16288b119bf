package aigen

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// EndpointEnvConfig carries the environment-driven settings for running the
// generation endpoint as a server.
type EndpointEnvConfig struct {
	ListenAddr      string
	AuthToken       string
	OpenAIAPIKey    string
	AnthropicAPIKey string
	GeminiAPIKey    string
	RateLimitPerSec float64
	RateBurst       int
	MaxInFlight     int64
	SQLitePath      string
	PostgresDSN     string
	EmbeddingURL    string
	EmbeddingModel  string
}

// LoadEndpointEnvConfig reads configuration from the environment, loading a
// .env file first when present.
func LoadEndpointEnvConfig() EndpointEnvConfig {
	// Missing .env is fine; the environment may be set directly.
	_ = godotenv.Load()

	return EndpointEnvConfig{
		ListenAddr:      getEnv("AIGEN_LISTEN_ADDR", ":8080"),
		AuthToken:       getEnv("AIGEN_AUTH_TOKEN", ""),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		GeminiAPIKey:    getEnv("GEMINI_API_KEY", ""),
		RateLimitPerSec: getEnvFloat("AIGEN_RATE_LIMIT", 10),
		RateBurst:       getEnvInt("AIGEN_RATE_BURST", 20),
		MaxInFlight:     int64(getEnvInt("AIGEN_MAX_IN_FLIGHT", 16)),
		SQLitePath:      getEnv("AIGEN_SQLITE_PATH", ""),
		PostgresDSN:     getEnv("AIGEN_POSTGRES_DSN", ""),
		EmbeddingURL:    getEnv("AIGEN_EMBEDDING_URL", ""),
		EmbeddingModel:  getEnv("AIGEN_EMBEDDING_MODEL", "all-MiniLM-L6-v2"),
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}
