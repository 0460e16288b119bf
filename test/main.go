package main

import (
	"context"
	"log"
	"net/http"

	"github.com/postloom/aigen"
	"github.com/postloom/aigen/observability"
	"golang.org/x/time/rate"
)

// Manual test harness: runs the generation endpoint against real provider
// APIs using keys from the environment (or a .env file).
func main() {
	cfg := aigen.LoadEndpointEnvConfig()
	logger := observability.NewDefaultLogger()

	providers := map[string]aigen.GenerationProvider{}
	if cfg.OpenAIAPIKey != "" {
		providers[aigen.ProviderOpenAI] = aigen.NewOpenAIProvider(aigen.NewOpenAIClient(cfg.OpenAIAPIKey))
	}
	if cfg.AnthropicAPIKey != "" {
		providers[aigen.ProviderAnthropic] = aigen.NewAnthropicProvider(aigen.NewAnthropicClient(cfg.AnthropicAPIKey))
	}
	if cfg.GeminiAPIKey != "" {
		geminiClient, err := aigen.NewGeminiClient(context.Background(), cfg.GeminiAPIKey)
		if err != nil {
			log.Fatalf("Failed to create gemini client: %v", err)
		}
		defer geminiClient.Close()
		providers[aigen.ProviderGoogle] = aigen.NewGeminiProvider(geminiClient)
	}
	if len(providers) == 0 {
		log.Fatal("No provider API keys configured")
	}

	var authorize func(token string) error
	if cfg.AuthToken != "" {
		authorize = func(token string) error {
			if token != cfg.AuthToken {
				return aigen.NewError(aigen.KindUnauthenticated, "unknown token")
			}
			return nil
		}
	}

	endpoint := aigen.NewEndpoint(aigen.EndpointConfig{
		Registry:    aigen.NewRegistry(),
		Providers:   providers,
		Authorize:   authorize,
		RateLimit:   rate.Limit(cfg.RateLimitPerSec),
		RateBurst:   cfg.RateBurst,
		MaxInFlight: cfg.MaxInFlight,
		Logger:      logger,
	})

	logger.Infof("Listening on %s", cfg.ListenAddr)
	if err := http.ListenAndServe(cfg.ListenAddr, endpoint.Handler()); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
