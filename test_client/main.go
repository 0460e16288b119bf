package main

import (
	"context"
	"flag"
	"log"
	"os"

	"github.com/postloom/aigen"
)

// Manual test harness: drives the orchestrator against a running generation
// endpoint and prints the resulting history.
func main() {
	baseURL := flag.String("url", "http://localhost:8080", "generation endpoint base URL")
	model := flag.String("model", "", "model id (empty uses the registry default)")
	prompt := flag.String("prompt", "Write a haiku about rain", "prompt to generate from")
	flag.Parse()

	registry := aigen.NewRegistry()
	sessions := aigen.NewStaticSessionProvider(aigen.Session{
		UserID:      os.Getenv("AIGEN_USER_ID"),
		AccessToken: os.Getenv("AIGEN_AUTH_TOKEN"),
	})

	client := aigen.NewClient(aigen.ClientConfig{
		BaseURL:  *baseURL,
		Registry: registry,
		Sessions: sessions,
	})

	orchestrator := aigen.NewOrchestrator(aigen.OrchestratorConfig{
		Client:   client,
		Registry: registry,
		Sessions: sessions,
		Quota:    aigen.NewStaticQuotaSource(nil),
		Cache:    aigen.NewFileFallbackCache("aigen_history.json", nil),
	})

	if err := orchestrator.LoadHistory(context.Background()); err != nil {
		log.Fatalf("Failed to load history: %v", err)
	}

	entry, err := orchestrator.Generate(context.Background(), *prompt, aigen.GenerateParams{ModelID: *model})
	if err != nil {
		log.Fatalf("Generation failed: %v", err)
	}

	log.Printf("Generated with %s (%s):\n%s", entry.ModelID, entry.Provider, entry.Content)
	if entry.Usage != nil {
		log.Printf("Tokens: %d prompt, %d completion", entry.Usage.PromptTokens, entry.Usage.CompletionTokens)
	}

	for i, e := range orchestrator.History() {
		log.Printf("history[%d] %s %s", i, e.CreatedAt.Format("2006-01-02 15:04:05"), e.Prompt)
	}
}
