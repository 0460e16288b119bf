package aigen

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiContentGenerator defines the interface for generating content with
// a configured Gemini model.
type GeminiContentGenerator interface {
	GenerateContent(ctx context.Context, modelID string, config genai.GenerationConfig, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// GeminiClient implements GeminiContentGenerator using the genai client.
type GeminiClient struct {
	client *genai.Client
}

// NewGeminiClient creates a new GeminiClient with the provided API key.
func NewGeminiClient(ctx context.Context, apiKey string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GeminiClient{client: client}, nil
}

// GenerateContent implements GeminiContentGenerator.
func (c *GeminiClient) GenerateContent(ctx context.Context, modelID string, config genai.GenerationConfig, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	model := c.client.GenerativeModel(modelID)
	model.GenerationConfig = config
	return model.GenerateContent(ctx, parts...)
}

// Close releases the underlying genai client.
func (c *GeminiClient) Close() error {
	return c.client.Close()
}

// GeminiProvider implements GenerationProvider using Google's Gemini models.
type GeminiProvider struct {
	generator GeminiContentGenerator
}

// NewGeminiProvider creates a Gemini generation provider.
func NewGeminiProvider(generator GeminiContentGenerator) *GeminiProvider {
	return &GeminiProvider{generator: generator}
}

// Name implements GenerationProvider.
func (p *GeminiProvider) Name() string { return ProviderGoogle }

// Generate implements GenerationProvider with a single content call. Usage
// is nil when the response carries no UsageMetadata; Gemini does not always
// report token counts and absence is reported as absence, not zero.
func (p *GeminiProvider) Generate(ctx context.Context, req GenerationRequest) (GenerationResult, error) {
	startTime := time.Now()

	maxTokens := int32(req.MaxTokens)
	temperature := float32(req.Temperature)
	topP := float32(req.TopP)
	topK := int32(req.TopK)

	config := genai.GenerationConfig{
		MaxOutputTokens: &maxTokens,
		Temperature:     &temperature,
		TopP:            &topP,
		TopK:            &topK,
	}

	resp, err := p.generator.GenerateContent(ctx, req.ModelID, config, genai.Text(req.Prompt))
	if err != nil {
		return GenerationResult{}, WrapError(KindGenerationFailed, err, "gemini generation failed")
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return GenerationResult{}, NewError(KindGenerationFailed, "no candidates in response")
	}

	var content strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			content.WriteString(string(text))
		}
	}

	var usage *TokenUsage
	if resp.UsageMetadata != nil {
		usage = &TokenUsage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}
	}

	return GenerationResult{
		Content:        content.String(),
		ModelID:        req.ModelID,
		Provider:       ProviderGoogle,
		Usage:          usage,
		CompletionTime: time.Since(startTime).Seconds(),
	}, nil
}
