package aigen

import (
	"context"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicClientProvider defines the interface for interacting with
// Anthropic's API. It abstracts the single message operation the generation
// endpoint needs.
type AnthropicClientProvider interface {
	CreateMessage(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error)
}

// AnthropicClient implements AnthropicClientProvider using Anthropic's
// official SDK.
type AnthropicClient struct {
	messages *anthropic.MessageService
}

// NewAnthropicClient creates a new AnthropicClient with the provided API key.
func NewAnthropicClient(apiKey string, opts ...option.RequestOption) *AnthropicClient {
	opts = append(opts, option.WithAPIKey(apiKey))
	client := anthropic.NewClient(opts...)
	return &AnthropicClient{
		messages: client.Messages,
	}
}

// CreateMessage implements AnthropicClientProvider.
func (c *AnthropicClient) CreateMessage(ctx context.Context, params anthropic.MessageNewParams) (*anthropic.Message, error) {
	return c.messages.New(ctx, params)
}

// AnthropicProvider implements GenerationProvider using Anthropic's SDK.
type AnthropicProvider struct {
	client AnthropicClientProvider
}

// NewAnthropicProvider creates an Anthropic generation provider.
func NewAnthropicProvider(client AnthropicClientProvider) *AnthropicProvider {
	return &AnthropicProvider{client: client}
}

// Name implements GenerationProvider.
func (p *AnthropicProvider) Name() string { return ProviderAnthropic }

// Generate implements GenerationProvider with a single message call.
func (p *AnthropicProvider) Generate(ctx context.Context, req GenerationRequest) (GenerationResult, error) {
	startTime := time.Now()

	params := anthropic.MessageNewParams{
		Model: anthropic.F(anthropic.Model(req.ModelID)),
		Messages: anthropic.F([]anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		}),
		MaxTokens:   anthropic.F(req.MaxTokens),
		TopP:        anthropic.Float(req.TopP),
		Temperature: anthropic.Float(req.Temperature),
	}

	message, err := p.client.CreateMessage(ctx, params)
	if err != nil {
		return GenerationResult{}, WrapError(KindGenerationFailed, err, "anthropic message failed")
	}

	var content strings.Builder
	for _, block := range message.Content {
		if text, ok := block.AsUnion().(anthropic.TextBlock); ok {
			content.WriteString(text.Text)
		}
	}

	return GenerationResult{
		Content:  strings.TrimSpace(content.String()),
		ModelID:  req.ModelID,
		Provider: ProviderAnthropic,
		Usage: &TokenUsage{
			PromptTokens:     int(message.Usage.InputTokens),
			CompletionTokens: int(message.Usage.OutputTokens),
			TotalTokens:      int(message.Usage.InputTokens + message.Usage.OutputTokens),
		},
		CompletionTime: time.Since(startTime).Seconds(),
	}, nil
}
