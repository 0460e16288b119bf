package aigen

import (
	"context"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIClientProvider defines the interface for interacting with OpenAI's
// API. It abstracts the single completion operation the generation endpoint
// needs.
type OpenAIClientProvider interface {
	CreateCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error)
}

// OpenAIClient implements OpenAIClientProvider using OpenAI's official SDK.
type OpenAIClient struct {
	client *openai.Client
}

// NewOpenAIClient creates a new OpenAIClient with the provided API key and
// optional client options.
func NewOpenAIClient(apiKey string, opts ...option.RequestOption) *OpenAIClient {
	opts = append(opts, option.WithAPIKey(apiKey))
	return &OpenAIClient{
		client: openai.NewClient(opts...),
	}
}

// CreateCompletion implements OpenAIClientProvider.
func (c *OpenAIClient) CreateCompletion(ctx context.Context, params openai.ChatCompletionNewParams) (*openai.ChatCompletion, error) {
	return c.client.Chat.Completions.New(ctx, params)
}

// OpenAIProvider implements GenerationProvider using OpenAI's SDK.
type OpenAIProvider struct {
	client OpenAIClientProvider
}

// NewOpenAIProvider creates an OpenAI generation provider.
func NewOpenAIProvider(client OpenAIClientProvider) *OpenAIProvider {
	return &OpenAIProvider{client: client}
}

// Name implements GenerationProvider.
func (p *OpenAIProvider) Name() string { return ProviderOpenAI }

// Generate implements GenerationProvider with a single chat completion call.
func (p *OpenAIProvider) Generate(ctx context.Context, req GenerationRequest) (GenerationResult, error) {
	startTime := time.Now()

	params := openai.ChatCompletionNewParams{
		Messages: openai.F([]openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(req.Prompt),
		}),
		Model:       openai.F(req.ModelID),
		MaxTokens:   openai.Int(req.MaxTokens),
		TopP:        openai.Float(req.TopP),
		Temperature: openai.Float(req.Temperature),
	}

	completion, err := p.client.CreateCompletion(ctx, params)
	if err != nil {
		return GenerationResult{}, WrapError(KindGenerationFailed, err, "openai completion failed")
	}

	if len(completion.Choices) == 0 {
		return GenerationResult{}, NewError(KindGenerationFailed, "no choices in response")
	}

	return GenerationResult{
		Content:  completion.Choices[0].Message.Content,
		ModelID:  req.ModelID,
		Provider: ProviderOpenAI,
		Usage: &TokenUsage{
			PromptTokens:     int(completion.Usage.PromptTokens),
			CompletionTokens: int(completion.Usage.CompletionTokens),
			TotalTokens:      int(completion.Usage.TotalTokens),
		},
		CompletionTime: time.Since(startTime).Seconds(),
	}, nil
}
