package aigen

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"github.com/postloom/aigen/observability"
)

// TracingProvider implements the decorator pattern for tracing any
// GenerationProvider.
type TracingProvider struct {
	provider GenerationProvider
}

// NewTracingProvider creates a new tracing decorator for any
// GenerationProvider.
func NewTracingProvider(provider GenerationProvider) *TracingProvider {
	return &TracingProvider{provider: provider}
}

// Name implements GenerationProvider.
func (t *TracingProvider) Name() string {
	return t.provider.Name()
}

// Generate implements GenerationProvider with added tracing.
func (t *TracingProvider) Generate(ctx context.Context, req GenerationRequest) (GenerationResult, error) {
	ctx, span := observability.StartSpan(ctx, "GenerationProvider.Generate")
	defer span.End()

	span.SetAttributes(
		attribute.String("provider", t.provider.Name()),
		attribute.String("model", req.ModelID),
		attribute.Int64("max_tokens", req.MaxTokens),
		attribute.Float64("temperature", req.Temperature),
		attribute.Float64("top_p", req.TopP),
		attribute.Int64("top_k", req.TopK),
	)

	result, err := t.provider.Generate(ctx, req)
	if err != nil {
		span.RecordError(err)
		return GenerationResult{}, err
	}

	if result.Usage != nil {
		span.SetAttributes(
			attribute.Int("prompt_tokens", result.Usage.PromptTokens),
			attribute.Int("completion_tokens", result.Usage.CompletionTokens),
		)
	}
	span.SetAttributes(attribute.Float64("completion_time", result.CompletionTime))

	return result, nil
}
