package aigen

import "context"

// GenerationProvider is implemented by upstream model integrations. One
// Generate call maps to exactly one upstream API call; retries are the
// caller's decision.
type GenerationProvider interface {
	// Name returns the provider identifier used in the model catalog
	// (e.g. "openai", "anthropic").
	Name() string

	// Generate produces content for the request. Providers that do not
	// report token accounting return a nil Usage.
	Generate(ctx context.Context, req GenerationRequest) (GenerationResult, error)
}

// NoOpsProvider implements GenerationProvider for testing purposes.
type NoOpsProvider struct {
	name   string
	result GenerationResult
	err    error
}

// NoOpsOption defines the function signature for the option pattern.
type NoOpsOption func(*NoOpsProvider)

// WithResult sets a custom result for the NoOpsProvider.
func WithResult(result GenerationResult) NoOpsOption {
	return func(p *NoOpsProvider) {
		p.result = result
	}
}

// WithGenerateError makes the NoOpsProvider fail with err.
func WithGenerateError(err error) NoOpsOption {
	return func(p *NoOpsProvider) {
		p.err = err
	}
}

// NewNoOpsProvider creates a NoOpsProvider with optional configuration.
func NewNoOpsProvider(name string, opts ...NoOpsOption) *NoOpsProvider {
	provider := &NoOpsProvider{
		name: name,
		result: GenerationResult{
			Content:  "Default NoOps response",
			Provider: name,
			Usage:    &TokenUsage{PromptTokens: 10, CompletionTokens: 3, TotalTokens: 13},
		},
	}

	for _, opt := range opts {
		opt(provider)
	}

	return provider
}

// Name implements GenerationProvider.
func (p *NoOpsProvider) Name() string { return p.name }

// Generate implements GenerationProvider.
func (p *NoOpsProvider) Generate(ctx context.Context, req GenerationRequest) (GenerationResult, error) {
	if p.err != nil {
		return GenerationResult{}, p.err
	}
	result := p.result
	result.ModelID = req.ModelID
	return result, nil
}
