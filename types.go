// Package aigen implements the content-generation core of a social media
// dashboard: a model registry, a client for the remote generation endpoint,
// and an orchestrator that enforces plan quotas and records generation
// history with a local fallback cache.
package aigen

// GenerationRequest describes a single generation attempt. It is built per
// user action and never persisted.
type GenerationRequest struct {
	Prompt      string
	ModelID     string
	MaxTokens   int64
	Temperature float64
	TopP        float64
	TopK        int64
	Images      []string
}

// TokenUsage holds the token accounting reported by an upstream provider.
// A nil *TokenUsage means the provider did not report usage; it is never
// synthesized as all-zero.
type TokenUsage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

// GenerationResult is the normalized response of one generation call.
type GenerationResult struct {
	Content        string
	ModelID        string
	Provider       string
	Usage          *TokenUsage
	CompletionTime float64
}

// RequestOption configures a GenerationRequest.
type RequestOption func(*GenerationRequest)

// WithMaxTokens sets the maximum number of output tokens.
func WithMaxTokens(maxTokens int64) RequestOption {
	return func(r *GenerationRequest) {
		r.MaxTokens = maxTokens
	}
}

// WithTemperature sets the sampling temperature.
func WithTemperature(temperature float64) RequestOption {
	return func(r *GenerationRequest) {
		r.Temperature = temperature
	}
}

// WithTopP sets the nucleus sampling parameter.
func WithTopP(topP float64) RequestOption {
	return func(r *GenerationRequest) {
		r.TopP = topP
	}
}

// WithTopK sets the top-k sampling parameter.
func WithTopK(topK int64) RequestOption {
	return func(r *GenerationRequest) {
		r.TopK = topK
	}
}

// WithImages attaches image URLs to the request. The target model must
// support image input.
func WithImages(urls ...string) RequestOption {
	return func(r *GenerationRequest) {
		r.Images = append(r.Images, urls...)
	}
}

// DefaultRequest holds the default tuning parameters applied by
// NewGenerationRequest before options run.
var DefaultRequest = GenerationRequest{
	MaxTokens:   1000,
	Temperature: 0.5,
	TopP:        0.5,
	TopK:        40,
}

// NewGenerationRequest builds a request for the given prompt and model with
// default tuning parameters, then applies the provided options.
func NewGenerationRequest(prompt, modelID string, opts ...RequestOption) GenerationRequest {
	req := DefaultRequest
	req.Prompt = prompt
	req.ModelID = modelID

	for _, opt := range opts {
		opt(&req)
	}

	return req
}
