package aigen

import (
	"encoding/json"
	"net/http"
	"strings"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/postloom/aigen/observability"
)

// EndpointConfig holds the configuration for the generation endpoint.
type EndpointConfig struct {
	// Registry resolves model ids to descriptors.
	Registry *Registry

	// Providers maps provider names (ModelDescriptor.Provider) to
	// implementations.
	Providers map[string]GenerationProvider

	// Authorize validates the bearer token of incoming requests. When nil,
	// any non-empty token is accepted (anonymous sessions carry a token
	// too).
	Authorize func(token string) error

	// RateLimit caps request throughput. Zero disables rate limiting.
	RateLimit rate.Limit
	RateBurst int

	// MaxInFlight bounds concurrent upstream calls. Zero means 16.
	MaxInFlight int64

	Logger  observability.Logger
	Monitor Monitor
}

// Endpoint serves the generation wire contract: POST /generation with a JSON
// body, bearer-token authenticated, returning generated content plus usage
// or {"error": ...} with a non-200 status.
type Endpoint struct {
	registry  *Registry
	providers map[string]GenerationProvider
	authorize func(token string) error
	limiter   *rate.Limiter
	inflight  *semaphore.Weighted
	logger    observability.Logger
	monitor   Monitor
}

// NewEndpoint creates a generation endpoint from the given configuration.
func NewEndpoint(config EndpointConfig) *Endpoint {
	if config.Logger == nil {
		config.Logger = observability.NewNullLogger()
	}
	if config.Monitor == nil {
		config.Monitor = NewNullMonitor()
	}
	if config.MaxInFlight <= 0 {
		config.MaxInFlight = 16
	}

	var limiter *rate.Limiter
	if config.RateLimit > 0 {
		burst := config.RateBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(config.RateLimit, burst)
	}

	return &Endpoint{
		registry:  config.Registry,
		providers: config.Providers,
		authorize: config.Authorize,
		limiter:   limiter,
		inflight:  semaphore.NewWeighted(config.MaxInFlight),
		logger:    config.Logger,
		monitor:   config.Monitor,
	}
}

// Handler returns the http.Handler serving the generation contract.
func (e *Endpoint) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/generation", e.handleGeneration)
	return mux
}

func (e *Endpoint) handleGeneration(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	token, ok := bearerToken(r)
	if !ok {
		writeJSONError(w, http.StatusUnauthorized, "missing bearer token")
		return
	}
	if e.authorize != nil {
		if err := e.authorize(token); err != nil {
			writeJSONError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
	}

	if e.limiter != nil && !e.limiter.Allow() {
		writeJSONError(w, http.StatusTooManyRequests, "rate limited")
		return
	}

	var body generationRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(body.Prompt) == "" {
		writeJSONError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	descriptor, ok := e.registry.Lookup(body.Model)
	if !ok {
		writeJSONError(w, http.StatusBadRequest, "unsupported model: "+body.Model)
		return
	}

	if len(body.Images) > 0 && !descriptor.SupportsImages {
		writeJSONError(w, http.StatusBadRequest, "model does not support image input: "+body.Model)
		return
	}

	provider, ok := e.providers[descriptor.Provider]
	if !ok {
		e.logger.WithFields(map[string]interface{}{
			"provider": descriptor.Provider,
			"model":    body.Model,
		}).Error("no provider registered for model")
		writeJSONError(w, http.StatusBadRequest, "provider unavailable: "+descriptor.Provider)
		return
	}

	ctx := r.Context()
	if err := e.inflight.Acquire(ctx, 1); err != nil {
		writeJSONError(w, http.StatusServiceUnavailable, "request cancelled")
		return
	}
	defer e.inflight.Release(1)

	req := GenerationRequest{
		Prompt:      body.Prompt,
		ModelID:     body.Model,
		MaxTokens:   body.MaxTokens,
		Temperature: body.Temperature,
		TopP:        body.TopP,
		TopK:        body.TopK,
		Images:      body.Images,
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = DefaultRequest.MaxTokens
	}
	if req.MaxTokens > descriptor.MaxTokens {
		req.MaxTokens = descriptor.MaxTokens
	}

	e.monitor.AddBreadcrumb(ctx, Breadcrumb{
		Category: "generation",
		Message:  "dispatching to provider",
		Data: map[string]interface{}{
			"provider": descriptor.Provider,
			"model":    body.Model,
		},
	})

	result, err := provider.Generate(ctx, req)
	if err != nil {
		e.logger.WithErr(err).WithFields(map[string]interface{}{
			"provider": descriptor.Provider,
			"model":    body.Model,
		}).Error("provider generation failed")
		e.monitor.CaptureError(ctx, err, map[string]interface{}{"provider": descriptor.Provider})
		writeJSONError(w, http.StatusBadGateway, err.Error())
		return
	}

	resp := generationResponseBody{
		Content:  result.Content,
		Model:    result.ModelID,
		Provider: result.Provider,
		Usage:    result.Usage,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		e.logger.WithErr(err).Error("failed to encode response")
	}
}

func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) || len(auth) == len(prefix) {
		return "", false
	}
	return auth[len(prefix):], true
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(generationErrorBody{Error: message})
}
