package aigen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/postloom/aigen/observability"
)

// generationRequestBody is the wire shape accepted by the generation endpoint.
type generationRequestBody struct {
	Prompt      string   `json:"prompt"`
	Model       string   `json:"model"`
	MaxTokens   int64    `json:"maxTokens,omitempty"`
	Temperature float64  `json:"temperature,omitempty"`
	TopP        float64  `json:"topP,omitempty"`
	TopK        int64    `json:"topK,omitempty"`
	Images      []string `json:"images,omitempty"`
}

// generationResponseBody is the wire shape returned by the generation
// endpoint on success.
type generationResponseBody struct {
	Content  string      `json:"content"`
	Model    string      `json:"model"`
	Provider string      `json:"provider"`
	Usage    *TokenUsage `json:"usage,omitempty"`
}

type generationErrorBody struct {
	Error string `json:"error"`
}

// ClientConfig holds the configuration for the generation client.
type ClientConfig struct {
	// BaseURL is the generation endpoint base, e.g. "https://api.example.com".
	BaseURL string

	// HTTPClient is used for the endpoint call. Defaults to
	// http.DefaultClient; no timeout is enforced beyond what this client
	// carries.
	HTTPClient *http.Client

	// Registry resolves model ids before any network activity.
	Registry *Registry

	// Sessions supplies the bearer credential attached to each call.
	Sessions SessionProvider

	Logger observability.Logger
}

// Client issues generation calls against the remote generation endpoint.
// One call per Generate; the client never retries.
type Client struct {
	baseURL    string
	httpClient *http.Client
	registry   *Registry
	sessions   SessionProvider
	logger     observability.Logger
}

// NewClient creates a generation client from the given configuration.
func NewClient(config ClientConfig) *Client {
	if config.HTTPClient == nil {
		config.HTTPClient = http.DefaultClient
	}
	if config.Logger == nil {
		config.Logger = observability.NewNullLogger()
	}

	return &Client{
		baseURL:    config.BaseURL,
		httpClient: config.HTTPClient,
		registry:   config.Registry,
		sessions:   config.Sessions,
		logger:     config.Logger,
	}
}

// Generate performs a single generation call. The model id must resolve in
// the registry and a session credential must be available; both are checked
// before any network activity. Prompt validation is the caller's
// responsibility.
func (c *Client) Generate(ctx context.Context, req GenerationRequest) (GenerationResult, error) {
	startTime := time.Now()

	descriptor, ok := c.registry.Lookup(req.ModelID)
	if !ok {
		return GenerationResult{}, NewError(KindUnsupportedModel, "unsupported model: %s", req.ModelID)
	}

	session, err := c.sessions.Session(ctx)
	if err != nil {
		return GenerationResult{}, WrapError(KindUnauthenticated, err, "no active session")
	}
	if session.AccessToken == "" {
		return GenerationResult{}, NewError(KindUnauthenticated, "no active session")
	}

	body := generationRequestBody{
		Prompt:      req.Prompt,
		Model:       req.ModelID,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		TopK:        req.TopK,
		Images:      req.Images,
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return GenerationResult{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/generation", bytes.NewBuffer(jsonBody))
	if err != nil {
		return GenerationResult{}, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+session.AccessToken)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return GenerationResult{}, WrapError(KindGenerationFailed, err, "generation request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errBody generationErrorBody
		if decodeErr := json.NewDecoder(resp.Body).Decode(&errBody); decodeErr != nil || errBody.Error == "" {
			errBody.Error = fmt.Sprintf("unexpected status code: %d", resp.StatusCode)
		}
		c.logger.WithFields(map[string]interface{}{
			"status": resp.StatusCode,
			"model":  req.ModelID,
		}).Error("generation endpoint returned an error")
		return GenerationResult{}, NewError(KindGenerationFailed, "%s", errBody.Error)
	}

	var genResp generationResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return GenerationResult{}, WrapError(KindGenerationFailed, err, "failed to decode response")
	}

	provider := genResp.Provider
	if provider == "" {
		provider = descriptor.Provider
	}

	return GenerationResult{
		Content:        genResp.Content,
		ModelID:        genResp.Model,
		Provider:       provider,
		Usage:          genResp.Usage,
		CompletionTime: time.Since(startTime).Seconds(),
	}, nil
}
