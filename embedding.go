package aigen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// PromptEmbedder produces a vector representation of a prompt. The Postgres
// history store uses it for similar-prompt lookup; the core generation flow
// works without one.
type PromptEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// OpenAICompatibleEmbedder implements PromptEmbedder against any
// OpenAI-compatible embeddings REST API.
type OpenAICompatibleEmbedder struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewOpenAICompatibleEmbedder creates an embedder for the given base URL and
// embedding model name.
func NewOpenAICompatibleEmbedder(baseURL, model string, httpClient *http.Client) *OpenAICompatibleEmbedder {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &OpenAICompatibleEmbedder{
		baseURL:    baseURL,
		model:      model,
		httpClient: httpClient,
	}
}

type embeddingRequest struct {
	Input          string `json:"input"`
	Model          string `json:"model"`
	EncodingFormat string `json:"encoding_format"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed implements PromptEmbedder.
func (e *OpenAICompatibleEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	reqBody := embeddingRequest{
		Input:          text,
		Model:          e.model,
		EncodingFormat: "float",
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/v1/embeddings", bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var embResp embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&embResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	if len(embResp.Data) == 0 {
		return nil, fmt.Errorf("no embedding in response")
	}

	return embResp.Data[0].Embedding, nil
}
