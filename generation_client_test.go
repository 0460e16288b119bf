package aigen

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, session Session) (*Client, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := NewClient(ClientConfig{
		BaseURL:  server.URL,
		Registry: NewRegistry(),
		Sessions: NewStaticSessionProvider(session),
	})
	return client, server
}

func TestClient_Generate_Success(t *testing.T) {
	var gotAuth string
	var gotBody generationRequestBody

	handler := func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/generation", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(generationResponseBody{
			Content:  "Soft rain on rooftops",
			Model:    "gemini-pro",
			Provider: "google",
			Usage:    &TokenUsage{PromptTokens: 12, CompletionTokens: 17, TotalTokens: 29},
		})
	}

	client, _ := newTestClient(t, handler, Session{UserID: "user-1", AccessToken: "token-abc"})

	req := NewGenerationRequest("Write a haiku about rain", "gemini-pro", WithMaxTokens(256))
	result, err := client.Generate(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, "Bearer token-abc", gotAuth)
	assert.Equal(t, "Write a haiku about rain", gotBody.Prompt)
	assert.Equal(t, "gemini-pro", gotBody.Model)
	assert.Equal(t, int64(256), gotBody.MaxTokens)

	assert.Equal(t, "Soft rain on rooftops", result.Content)
	assert.Equal(t, "gemini-pro", result.ModelID)
	assert.Equal(t, "google", result.Provider)
	require.NotNil(t, result.Usage)
	assert.Equal(t, 29, result.Usage.TotalTokens)
	assert.Greater(t, result.CompletionTime, float64(0))
}

func TestClient_Generate_UsageAbsent(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(generationResponseBody{
			Content: "Soft rain on rooftops",
			Model:   "gemini-pro",
		})
	}

	client, _ := newTestClient(t, handler, Session{UserID: "user-1", AccessToken: "token-abc"})

	result, err := client.Generate(context.Background(), NewGenerationRequest("hi", "gemini-pro"))

	require.NoError(t, err)
	assert.Nil(t, result.Usage, "absent usage must stay nil, never a zero struct")
	assert.Equal(t, "google", result.Provider, "provider falls back to the registry descriptor")
}

func TestClient_Generate_EndpointErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantInside string
	}{
		{
			name:       "rate limited",
			status:     http.StatusTooManyRequests,
			body:       `{"error": "rate limited"}`,
			wantInside: "rate limited",
		},
		{
			name:       "upstream failure",
			status:     http.StatusBadGateway,
			body:       `{"error": "provider generation failed"}`,
			wantInside: "provider generation failed",
		},
		{
			name:       "malformed error body",
			status:     http.StatusInternalServerError,
			body:       `<html>oops</html>`,
			wantInside: "unexpected status code: 500",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}

			client, _ := newTestClient(t, handler, Session{UserID: "user-1", AccessToken: "token-abc"})

			_, err := client.Generate(context.Background(), NewGenerationRequest("hi", "gemini-pro"))

			require.Error(t, err)
			assert.True(t, IsKind(err, KindGenerationFailed))
			assert.Contains(t, err.Error(), tt.wantInside)
		})
	}
}

func TestClient_Generate_UnsupportedModelBeforeNetwork(t *testing.T) {
	called := false
	handler := func(w http.ResponseWriter, r *http.Request) {
		called = true
	}

	client, _ := newTestClient(t, handler, Session{UserID: "user-1", AccessToken: "token-abc"})

	_, err := client.Generate(context.Background(), NewGenerationRequest("hi", "imagination-9000"))

	require.Error(t, err)
	assert.True(t, IsKind(err, KindUnsupportedModel))
	assert.Contains(t, err.Error(), "imagination-9000")
	assert.False(t, called, "no network call should happen for an unknown model")
}

func TestClient_Generate_Unauthenticated(t *testing.T) {
	called := false
	handler := func(w http.ResponseWriter, r *http.Request) {
		called = true
	}

	client, _ := newTestClient(t, handler, Session{})

	_, err := client.Generate(context.Background(), NewGenerationRequest("hi", "gemini-pro"))

	require.Error(t, err)
	assert.True(t, IsKind(err, KindUnauthenticated))
	assert.False(t, called, "no network call should happen without a credential")
}

func TestClient_Generate_AnonymousSessionAllowed(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(generationResponseBody{Content: "ok", Model: "gemini-pro", Provider: "google"})
	}

	// Anonymous sessions carry a token but no user id; generation still works.
	client, _ := newTestClient(t, handler, Session{AccessToken: "anon-token"})

	result, err := client.Generate(context.Background(), NewGenerationRequest("hi", "gemini-pro"))

	require.NoError(t, err)
	assert.Equal(t, "ok", result.Content)
}
