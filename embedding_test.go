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

func TestOpenAICompatibleEmbedder_Embed(t *testing.T) {
	t.Run("successful embedding", func(t *testing.T) {
		var gotReq embeddingRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/embeddings", r.URL.Path)
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"data": [{"embedding": [0.1, 0.2, 0.3]}]}`))
		}))
		defer server.Close()

		embedder := NewOpenAICompatibleEmbedder(server.URL, "all-MiniLM-L6-v2", nil)

		vec, err := embedder.Embed(context.Background(), "Write a haiku about rain")

		require.NoError(t, err)
		assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
		assert.Equal(t, "Write a haiku about rain", gotReq.Input)
		assert.Equal(t, "all-MiniLM-L6-v2", gotReq.Model)
		assert.Equal(t, "float", gotReq.EncodingFormat)
	})

	t.Run("non-200 status", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		embedder := NewOpenAICompatibleEmbedder(server.URL, "all-MiniLM-L6-v2", nil)

		_, err := embedder.Embed(context.Background(), "hi")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "unexpected status code: 500")
	})

	t.Run("empty data", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"data": []}`))
		}))
		defer server.Close()

		embedder := NewOpenAICompatibleEmbedder(server.URL, "all-MiniLM-L6-v2", nil)

		_, err := embedder.Embed(context.Background(), "hi")

		assert.Error(t, err)
	})
}
