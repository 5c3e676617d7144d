package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/poiesic/ingestor/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// embeddingServer answers the OpenAI embeddings endpoint with one vector per input,
// whose first component is the input's index.
func embeddingServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input []string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		type item struct {
			Object    string    `json:"object"`
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		}
		resp := struct {
			Object string `json:"object"`
			Data   []item `json:"data"`
			Model  string `json:"model"`
		}{Object: "list", Model: "test"}
		for i := range req.Input {
			resp.Data = append(resp.Data, item{Object: "embedding", Index: i, Embedding: []float32{float32(i), 1}})
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestNewEmbedder(t *testing.T) {
	embedder, err := NewEmbedder(ai.NewConfig(ai.WithEmbeddingModel("text-embedding-3-small")))
	require.NoError(t, err)
	assert.Equal(t, "openai/text-embedding-3-small", embedder.Name())
}

func TestNewEmbedder_InvalidConfig(t *testing.T) {
	_, err := NewEmbedder(ai.NewConfig(ai.WithHost("")))
	assert.Error(t, err)
}

func TestEmbedTexts(t *testing.T) {
	server := embeddingServer(t)
	embedder, err := NewEmbedder(ai.NewConfig(ai.WithHost(server.URL), ai.WithBatchSize(2)))
	require.NoError(t, err)

	vectors, err := embedder.EmbedTexts(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	for _, v := range vectors {
		assert.Len(t, v, 2)
	}

	vector, err := embedder.EmbedText(context.Background(), "query")
	require.NoError(t, err)
	assert.Len(t, vector, 2)
}
