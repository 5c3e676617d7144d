// Package ollama implements ai.Embedder on Ollama's native API.
package ollama

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/poiesic/ingestor/ai"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
)

// Embedder implements ai.Embedder against an Ollama server.
type Embedder struct {
	embedder embeddings.Embedder
	name     string
	logger   *slog.Logger
}

// NewEmbedder creates an embedder for config.Model served at config.Host.
func NewEmbedder(config *ai.Config) (ai.Embedder, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.Provider != ai.ProviderOllama {
		return nil, fmt.Errorf("ai config: ollama embedder cannot serve provider %q", config.Provider)
	}

	client, err := ollama.New(
		ollama.WithModel(config.Model),
		ollama.WithServerURL(config.Host),
	)
	if err != nil {
		return nil, err
	}

	embedder, err := embeddings.NewEmbedder(client,
		embeddings.WithStripNewLines(true),
		embeddings.WithBatchSize(config.BatchSize),
	)
	if err != nil {
		return nil, err
	}

	return &Embedder{
		embedder: embedder,
		name:     fmt.Sprintf("%s/%s", ai.ProviderOllama, config.Model),
		logger:   slog.Default().With("component", "ollama-embedder", "model", config.Model),
	}, nil
}

func (e *Embedder) Name() string {
	return e.name
}

func (e *Embedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	return e.embedder.EmbedQuery(ctx, text)
}

func (e *Embedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	e.logger.Debug("generating embeddings for texts", "count", len(texts))

	vectors, err := e.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(texts))
	}
	return vectors, nil
}
