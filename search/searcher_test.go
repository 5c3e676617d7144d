package search

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/poiesic/ingestor/ai/mock"
	"github.com/poiesic/ingestor/core"
	"github.com/poiesic/ingestor/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const collection = "documents"

func setupStore(t *testing.T, texts ...string) *badger.VectorStore {
	t.Helper()
	_, vectors, backend, err := badger.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	ctx := context.Background()
	require.NoError(t, vectors.EnsureCollection(ctx, collection, mock.DefaultDimension))
	for i, text := range texts {
		require.NoError(t, vectors.Upsert(ctx, collection, &core.ChunkRecord{
			Id:         text,
			DocumentId: core.ID(i + 1),
			Source:     "doc.pdf",
			Index:      i,
			Text:       text,
			Vector:     mock.Vector(text),
		}))
	}
	return vectors
}

func TestNewSearcher(t *testing.T) {
	vectors := setupStore(t)
	embedder := mock.NewMockEmbedder()

	t.Run("valid configuration", func(t *testing.T) {
		searcher, err := NewSearcher(vectors, embedder, collection)
		require.NoError(t, err)
		assert.NotNil(t, searcher)
	})

	t.Run("with custom logger", func(t *testing.T) {
		searcher, err := NewSearcher(vectors, embedder, collection, WithLogger(slog.Default()))
		require.NoError(t, err)
		assert.NotNil(t, searcher)
	})

	t.Run("with nil logger falls back to default", func(t *testing.T) {
		searcher, err := NewSearcher(vectors, embedder, collection, WithLogger(nil))
		require.NoError(t, err)
		assert.NotNil(t, searcher)
	})

	t.Run("nil vector store", func(t *testing.T) {
		_, err := NewSearcher(nil, embedder, collection)
		assert.Equal(t, ErrVectorStoreRequired, err)
	})

	t.Run("nil embedder", func(t *testing.T) {
		_, err := NewSearcher(vectors, nil, collection)
		assert.Equal(t, ErrEmbedderRequired, err)
	})
}

func TestFindSimilar_ExactTextRanksFirst(t *testing.T) {
	vectors := setupStore(t,
		"invoices are due within thirty days",
		"the office closes at six",
		"refunds require a receipt",
	)
	searcher, err := NewSearcher(vectors, mock.NewMockEmbedder(), collection, WithMinScore(-1))
	require.NoError(t, err)

	results, err := searcher.FindSimilar(context.Background(), "refunds require a receipt", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "refunds require a receipt", results[0].Chunk.Text)
	assert.InDelta(t, 1.0+verbatimBoost, results[0].Score, 0.001)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
}

func TestFindSimilar_MinScoreFilters(t *testing.T) {
	vectors := setupStore(t, "alpha", "beta")
	searcher, err := NewSearcher(vectors, mock.NewMockEmbedder(), collection, WithMinScore(1.5))
	require.NoError(t, err)

	results, err := searcher.FindSimilar(context.Background(), "alpha", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestFindSimilar_InvalidInput(t *testing.T) {
	searcher, err := NewSearcher(setupStore(t, "alpha"), mock.NewMockEmbedder(), collection)
	require.NoError(t, err)

	_, err = searcher.FindSimilar(context.Background(), "   ", 5)
	assert.ErrorIs(t, err, ErrEmptyQuery)

	results, err := searcher.FindSimilar(context.Background(), "alpha", 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestFindSimilar_EmbedderError(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("embedder down")
	}
	searcher, err := NewSearcher(setupStore(t, "alpha"), embedder, collection)
	require.NoError(t, err)

	_, err = searcher.FindSimilar(context.Background(), "alpha", 5)
	assert.EqualError(t, err, "embedder down")
}

func TestFindSimilar_MissingCollection(t *testing.T) {
	searcher, err := NewSearcher(setupStore(t), mock.NewMockEmbedder(), "missing")
	require.NoError(t, err)

	_, err = searcher.FindSimilar(context.Background(), "alpha", 5)
	assert.Error(t, err)
}

type recordingMonitor struct {
	noopMonitor
	started    string
	candidates int
	verbatim   int
	finished   int
}

func (m *recordingMonitor) Start(query string)                          { m.started = query }
func (m *recordingMonitor) AfterSemanticSearch(c []*core.SearchResult)  { m.candidates = len(c) }
func (m *recordingMonitor) VerbatimHit(_ *core.ChunkRecord)             { m.verbatim++ }
func (m *recordingMonitor) Finish(r []*core.SearchResult)               { m.finished = len(r) }

func TestFindSimilarWithMonitor(t *testing.T) {
	vectors := setupStore(t, "red apples", "green pears", "yellow bananas")
	searcher, err := NewSearcher(vectors, mock.NewMockEmbedder(), collection, WithMinScore(-1))
	require.NoError(t, err)

	monitor := &recordingMonitor{}
	results, err := searcher.FindSimilarWithMonitor(context.Background(), "red apples", 1, monitor)
	require.NoError(t, err)

	assert.Equal(t, "red apples", monitor.started)
	assert.Equal(t, 3, monitor.candidates)
	assert.Equal(t, 1, monitor.verbatim)
	assert.Equal(t, len(results), monitor.finished)
}

func TestVerbatimMatch(t *testing.T) {
	tests := []struct {
		text  string
		query string
		want  bool
	}{
		{text: "The invoice is overdue.", query: "invoice overdue", want: true},
		{text: "The invoice is paid.", query: "invoice overdue", want: false},
		{text: "Anything at all", query: "the of and", want: false},
		{text: "Refunds, (with receipt)!", query: "receipt refunds", want: true},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, verbatimMatch(tt.text, terms(tt.query)))
		})
	}
}
