package ingestion

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/ingestor/ai/mock"
	"github.com/poiesic/ingestor/core"
	"github.com/poiesic/ingestor/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPipeline_RequiresCollaborators(t *testing.T) {
	env := newTestEnv(t)

	_, err := NewPipeline(nil, env.vectors, env.embedder)
	assert.ErrorIs(t, err, ErrDocumentStoreRequired)

	_, err = NewPipeline(env.docs, nil, env.embedder)
	assert.ErrorIs(t, err, ErrVectorStoreRequired)

	_, err = NewPipeline(env.docs, env.vectors, nil)
	assert.ErrorIs(t, err, ErrEmbedderRequired)

	_, err = NewPipeline(env.docs, env.vectors, env.embedder, WithRetry(0, 0))
	assert.ErrorIs(t, err, ErrInvalidMaxAttempts)
}

func TestNewPipeline_Defaults(t *testing.T) {
	env := newTestEnv(t)
	p, err := NewPipeline(env.docs, env.vectors, env.embedder)
	require.NoError(t, err)
	defer p.Release()

	assert.Equal(t, DefaultCollection, p.Collection())
	assert.Equal(t, DefaultNamespace, p.Namespace())
	assert.IsType(t, PDFLoader{}, p.loader)
}

func TestPipelineRun(t *testing.T) {
	env := newTestEnv(t)
	p := env.pipeline(t)
	ctx := context.Background()
	path := writeDoc(t, t.TempDir(), "a.pdf", sampleText)

	outcome, err := p.Run(ctx, Document{Path: path, Source: "s3://bucket/a.pdf"})
	require.NoError(t, err)
	assert.False(t, outcome.Unchanged)
	require.Greater(t, len(outcome.Chunks), 1)
	assert.Equal(t, core.IDFromContent("s3://bucket/a.pdf"), outcome.DocumentID)

	for i, chunk := range outcome.Chunks {
		assert.Equal(t, i, chunk.Index)
		assert.Equal(t, outcome.DocumentID, chunk.DocumentId)
		assert.Equal(t, "s3://bucket/a.pdf", chunk.Source)
		assert.Equal(t, "s3://bucket/a.pdf", chunk.Metadata["source"])
		assert.Equal(t, "1", chunk.Metadata["page"])
		assert.Equal(t, mock.Vector(chunk.Text), chunk.Vector)
	}
	assert.Equal(t, len(outcome.Chunks), env.chunkCount(t))
}

func TestPipelineRun_ChunkIDsAreDeterministic(t *testing.T) {
	env := newTestEnv(t)
	p := env.pipeline(t)
	path := writeDoc(t, t.TempDir(), "a.pdf", sampleText)

	first, err := p.Run(context.Background(), Document{Path: path})
	require.NoError(t, err)

	other := newTestEnv(t).pipeline(t)
	second, err := other.Run(context.Background(), Document{Path: path})
	require.NoError(t, err)

	require.Equal(t, len(first.Chunks), len(second.Chunks))
	for i := range first.Chunks {
		assert.Equal(t, first.Chunks[i].Id, second.Chunks[i].Id)
	}
}

func TestPipelineRun_UnchangedDocumentIsSkipped(t *testing.T) {
	env := newTestEnv(t)
	p := env.pipeline(t)
	ctx := context.Background()
	path := writeDoc(t, t.TempDir(), "a.pdf", sampleText)

	first, err := p.Run(ctx, Document{Path: path})
	require.NoError(t, err)
	calls := env.embedder.CallCount()

	second, err := p.Run(ctx, Document{Path: path})
	require.NoError(t, err)
	assert.True(t, second.Unchanged)
	assert.Empty(t, second.Chunks)
	assert.Equal(t, calls, env.embedder.CallCount())
	assert.Equal(t, len(first.Chunks), env.chunkCount(t))
}

func TestPipelineRun_IdentityFollowsSource(t *testing.T) {
	env := newTestEnv(t)
	p := env.pipeline(t)
	ctx := context.Background()

	scratch1 := writeDoc(t, t.TempDir(), "00000-a.pdf", sampleText)
	scratch2 := writeDoc(t, t.TempDir(), "00003-a.pdf", sampleText)

	_, err := p.Run(ctx, Document{Path: scratch1, Source: "s3://bucket/a.pdf"})
	require.NoError(t, err)

	outcome, err := p.Run(ctx, Document{Path: scratch2, Source: "s3://bucket/a.pdf"})
	require.NoError(t, err)
	assert.True(t, outcome.Unchanged)
}

func TestPipelineRun_ChangedDocumentReplacesChunks(t *testing.T) {
	env := newTestEnv(t)
	p := env.pipeline(t)
	ctx := context.Background()
	dir := t.TempDir()
	path := writeDoc(t, dir, "a.pdf", sampleText+" "+sampleText)

	first, err := p.Run(ctx, Document{Path: path})
	require.NoError(t, err)

	writeDoc(t, dir, "a.pdf", "A much shorter replacement text.")
	second, err := p.Run(ctx, Document{Path: path})
	require.NoError(t, err)

	assert.False(t, second.Unchanged)
	assert.Less(t, len(second.Chunks), len(first.Chunks))
	assert.Equal(t, len(second.Chunks), env.chunkCount(t))
}

func TestPipelineRun_EmptyDocument(t *testing.T) {
	env := newTestEnv(t)
	p := env.pipeline(t)
	path := writeDoc(t, t.TempDir(), "empty.pdf", "   \n\t ")

	_, err := p.Run(context.Background(), Document{Path: path})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransformation)
	assert.ErrorIs(t, err, ErrEmptyDocument)

	var terr *TransformationError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, StageSplit, terr.Stage)
	assert.Equal(t, 0, p.checkpoint.Pending())
}

func TestPipelineRun_LoadFailure(t *testing.T) {
	env := newTestEnv(t)
	p := env.pipeline(t)
	path := writeDoc(t, t.TempDir(), "bad.pdf", "corrupt bytes")

	_, err := p.Run(context.Background(), Document{Path: path})
	var terr *TransformationError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, StageLoad, terr.Stage)
	assert.Equal(t, path, terr.Source)
	assert.Zero(t, env.embedder.CallCount())
}

func TestPipelineRun_MissingFile(t *testing.T) {
	env := newTestEnv(t)
	p := env.pipeline(t)

	_, err := p.Run(context.Background(), Document{Path: "/does/not/exist.pdf"})
	var terr *TransformationError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, StageHash, terr.Stage)
}

func TestPipelineRun_EmbedFailureLeavesNothing(t *testing.T) {
	env := newTestEnv(t)
	env.embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return nil, errors.New("rate limited")
	}
	p := env.pipeline(t, WithEmbedBatchSize(100))
	path := writeDoc(t, t.TempDir(), "a.pdf", sampleText)

	_, err := p.Run(context.Background(), Document{Path: path})
	var terr *TransformationError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, StageEmbed, terr.Stage)
	assert.Equal(t, 2, env.embedder.CallCount(), "one call per attempt")

	exists, err := env.vectors.CollectionExists(context.Background(), DefaultCollection)
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Equal(t, 0, p.checkpoint.Pending())
}

func TestPipelineRun_EmbedRetrySucceeds(t *testing.T) {
	env := newTestEnv(t)
	failed := false
	env.embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		if !failed {
			failed = true
			return nil, errors.New("temporary")
		}
		vectors := make([][]float32, len(texts))
		for i, text := range texts {
			vectors[i] = mock.Vector(text)
		}
		return vectors, nil
	}
	p := env.pipeline(t, WithEmbedBatchSize(100))
	path := writeDoc(t, t.TempDir(), "a.pdf", sampleText)

	outcome, err := p.Run(context.Background(), Document{Path: path})
	require.NoError(t, err)
	assert.Equal(t, len(outcome.Chunks), env.chunkCount(t))
}

func TestPipelineRun_EmbedderReturnsWrongCount(t *testing.T) {
	env := newTestEnv(t)
	env.embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
		return [][]float32{{1, 2}}, nil
	}
	p := env.pipeline(t)
	path := writeDoc(t, t.TempDir(), "a.pdf", sampleText)

	_, err := p.Run(context.Background(), Document{Path: path})
	assert.ErrorIs(t, err, ErrTransformation)
	assert.Equal(t, 0, env.chunkCount(t))
}

// failingUpserts wraps a vector store and rejects every upsert.
type failingUpserts struct {
	storage.VectorStore
}

func (f failingUpserts) Upsert(ctx context.Context, collection string, chunks ...*core.ChunkRecord) error {
	return errors.New("vector store unavailable")
}

func TestPipelineRun_UpsertFailure(t *testing.T) {
	env := newTestEnv(t)
	splitter, err := NewSplitter(SplitCharacters, 40, 10)
	require.NoError(t, err)
	p, err := NewPipeline(env.docs, failingUpserts{env.vectors}, env.embedder,
		WithLoader(textLoader), WithSplitter(splitter), WithLogger(env.logs.logger()))
	require.NoError(t, err)
	defer p.Release()
	path := writeDoc(t, t.TempDir(), "a.pdf", sampleText)

	_, err = p.Run(context.Background(), Document{Path: path})
	var terr *TransformationError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, StageUpsert, terr.Stage)
	assert.Equal(t, 0, p.checkpoint.Pending())
	assert.Equal(t, 0, env.chunkCount(t))
	assert.Zero(t, env.logs.count("ERROR"))
}

func TestPipelineCheckpointPersistence(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	path := writeDoc(t, t.TempDir(), "a.pdf", sampleText)

	p := env.pipeline(t)
	require.NoError(t, p.LoadCheckpoint(ctx))
	first, err := p.Run(ctx, Document{Path: path})
	require.NoError(t, err)

	// Nothing is written to the docstore until persisted
	records, err := env.docs.ListDocuments(ctx, DefaultNamespace)
	require.NoError(t, err)
	assert.Empty(t, records)

	require.NoError(t, p.PersistCheckpoint(ctx))
	records, err = env.docs.ListDocuments(ctx, DefaultNamespace)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, path, records[0].Source)
	assert.Equal(t, DefaultCollection, records[0].Collection)
	assert.Len(t, records[0].ChunkIds, len(first.Chunks))

	// A fresh pipeline over the same stores sees the document as unchanged
	reopened := env.pipeline(t)
	require.NoError(t, reopened.LoadCheckpoint(ctx))
	outcome, err := reopened.Run(ctx, Document{Path: path})
	require.NoError(t, err)
	assert.True(t, outcome.Unchanged)
}

func TestPipelineCheckpoint_NamespaceIsolation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	path := writeDoc(t, t.TempDir(), "a.pdf", sampleText)

	alpha := env.pipeline(t, WithNamespace("alpha"))
	_, err := alpha.Run(ctx, Document{Path: path})
	require.NoError(t, err)
	require.NoError(t, alpha.PersistCheckpoint(ctx))

	beta := env.pipeline(t, WithNamespace("beta"), WithCollection("beta-docs"))
	require.NoError(t, beta.LoadCheckpoint(ctx))
	outcome, err := beta.Run(ctx, Document{Path: path})
	require.NoError(t, err)
	assert.False(t, outcome.Unchanged)
}
