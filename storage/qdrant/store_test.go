package qdrant

import (
	"context"
	"errors"
	"testing"

	"github.com/poiesic/ingestor/core"
	"github.com/poiesic/ingestor/storage"
	"github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	collections map[string]uint64
	upserts     []*qdrant.UpsertPoints
	deletes     []*qdrant.DeletePoints
	queries     []*qdrant.QueryPoints
	queryResult []*qdrant.ScoredPoint
	err         error
}

func newFakeClient() *fakeClient {
	return &fakeClient{collections: map[string]uint64{}}
}

func (f *fakeClient) CollectionExists(ctx context.Context, name string) (bool, error) {
	_, ok := f.collections[name]
	return ok, f.err
}

func (f *fakeClient) ListCollections(ctx context.Context) ([]string, error) {
	var names []string
	for name := range f.collections {
		names = append(names, name)
	}
	return names, f.err
}

func (f *fakeClient) CreateCollection(ctx context.Context, req *qdrant.CreateCollection) error {
	f.collections[req.CollectionName] = req.GetVectorsConfig().GetParams().GetSize()
	return f.err
}

func (f *fakeClient) GetCollectionInfo(ctx context.Context, name string) (*qdrant.CollectionInfo, error) {
	return &qdrant.CollectionInfo{
		Config: &qdrant.CollectionConfig{
			Params: &qdrant.CollectionParams{
				VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{Size: f.collections[name]}),
			},
		},
	}, f.err
}

func (f *fakeClient) Upsert(ctx context.Context, req *qdrant.UpsertPoints) (*qdrant.UpdateResult, error) {
	f.upserts = append(f.upserts, req)
	return &qdrant.UpdateResult{}, f.err
}

func (f *fakeClient) Delete(ctx context.Context, req *qdrant.DeletePoints) (*qdrant.UpdateResult, error) {
	f.deletes = append(f.deletes, req)
	return &qdrant.UpdateResult{}, f.err
}

func (f *fakeClient) Query(ctx context.Context, req *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error) {
	f.queries = append(f.queries, req)
	return f.queryResult, f.err
}

func (f *fakeClient) Close() error { return nil }

func TestNewStore_RequiresClient(t *testing.T) {
	_, err := newStore(nil)
	assert.ErrorIs(t, err, ErrClientRequired)
}

func TestEnsureCollection(t *testing.T) {
	fake := newFakeClient()
	store, err := newStore(fake)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.EnsureCollection(ctx, "documents", 768))
	assert.Equal(t, uint64(768), fake.collections["documents"])

	require.NoError(t, store.EnsureCollection(ctx, "documents", 768))

	err = store.EnsureCollection(ctx, "documents", 384)
	assert.ErrorIs(t, err, storage.ErrDimensionMismatch)

	err = store.EnsureCollection(ctx, "", 384)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}

func TestListCollectionsSorted(t *testing.T) {
	fake := newFakeClient()
	fake.collections["b"] = 1
	fake.collections["a"] = 1
	store, err := newStore(fake)
	require.NoError(t, err)

	names, err := store.ListCollections(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)
}

func TestUpsert(t *testing.T) {
	fake := newFakeClient()
	store, err := newStore(fake)
	require.NoError(t, err)

	chunk := &core.ChunkRecord{
		Id:         "6ba7b810-9dad-11d1-80b4-00c04fd430c8",
		DocumentId: 255,
		Source:     "s3://bucket/a.pdf",
		Index:      3,
		Text:       "hello",
		Vector:     []float32{0.1, 0.2},
		Metadata:   map[string]string{"page": "2"},
	}
	require.NoError(t, store.Upsert(context.Background(), "documents", chunk))

	require.Len(t, fake.upserts, 1)
	req := fake.upserts[0]
	assert.Equal(t, "documents", req.CollectionName)
	assert.True(t, req.GetWait())
	require.Len(t, req.Points, 1)
	payload := req.Points[0].GetPayload()
	assert.Equal(t, "ff", payload[fieldDocumentID].GetStringValue())
	assert.Equal(t, int64(3), payload[fieldIndex].GetIntegerValue())

	decoded, err := chunkFromPayload(chunk.Id, payload)
	require.NoError(t, err)
	assert.Equal(t, chunk.DocumentId, decoded.DocumentId)
	assert.Equal(t, chunk.Source, decoded.Source)
	assert.Equal(t, chunk.Text, decoded.Text)
	assert.Equal(t, chunk.Metadata, decoded.Metadata)
}

func TestUpsert_InvalidChunkSendsNothing(t *testing.T) {
	fake := newFakeClient()
	store, err := newStore(fake)
	require.NoError(t, err)

	err = store.Upsert(context.Background(), "documents", &core.ChunkRecord{Id: "x"})
	assert.ErrorIs(t, err, core.ErrInvalidChunk)
	assert.Empty(t, fake.upserts)
}

func TestDeleteDocument(t *testing.T) {
	fake := newFakeClient()
	store, err := newStore(fake)
	require.NoError(t, err)

	require.NoError(t, store.DeleteDocument(context.Background(), "documents", 16))
	require.Len(t, fake.deletes, 1)
	assert.Equal(t, "documents", fake.deletes[0].CollectionName)
}

func TestSearch(t *testing.T) {
	fake := newFakeClient()
	fake.queryResult = []*qdrant.ScoredPoint{
		{
			Id:    qdrant.NewID("6ba7b810-9dad-11d1-80b4-00c04fd430c8"),
			Score: 0.9,
			Payload: qdrant.NewValueMap(map[string]any{
				fieldDocumentID: "a",
				fieldSource:     "a.pdf",
				fieldIndex:      int64(0),
				fieldText:       "first",
			}),
		},
		{
			Id:      qdrant.NewID("6ba7b811-9dad-11d1-80b4-00c04fd430c8"),
			Score:   0.5,
			Payload: qdrant.NewValueMap(map[string]any{fieldDocumentID: "not-hex"}),
		},
	}
	store, err := newStore(fake)
	require.NoError(t, err)

	results, err := store.Search(context.Background(), "documents", []float32{1, 0}, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, core.ID(10), results[0].Chunk.DocumentId)
	assert.Equal(t, "first", results[0].Chunk.Text)
	assert.InDelta(t, 0.9, results[0].Score, 0.0001)
	assert.Equal(t, uint64(5), fake.queries[0].GetLimit())

	_, err = store.Search(context.Background(), "documents", []float32{1}, 0)
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}

func TestSearch_PropagatesClientError(t *testing.T) {
	fake := newFakeClient()
	fake.err = errors.New("unavailable")
	store, err := newStore(fake)
	require.NoError(t, err)

	_, err = store.Search(context.Background(), "documents", []float32{1}, 1)
	assert.EqualError(t, err, "unavailable")
}
