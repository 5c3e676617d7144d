package badger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/ingestor/core"
	"github.com/poiesic/ingestor/storage"
)

// VectorStore implements storage.VectorStore on BadgerDB.
// Similarity search is a full scan of the collection, which suits local
// development and small corpora.
type VectorStore struct {
	backend *Backend
}

var _ storage.VectorStore = (*VectorStore)(nil)

// NewVectorStore creates a new VectorStore.
func NewVectorStore(backend *Backend) *VectorStore {
	return &VectorStore{backend: backend}
}

// Close is a no-op; the backend is owned by the caller.
func (s *VectorStore) Close() error {
	return nil
}

// EnsureCollection registers a collection with its vector dimension.
// An existing collection must have the same dimension.
func (s *VectorStore) EnsureCollection(ctx context.Context, collection string, dimension int) error {
	if err := validateName(collection); err != nil {
		return err
	}
	if dimension <= 0 {
		return fmt.Errorf("%w: dimension must be positive", storage.ErrInvalidQuery)
	}
	return s.backend.WithTx(func(tx *badger.Txn) error {
		existing, err := readDimension(tx, collection)
		switch {
		case err == nil:
			if existing != dimension {
				return fmt.Errorf("%w: collection %s has dimension %d, got %d",
					storage.ErrDimensionMismatch, collection, existing, dimension)
			}
			return nil
		case !errors.Is(err, storage.ErrCollectionNotFound):
			return err
		}
		if err := tx.Set(makeCollectionKey(collection), storage.MarshalInt(dimension)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// CollectionExists reports whether the collection has been registered.
func (s *VectorStore) CollectionExists(ctx context.Context, collection string) (bool, error) {
	var exists bool
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		_, err := readDimension(tx, collection)
		if errors.Is(err, storage.ErrCollectionNotFound) {
			return nil
		}
		exists = err == nil
		return err
	}, false)
	return exists, err
}

// ListCollections returns the registered collection names in sorted order.
func (s *VectorStore) ListCollections(ctx context.Context) ([]string, error) {
	var names []string
	err := s.backend.scanPrefix(ctx, []byte(collectionPrefix+":"), func(key, _ []byte) error {
		names = append(names, collectionFromKey(key))
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.Sort(names)
	return names, nil
}

// Upsert writes chunks in a single transaction.
func (s *VectorStore) Upsert(ctx context.Context, collection string, chunks ...*core.ChunkRecord) error {
	for _, chunk := range chunks {
		if err := chunk.Validate(); err != nil {
			return err
		}
	}
	return s.backend.WithTx(func(tx *badger.Txn) error {
		dimension, err := readDimension(tx, collection)
		if err != nil {
			return err
		}
		for _, chunk := range chunks {
			if len(chunk.Vector) != dimension {
				return fmt.Errorf("%w: chunk %s has %d dimensions, collection %s has %d",
					storage.ErrDimensionMismatch, chunk.Id, len(chunk.Vector), collection, dimension)
			}
			key := makeChunkKey(collection, chunk.DocumentId, chunk.Id)
			if err := tx.Set(key, storage.MarshalChunkRecord(chunk)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// DeleteDocument removes every chunk of a document from the collection.
func (s *VectorStore) DeleteDocument(ctx context.Context, collection string, documentID core.ID) error {
	return s.backend.deletePrefix(makeDocumentChunkPrefix(collection, documentID))
}

// Search finds the chunks most similar to vector by cosine similarity.
func (s *VectorStore) Search(ctx context.Context, collection string, vector []float32, limit int) ([]*core.SearchResult, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", storage.ErrInvalidQuery)
	}
	exists, err := s.CollectionExists(ctx, collection)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", storage.ErrCollectionNotFound, collection)
	}

	var results []*core.SearchResult
	err = s.backend.scanPrefix(ctx, makeCollectionChunkPrefix(collection), func(_, val []byte) error {
		chunk, err := storage.UnmarshalChunkRecord(val)
		if err != nil {
			return err
		}
		if len(chunk.Vector) == 0 {
			return nil
		}
		results = append(results, &core.SearchResult{
			Chunk: chunk,
			Score: cosineSimilarity(vector, chunk.Vector),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Sort by similarity descending
	slices.SortStableFunc(results, func(a, b *core.SearchResult) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return 0
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// CountChunks returns the number of chunks stored in a collection.
func (s *VectorStore) CountChunks(ctx context.Context, collection string) (int, error) {
	count := 0
	err := s.backend.scanPrefix(ctx, makeCollectionChunkPrefix(collection), func(_, _ []byte) error {
		count++
		return nil
	})
	return count, err
}

func readDimension(tx *badger.Txn, collection string) (int, error) {
	item, err := tx.Get(makeCollectionKey(collection))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return 0, fmt.Errorf("%w: %s", storage.ErrCollectionNotFound, collection)
		}
		return 0, err
	}
	var dimension int
	err = item.Value(func(val []byte) error {
		var unmarshalErr error
		dimension, unmarshalErr = storage.UnmarshalInt(val)
		return unmarshalErr
	})
	return dimension, err
}

// cosineSimilarity calculates the cosine of the angle between two vectors.
func cosineSimilarity(a, b []float32) float32 {
	var dot, normA, normB float64
	minLen := min(len(a), len(b))
	for i := 0; i < minLen; i++ {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
