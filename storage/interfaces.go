package storage

import (
	"context"

	"github.com/poiesic/ingestor/core"
)

// DocumentStore persists checkpoint records describing which documents
// have already been split, embedded and indexed.
// Records are isolated by namespace.
// Implementations must be thread-safe and support concurrent access.
type DocumentStore interface {
	// GetDocument retrieves the record for a document in a namespace.
	// Returns ErrNotFound if no record exists.
	GetDocument(ctx context.Context, namespace string, id core.ID) (*core.DocumentRecord, error)

	// PutDocuments stores or replaces records in a single transaction.
	// Sets UpdatedAt on each record.
	PutDocuments(ctx context.Context, records ...*core.DocumentRecord) error

	// DeleteDocument removes a record.
	// Returns ErrNotFound if the record doesn't exist.
	DeleteDocument(ctx context.Context, namespace string, id core.ID) error

	// ListDocuments returns all records in a namespace, ordered by document ID.
	ListDocuments(ctx context.Context, namespace string) ([]*core.DocumentRecord, error)

	// Close releases resources held by the store.
	Close() error
}

// VectorStore holds embedded chunks grouped into named collections.
// Implementations must be thread-safe and support concurrent access.
type VectorStore interface {
	// EnsureCollection creates the collection if it does not exist.
	// dimension is the length of the vectors the collection will hold.
	EnsureCollection(ctx context.Context, collection string, dimension int) error

	// CollectionExists reports whether the collection exists.
	CollectionExists(ctx context.Context, collection string) (bool, error)

	// ListCollections returns the names of all collections, sorted.
	ListCollections(ctx context.Context) ([]string, error)

	// Upsert writes chunks into a collection, replacing chunks with the same ID.
	// Either all chunks are written or none are.
	Upsert(ctx context.Context, collection string, chunks ...*core.ChunkRecord) error

	// DeleteDocument removes every chunk belonging to a document.
	// Deleting a document with no chunks is not an error.
	DeleteDocument(ctx context.Context, collection string, documentID core.ID) error

	// Search returns up to limit chunks most similar to vector, highest score first.
	Search(ctx context.Context, collection string, vector []float32, limit int) ([]*core.SearchResult, error)

	// Close releases resources held by the store.
	Close() error
}
