package ingestion

import (
	"context"
	"errors"
	"sync"

	"github.com/poiesic/ingestor/core"
	"github.com/poiesic/ingestor/storage"
)

// Checkpoint tracks which documents of a namespace are already indexed.
//
// Load reads the namespace snapshot from the document store, Stage records
// updates in memory and Persist writes every staged record in one
// transaction. Persist calls are serialized.
type Checkpoint struct {
	store     storage.DocumentStore
	namespace string

	mu      sync.Mutex
	loaded  bool
	records map[core.ID]*core.DocumentRecord
	dirty   map[core.ID]*core.DocumentRecord

	persistMu sync.Mutex
}

// NewCheckpoint creates a checkpoint over store for namespace.
func NewCheckpoint(store storage.DocumentStore, namespace string) *Checkpoint {
	return &Checkpoint{
		store:     store,
		namespace: namespace,
		records:   map[core.ID]*core.DocumentRecord{},
		dirty:     map[core.ID]*core.DocumentRecord{},
	}
}

func (c *Checkpoint) Namespace() string {
	return c.namespace
}

// Load replaces the in-memory snapshot with the stored records.
// Staged records that have not been persisted are kept.
func (c *Checkpoint) Load(ctx context.Context) error {
	records, err := c.store.ListDocuments(ctx, c.namespace)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = make(map[core.ID]*core.DocumentRecord, len(records)+len(c.dirty))
	for _, record := range records {
		c.records[record.DocumentId] = record
	}
	for id, record := range c.dirty {
		c.records[id] = record
	}
	c.loaded = true
	return nil
}

// Lookup returns the record for a document.
// Before the first Load it reads through to the document store.
func (c *Checkpoint) Lookup(ctx context.Context, id core.ID) (*core.DocumentRecord, bool, error) {
	c.mu.Lock()
	record, ok := c.records[id]
	loaded := c.loaded
	c.mu.Unlock()
	if ok || loaded {
		return record, ok, nil
	}

	record, err := c.store.GetDocument(ctx, c.namespace, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return record, true, nil
}

// Stage records an update to be written by the next Persist.
func (c *Checkpoint) Stage(record *core.DocumentRecord) {
	record.Namespace = c.namespace
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records[record.DocumentId] = record
	c.dirty[record.DocumentId] = record
}

// Pending returns the number of staged records not yet persisted.
func (c *Checkpoint) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.dirty)
}

// Persist writes all staged records in a single transaction.
// On failure the records stay staged for the next attempt.
func (c *Checkpoint) Persist(ctx context.Context) error {
	c.persistMu.Lock()
	defer c.persistMu.Unlock()

	c.mu.Lock()
	batch := make([]*core.DocumentRecord, 0, len(c.dirty))
	for _, record := range c.dirty {
		batch = append(batch, record)
	}
	c.mu.Unlock()

	if len(batch) == 0 {
		return nil
	}
	if err := c.store.PutDocuments(ctx, batch...); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, record := range batch {
		// A newer Stage for the same document stays dirty
		if c.dirty[record.DocumentId] == record {
			delete(c.dirty, record.DocumentId)
		}
	}
	return nil
}
