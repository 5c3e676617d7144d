// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package badger

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/ingestor/core"
	"github.com/poiesic/ingestor/storage"
)

// DocumentStore implements storage.DocumentStore for BadgerDB.
type DocumentStore struct {
	backend *Backend
}

var _ storage.DocumentStore = (*DocumentStore)(nil)

// NewDocumentStore creates a new DocumentStore.
func NewDocumentStore(backend *Backend) *DocumentStore {
	return &DocumentStore{
		backend: backend,
	}
}

// Close is a no-op; the backend is owned by the caller.
func (s *DocumentStore) Close() error {
	return nil
}

// PutDocuments persists document records in a single transaction.
func (s *DocumentStore) PutDocuments(ctx context.Context, records ...*core.DocumentRecord) error {
	for _, record := range records {
		if err := record.Validate(); err != nil {
			return err
		}
		if err := validateName(record.Namespace); err != nil {
			return err
		}
	}
	return s.backend.WithTx(func(tx *badger.Txn) error {
		now := time.Now().UTC()
		for _, record := range records {
			record.UpdatedAt = now
			key := makeDocumentKey(record.Namespace, record.DocumentId)
			if err := tx.Set(key, storage.MarshalDocumentRecord(record)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// GetDocument retrieves the record for a document.
// Returns storage.ErrNotFound if no record exists.
func (s *DocumentStore) GetDocument(ctx context.Context, namespace string, id core.ID) (*core.DocumentRecord, error) {
	var record *core.DocumentRecord
	err := s.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeDocumentKey(namespace, id))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}

		return item.Value(func(val []byte) error {
			var unmarshalErr error
			record, unmarshalErr = storage.UnmarshalDocumentRecord(val)
			return unmarshalErr
		})
	}, false)

	return record, err
}

// DeleteDocument removes a document record.
// Returns storage.ErrNotFound if the record doesn't exist.
func (s *DocumentStore) DeleteDocument(ctx context.Context, namespace string, id core.ID) error {
	return s.backend.WithTx(func(tx *badger.Txn) error {
		key := makeDocumentKey(namespace, id)
		if _, err := tx.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		if err := tx.Delete(key); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// ListDocuments returns every record in a namespace, ordered by document ID.
func (s *DocumentStore) ListDocuments(ctx context.Context, namespace string) ([]*core.DocumentRecord, error) {
	var records []*core.DocumentRecord
	err := s.backend.scanPrefix(ctx, makeDocumentPrefix(namespace), func(_, val []byte) error {
		record, err := storage.UnmarshalDocumentRecord(val)
		if err != nil {
			return err
		}
		records = append(records, record)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}
