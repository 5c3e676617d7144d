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


// Package qdrant implements storage.VectorStore on a Qdrant server.
package qdrant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"

	"github.com/poiesic/ingestor/core"
	"github.com/poiesic/ingestor/storage"
	"github.com/qdrant/go-client/qdrant"
)

// Payload field names written with every point.
const (
	fieldDocumentID = "document_id"
	fieldSource     = "source"
	fieldIndex      = "index"
	fieldText       = "text"
	fieldMetadata   = "metadata"
)

var ErrClientRequired = errors.New("qdrant client is required")

// client is the subset of *qdrant.Client used by Store.
type client interface {
	CollectionExists(ctx context.Context, collectionName string) (bool, error)
	ListCollections(ctx context.Context) ([]string, error)
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
	GetCollectionInfo(ctx context.Context, collectionName string) (*qdrant.CollectionInfo, error)
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Delete(ctx context.Context, request *qdrant.DeletePoints) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	Close() error
}

// Config holds connection settings for a Qdrant server.
type Config struct {
	Host   string
	Port   int
	APIKey string
	UseTLS bool
}

// Store implements storage.VectorStore against Qdrant's gRPC API.
type Store struct {
	client client
	logger *slog.Logger
}

var _ storage.VectorStore = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// Open connects to a Qdrant server.
func Open(cfg Config, opts ...Option) (*Store, error) {
	c, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to qdrant at %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return newStore(c, opts...)
}

func newStore(c client, opts ...Option) (*Store, error) {
	if c == nil {
		return nil, ErrClientRequired
	}
	s := &Store{
		client: c,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "qdrant")
	return s, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// EnsureCollection creates a cosine-distance collection when it does not exist.
// An existing collection must have the same vector size.
func (s *Store) EnsureCollection(ctx context.Context, collection string, dimension int) error {
	if collection == "" || dimension <= 0 {
		return fmt.Errorf("%w: collection %q dimension %d", storage.ErrInvalidQuery, collection, dimension)
	}
	exists, err := s.client.CollectionExists(ctx, collection)
	if err != nil {
		return err
	}
	if !exists {
		s.logger.Info("creating collection", "collection", collection, "dimension", dimension)
		return s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(dimension),
				Distance: qdrant.Distance_Cosine,
			}),
		})
	}

	info, err := s.client.GetCollectionInfo(ctx, collection)
	if err != nil {
		return err
	}
	size := info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()
	if size != 0 && size != uint64(dimension) {
		return fmt.Errorf("%w: collection %s has dimension %d, got %d",
			storage.ErrDimensionMismatch, collection, size, dimension)
	}
	return nil
}

func (s *Store) CollectionExists(ctx context.Context, collection string) (bool, error) {
	return s.client.CollectionExists(ctx, collection)
}

// ListCollections returns collection names sorted.
func (s *Store) ListCollections(ctx context.Context) ([]string, error) {
	names, err := s.client.ListCollections(ctx)
	if err != nil {
		return nil, err
	}
	slices.Sort(names)
	return names, nil
}

// Upsert writes chunks in a single request and waits for it to be applied.
// Chunk IDs must be UUIDs.
func (s *Store) Upsert(ctx context.Context, collection string, chunks ...*core.ChunkRecord) error {
	if len(chunks) == 0 {
		return nil
	}
	points := make([]*qdrant.PointStruct, 0, len(chunks))
	for _, chunk := range chunks {
		if err := chunk.Validate(); err != nil {
			return err
		}
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewID(chunk.Id),
			Vectors: qdrant.NewVectors(chunk.Vector...),
			Payload: qdrant.NewValueMap(chunkPayload(chunk)),
		})
	}
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	return err
}

// DeleteDocument removes every point whose payload names documentID.
func (s *Store) DeleteDocument(ctx context.Context, collection string, documentID core.ID) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Wait:           qdrant.PtrOf(true),
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch(fieldDocumentID, formatDocumentID(documentID)),
			},
		}),
	})
	return err
}

// Search queries the collection for the nearest points to vector.
func (s *Store) Search(ctx context.Context, collection string, vector []float32, limit int) ([]*core.SearchResult, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", storage.ErrInvalidQuery)
	}
	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, err
	}

	results := make([]*core.SearchResult, 0, len(points))
	for _, point := range points {
		chunk, err := chunkFromPayload(point.GetId().GetUuid(), point.GetPayload())
		if err != nil {
			s.logger.Warn("skipping point with malformed payload", "id", point.GetId().GetUuid(), "err", err)
			continue
		}
		results = append(results, &core.SearchResult{Chunk: chunk, Score: point.GetScore()})
	}
	return results, nil
}

// Document IDs are stored as hex strings since Qdrant integers are signed.
func formatDocumentID(id core.ID) string {
	return strconv.FormatUint(uint64(id), 16)
}

func chunkPayload(chunk *core.ChunkRecord) map[string]any {
	payload := map[string]any{
		fieldDocumentID: formatDocumentID(chunk.DocumentId),
		fieldSource:     chunk.Source,
		fieldIndex:      int64(chunk.Index),
		fieldText:       chunk.Text,
	}
	if len(chunk.Metadata) > 0 {
		metadata := make(map[string]any, len(chunk.Metadata))
		for k, v := range chunk.Metadata {
			metadata[k] = v
		}
		payload[fieldMetadata] = metadata
	}
	return payload
}

func chunkFromPayload(id string, payload map[string]*qdrant.Value) (*core.ChunkRecord, error) {
	docID, err := strconv.ParseUint(payload[fieldDocumentID].GetStringValue(), 16, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: document_id: %w", storage.ErrSerializationFailed, err)
	}
	chunk := &core.ChunkRecord{
		Id:         id,
		DocumentId: core.ID(docID),
		Source:     payload[fieldSource].GetStringValue(),
		Index:      int(payload[fieldIndex].GetIntegerValue()),
		Text:       payload[fieldText].GetStringValue(),
	}
	if fields := payload[fieldMetadata].GetStructValue().GetFields(); len(fields) > 0 {
		chunk.Metadata = make(map[string]string, len(fields))
		for k, v := range fields {
			chunk.Metadata[k] = v.GetStringValue()
		}
	}
	return chunk, nil
}
