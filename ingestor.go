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


// Package ingestor wires storage, embedding, sources and the ingestion
// service into a single handle.
package ingestor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/ingestor/ai"
	"github.com/poiesic/ingestor/ai/ollama"
	"github.com/poiesic/ingestor/ai/openai"
	"github.com/poiesic/ingestor/config"
	"github.com/poiesic/ingestor/core"
	"github.com/poiesic/ingestor/handler"
	"github.com/poiesic/ingestor/ingestion"
	"github.com/poiesic/ingestor/search"
	"github.com/poiesic/ingestor/server"
	"github.com/poiesic/ingestor/source"
	"github.com/poiesic/ingestor/storage"
	"github.com/poiesic/ingestor/storage/badger"
	"github.com/poiesic/ingestor/storage/qdrant"
)

type Ingestor struct {
	cfg      *config.Config
	backend  *badger.Backend
	docs     storage.DocumentStore
	vectors  storage.VectorStore
	embedder ai.Embedder
	pipeline *ingestion.Pipeline
	service  *ingestion.Service
	handler  *handler.Handler
	searcher *search.Searcher
	logger   *slog.Logger
}

// Option configures Open.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	embedder ai.Embedder
	vectors  storage.VectorStore
	loader   ingestion.Loader
	progress ingestion.Progress
	s3       source.StorageSource
	inMemory bool
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithEmbedder replaces the embedder built from the configuration.
func WithEmbedder(embedder ai.Embedder) Option {
	return func(o *options) { o.embedder = embedder }
}

// WithVectorStore replaces the configured vector store backend.
// Close closes it along with the rest of the ingestor.
func WithVectorStore(vectors storage.VectorStore) Option {
	return func(o *options) { o.vectors = vectors }
}

// WithLoader replaces the PDF loader.
func WithLoader(loader ingestion.Loader) Option {
	return func(o *options) { o.loader = loader }
}

// WithProgress reports batch progress, typically to a terminal.
func WithProgress(p ingestion.Progress) Option {
	return func(o *options) { o.progress = p }
}

// WithS3Source replaces the S3 source built from the default AWS chain.
func WithS3Source(src source.StorageSource) Option {
	return func(o *options) { o.s3 = src }
}

// WithInMemory keeps the checkpoint store in memory instead of at
// checkpoint.path.
func WithInMemory() Option {
	return func(o *options) { o.inMemory = true }
}

// Open builds every component named by cfg. The caller must Close the result.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (*Ingestor, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	backend, err := badger.OpenBackend(cfg.Checkpoint.Path, o.inMemory)
	if err != nil {
		return nil, err
	}
	ing := &Ingestor{
		cfg:     cfg,
		backend: backend,
		docs:    badger.NewDocumentStore(backend),
		logger:  o.logger,
	}

	if err := ing.build(ctx, o); err != nil {
		ing.Close()
		return nil, err
	}
	return ing, nil
}

func (ing *Ingestor) build(ctx context.Context, o *options) error {
	cfg := ing.cfg

	ing.vectors = o.vectors
	if ing.vectors == nil {
		vectors, err := openVectorStore(cfg, ing.backend, o.logger)
		if err != nil {
			return err
		}
		ing.vectors = vectors
	}

	ing.embedder = o.embedder
	if ing.embedder == nil {
		embedder, err := newEmbedder(cfg.AIConfig())
		if err != nil {
			return fmt.Errorf("creating embedder: %w", err)
		}
		ing.embedder = embedder
	}

	splitter, err := ingestion.NewSplitter(cfg.Splitter.Mode, cfg.Splitter.ChunkSize, cfg.Splitter.ChunkOverlap)
	if err != nil {
		return err
	}
	pipelineOpts := []ingestion.Option{
		ingestion.WithLogger(o.logger),
		ingestion.WithSplitter(splitter),
		ingestion.WithCollection(cfg.Collection),
		ingestion.WithNamespace(cfg.Checkpoint.Namespace),
		ingestion.WithEmbedBatchSize(cfg.Embedding.BatchSize),
		ingestion.WithRetry(cfg.Embedding.MaxAttempts, cfg.Embedding.RetryDelay),
	}
	if o.loader != nil {
		pipelineOpts = append(pipelineOpts, ingestion.WithLoader(o.loader))
	}
	if cfg.Embedding.PoolSize > 0 {
		pipelineOpts = append(pipelineOpts, ingestion.WithPoolSize(cfg.Embedding.PoolSize))
	}
	ing.pipeline, err = ingestion.NewPipeline(ing.docs, ing.vectors, ing.embedder, pipelineOpts...)
	if err != nil {
		return err
	}

	s3src := o.s3
	if s3src == nil {
		s3src, err = source.NewDefaultS3Source(ctx, cfg.S3.Region, source.WithLogger(o.logger))
		if err != nil {
			return err
		}
	}
	resolver := source.NewResolver(s3src, source.NewLocalSource())

	serviceOpts := []ingestion.ServiceOption{ingestion.WithServiceLogger(o.logger)}
	if cfg.Ingest.Extension != "" {
		serviceOpts = append(serviceOpts, ingestion.WithExtension(cfg.Ingest.Extension))
	}
	if o.progress != nil {
		serviceOpts = append(serviceOpts, ingestion.WithProgress(o.progress))
	}
	if cfg.Ingest.ScratchDir != "" {
		serviceOpts = append(serviceOpts, ingestion.WithScratchRoot(cfg.Ingest.ScratchDir))
	}
	ing.service, err = ingestion.NewService(ing.pipeline, resolver, serviceOpts...)
	if err != nil {
		return err
	}

	ing.handler, err = handler.New(ing.service, o.logger)
	if err != nil {
		return err
	}

	ing.searcher, err = search.NewSearcher(ing.vectors, ing.embedder, cfg.Collection,
		search.WithLogger(o.logger),
		search.WithMinScore(cfg.Search.MinScore))
	return err
}

func openVectorStore(cfg *config.Config, backend *badger.Backend, logger *slog.Logger) (storage.VectorStore, error) {
	switch cfg.VectorStore.Backend {
	case config.BackendQdrant:
		q := cfg.VectorStore.Qdrant
		return qdrant.Open(qdrant.Config{
			Host:   q.Host,
			Port:   q.Port,
			APIKey: q.APIKey,
			UseTLS: q.UseTLS,
		}, qdrant.WithLogger(logger))
	default:
		return badger.NewVectorStore(backend), nil
	}
}

func newEmbedder(cfg *ai.Config) (ai.Embedder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Provider == ai.ProviderOllama {
		return ollama.NewEmbedder(cfg)
	}
	return openai.NewEmbedder(cfg)
}

// Handle executes an ingestion command.
func (ing *Ingestor) Handle(ctx context.Context, cmd core.Command) (*core.Result, error) {
	return ing.handler.Handle(ctx, cmd)
}

func (ing *Ingestor) Searcher() *search.Searcher {
	return ing.searcher
}

func (ing *Ingestor) VectorStore() storage.VectorStore {
	return ing.vectors
}

func (ing *Ingestor) DocumentStore() storage.DocumentStore {
	return ing.docs
}

// NewServer builds an HTTP front end over this ingestor.
func (ing *Ingestor) NewServer(opts ...server.Option) (*server.Server, error) {
	base := []server.Option{
		server.WithLogger(ing.logger),
		server.WithMaxHits(ing.cfg.Search.MaxHits),
		server.WithMaxUploadBytes(ing.cfg.Server.MaxUploadBytes),
	}
	if ing.cfg.Ingest.ScratchDir != "" {
		base = append(base, server.WithUploadDir(ing.cfg.Ingest.ScratchDir))
	}
	return server.New(ing.handler, ing.vectors, ing.searcher, append(base, opts...)...)
}

// Close releases the worker pool and closes the stores.
func (ing *Ingestor) Close() error {
	if ing.pipeline != nil {
		ing.pipeline.Release()
	}
	var errs []error
	if ing.vectors != nil {
		if err := ing.vectors.Close(); err != nil {
			ing.logger.Error("error closing vector store", "err", err)
			errs = append(errs, err)
		}
	}
	if err := ing.backend.Close(); err != nil {
		ing.logger.Error("error closing backend storage", "err", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
