package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/ingestor/ai"
	"github.com/poiesic/ingestor/core"
	"github.com/poiesic/ingestor/storage"
	"github.com/tmc/langchaingo/textsplitter"
)

// Default pipeline settings.
const (
	DefaultCollection     = "documents"
	DefaultNamespace      = "default"
	DefaultEmbedBatchSize = 32
	DefaultMaxAttempts    = 3
	DefaultBaseDelay      = 500 * time.Millisecond
)

// Document is a local file to transform.
type Document struct {
	// Path is where the content can be read.
	Path string
	// Source is the document's original location. Its identity in the
	// checkpoint derives from Source, so a document fetched to a different
	// scratch path each run is still recognized. Defaults to Path.
	Source string
}

// Outcome describes the result of transforming one document.
type Outcome struct {
	DocumentID core.ID
	Chunks     []*core.ChunkRecord
	// Unchanged is set when the checkpoint already held this content.
	Unchanged bool
}

// Pipeline transforms documents into chunks in a vector store collection.
type Pipeline struct {
	vectors        storage.VectorStore
	embedder       ai.Embedder
	checkpoint     *Checkpoint
	loader         Loader
	splitter       textsplitter.TextSplitter
	pool           *ants.Pool
	collection     string
	namespace      string
	embedBatchSize int
	maxAttempts    int
	baseDelay      time.Duration
	logger         *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for concurrent embedding batches.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		if p.pool != nil {
			p.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithLoader sets the document loader. Default is PDFLoader.
func WithLoader(loader Loader) Option {
	return func(p *Pipeline) error {
		if loader != nil {
			p.loader = loader
		}
		return nil
	}
}

// WithSplitter sets the text splitter.
// Default is a recursive character splitter with 512-rune chunks and 128-rune overlap.
func WithSplitter(splitter textsplitter.TextSplitter) Option {
	return func(p *Pipeline) error {
		if splitter != nil {
			p.splitter = splitter
		}
		return nil
	}
}

// WithCollection sets the vector store collection chunks are written to.
func WithCollection(collection string) Option {
	return func(p *Pipeline) error {
		if collection != "" {
			p.collection = collection
		}
		return nil
	}
}

// WithNamespace sets the checkpoint namespace.
func WithNamespace(namespace string) Option {
	return func(p *Pipeline) error {
		if namespace != "" {
			p.namespace = namespace
		}
		return nil
	}
}

// WithEmbedBatchSize sets how many chunks are embedded per request.
func WithEmbedBatchSize(size int) Option {
	return func(p *Pipeline) error {
		if size >= 1 {
			p.embedBatchSize = size
		}
		return nil
	}
}

// WithRetry configures retries of failed embedding requests.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(p *Pipeline) error {
		if maxAttempts <= 0 {
			return ErrInvalidMaxAttempts
		}
		p.maxAttempts = maxAttempts
		p.baseDelay = baseDelay
		return nil
	}
}

// NewPipeline creates a new transformation pipeline.
func NewPipeline(
	docs storage.DocumentStore,
	vectors storage.VectorStore,
	embedder ai.Embedder,
	opts ...Option,
) (*Pipeline, error) {
	if docs == nil {
		return nil, ErrDocumentStoreRequired
	}
	if vectors == nil {
		return nil, ErrVectorStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	splitter, err := NewSplitter(SplitCharacters, DefaultChunkSize, DefaultChunkOverlap)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		vectors:        vectors,
		embedder:       embedder,
		loader:         PDFLoader{},
		splitter:       splitter,
		collection:     DefaultCollection,
		namespace:      DefaultNamespace,
		embedBatchSize: DefaultEmbedBatchSize,
		maxAttempts:    DefaultMaxAttempts,
		baseDelay:      DefaultBaseDelay,
		logger:         slog.Default(),
	}

	if err := WithPoolSize(runtime.NumCPU() / 2)(p); err != nil {
		return nil, err
	}

	// Apply options (may override defaults)
	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	p.logger = p.logger.With("component", "pipeline", "collection", p.collection)
	p.checkpoint = NewCheckpoint(docs, p.namespace)
	return p, nil
}

func (p *Pipeline) Collection() string { return p.collection }
func (p *Pipeline) Namespace() string  { return p.namespace }

// LoadCheckpoint loads the checkpoint namespace from the document store.
func (p *Pipeline) LoadCheckpoint(ctx context.Context) error {
	return p.checkpoint.Load(ctx)
}

// PersistCheckpoint writes the records staged by Run since the last persist.
func (p *Pipeline) PersistCheckpoint(ctx context.Context) error {
	pending := p.checkpoint.Pending()
	if err := p.checkpoint.Persist(ctx); err != nil {
		return fmt.Errorf("persisting checkpoint %s: %w", p.namespace, err)
	}
	if pending > 0 {
		p.logger.Debug("checkpoint persisted", "namespace", p.namespace, "records", pending)
	}
	return nil
}

// Release releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}

// Run transforms one document. Failures are returned as *TransformationError.
func (p *Pipeline) Run(ctx context.Context, doc Document) (*Outcome, error) {
	source := doc.Source
	if source == "" {
		source = doc.Path
	}
	fail := func(stage string, err error) (*Outcome, error) {
		return nil, &TransformationError{Stage: stage, Source: source, Err: err}
	}

	hash, err := core.HashFile(doc.Path)
	if err != nil {
		return fail(StageHash, err)
	}
	id := core.IDFromContent(source)

	previous, found, err := p.checkpoint.Lookup(ctx, id)
	if err != nil {
		return fail(StageHash, err)
	}
	if found && previous.Hash == hash && previous.Collection == p.collection {
		p.logger.Debug("document unchanged, skipping", "source", source)
		return &Outcome{DocumentID: id, Unchanged: true}, nil
	}

	units, err := p.loader.Load(ctx, doc.Path)
	if err != nil {
		return fail(StageLoad, err)
	}

	chunks, err := p.split(id, source, units)
	if err != nil {
		return fail(StageSplit, err)
	}

	if err := p.embed(ctx, chunks); err != nil {
		return fail(StageEmbed, err)
	}

	if err := p.upsert(ctx, id, previous, chunks); err != nil {
		return fail(StageUpsert, err)
	}

	chunkIDs := make([]string, len(chunks))
	for i, chunk := range chunks {
		chunkIDs[i] = chunk.Id
	}
	p.checkpoint.Stage(&core.DocumentRecord{
		DocumentId: id,
		Source:     source,
		Hash:       hash,
		Collection: p.collection,
		ChunkIds:   chunkIDs,
	})

	p.logger.Info("document ingested", "source", source, "chunks", len(chunks), "embedder", p.embedder.Name())
	return &Outcome{DocumentID: id, Chunks: chunks}, nil
}

func (p *Pipeline) split(id core.ID, source string, units []core.TextUnit) ([]*core.ChunkRecord, error) {
	var chunks []*core.ChunkRecord
	for _, unit := range units {
		texts, err := p.splitter.SplitText(unit.Text)
		if err != nil {
			return nil, err
		}
		for _, text := range texts {
			if strings.TrimSpace(text) == "" {
				continue
			}
			index := len(chunks)
			metadata := maps.Clone(unit.Metadata)
			if metadata == nil {
				metadata = map[string]string{}
			}
			metadata["source"] = source
			chunks = append(chunks, &core.ChunkRecord{
				Id:         p.chunkID(id, index),
				DocumentId: id,
				Source:     source,
				Index:      index,
				Text:       text,
				Metadata:   metadata,
			})
		}
	}
	if len(chunks) == 0 {
		return nil, ErrEmptyDocument
	}
	return chunks, nil
}

// chunkID derives a stable point ID, so replays overwrite rather than duplicate.
func (p *Pipeline) chunkID(id core.ID, index int) string {
	name := p.namespace + "/" + strconv.FormatUint(uint64(id), 16) + "/" + strconv.Itoa(index)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(name)).String()
}

// embed fills chunk vectors, sending batches to the worker pool.
func (p *Pipeline) embed(ctx context.Context, chunks []*core.ChunkRecord) error {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	setErr := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if firstErr == nil {
			firstErr = err
		}
	}

	for start := 0; start < len(chunks); start += p.embedBatchSize {
		batch := chunks[start:min(start+p.embedBatchSize, len(chunks))]
		wg.Add(1)
		err := p.pool.Submit(func() {
			defer wg.Done()
			if err := p.embedBatch(ctx, batch); err != nil {
				setErr(err)
			}
		})
		if err != nil {
			wg.Done()
			setErr(err)
			break
		}
	}
	wg.Wait()
	if firstErr != nil {
		return firstErr
	}

	dimension := len(chunks[0].Vector)
	for _, chunk := range chunks {
		if len(chunk.Vector) == 0 || len(chunk.Vector) != dimension {
			return fmt.Errorf("chunk %d: inconsistent embedding dimension %d, expected %d",
				chunk.Index, len(chunk.Vector), dimension)
		}
	}
	return nil
}

func (p *Pipeline) embedBatch(ctx context.Context, batch []*core.ChunkRecord) error {
	texts := make([]string, len(batch))
	for i, chunk := range batch {
		texts[i] = chunk.Text
	}

	var vectors [][]float32
	err := retry(ctx, p.logger, p.maxAttempts, p.baseDelay, func(int) error {
		var embedErr error
		vectors, embedErr = p.embedder.EmbedTexts(ctx, texts)
		if embedErr == nil && len(vectors) != len(texts) {
			embedErr = fmt.Errorf("embedding result mismatch. expected %d, received %d", len(texts), len(vectors))
		}
		return embedErr
	})
	if err != nil {
		return err
	}

	for i, chunk := range batch {
		chunk.Vector = vectors[i]
	}
	return nil
}

// upsert replaces the document's chunks in the collection.
// If the write fails, the document's chunks are removed so none are left behind.
func (p *Pipeline) upsert(ctx context.Context, id core.ID, previous *core.DocumentRecord, chunks []*core.ChunkRecord) error {
	if err := p.vectors.EnsureCollection(ctx, p.collection, len(chunks[0].Vector)); err != nil {
		return err
	}

	if previous != nil {
		stale := previous.Collection
		if stale == "" {
			stale = p.collection
		}
		if err := p.vectors.DeleteDocument(ctx, stale, id); err != nil && !errors.Is(err, storage.ErrCollectionNotFound) {
			return fmt.Errorf("removing previous chunks: %w", err)
		}
	}

	if err := p.vectors.Upsert(ctx, p.collection, chunks...); err != nil {
		if cleanupErr := p.vectors.DeleteDocument(ctx, p.collection, id); cleanupErr != nil {
			p.logger.Warn("failed to remove partial chunks", "document", id, "err", cleanupErr)
		}
		return err
	}
	return nil
}
