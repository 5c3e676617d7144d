package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/poiesic/ingestor/core"
	"github.com/poiesic/ingestor/source"
)

// DefaultExtension is the document extension ingested by default.
const DefaultExtension = ".pdf"

// Transformer runs documents through a transformation pipeline.
// *Pipeline is the production implementation.
type Transformer interface {
	Run(ctx context.Context, doc Document) (*Outcome, error)
	LoadCheckpoint(ctx context.Context) error
	PersistCheckpoint(ctx context.Context) error
}

var _ Transformer = (*Pipeline)(nil)

// Progress observes a batch of documents as it is processed.
type Progress interface {
	Start(total int)
	Done(failed bool)
	Finish()
}

// Service executes ingestion commands.
type Service struct {
	transformer Transformer
	resolver    *source.Resolver
	local       *source.LocalSource
	scratchRoot string
	extension   string
	progress    Progress
	logger      *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithServiceLogger sets the logger.
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithScratchRoot sets the directory under which per-call scratch
// directories are created. Default is os.TempDir().
func WithScratchRoot(dir string) ServiceOption {
	return func(s *Service) {
		s.scratchRoot = dir
	}
}

// WithProgress reports per-document progress of folder and location batches.
func WithProgress(p Progress) ServiceOption {
	return func(s *Service) {
		s.progress = p
	}
}

// WithExtension sets the recognized document extension, matched case-insensitively.
func WithExtension(ext string) ServiceOption {
	return func(s *Service) {
		if ext == "" {
			return
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		s.extension = strings.ToLower(ext)
	}
}

// NewService creates a service that runs documents through transformer and
// resolves locations with resolver.
func NewService(transformer Transformer, resolver *source.Resolver, opts ...ServiceOption) (*Service, error) {
	if transformer == nil {
		return nil, ErrTransformerRequired
	}
	if resolver == nil {
		return nil, ErrResolverRequired
	}
	s := &Service{
		transformer: transformer,
		resolver:    resolver,
		local:       source.NewLocalSource(),
		extension:   DefaultExtension,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "ingestion")
	return s, nil
}

// Process executes a command.
func (s *Service) Process(ctx context.Context, cmd core.Command) (*core.Result, error) {
	switch c := cmd.(type) {
	case core.IngestSingleFile:
		return s.IngestFile(ctx, c.Path, c.Source)
	case core.IngestFolder:
		return s.IngestFolder(ctx, c.FolderPath)
	case core.IngestFromLocation:
		return s.IngestFromLocation(ctx, c.URL, c.Recursive)
	default:
		return nil, core.ErrUnknownCommand
	}
}

// IngestFile transforms a single local document and returns its chunks.
// sourceURL names the document for checkpointing; empty means its file:// URL.
// An unchanged document yields no chunks and Unchanged == 1.
func (s *Service) IngestFile(ctx context.Context, filePath, sourceURL string) (result *core.Result, err error) {
	abs, err := filepath.Abs(filePath)
	if err != nil {
		return nil, err
	}
	if info, statErr := os.Stat(abs); statErr != nil || info.IsDir() {
		return nil, &fs.PathError{Op: "ingest", Path: abs, Err: source.ErrSourceNotFound}
	}
	if err := s.transformer.LoadCheckpoint(ctx); err != nil {
		return nil, err
	}
	defer func() {
		err = errors.Join(err, s.transformer.PersistCheckpoint(ctx))
		if err != nil {
			result = nil
		}
	}()

	if sourceURL == "" {
		sourceURL = source.FileURL(abs)
	}
	outcome, err := s.transformer.Run(ctx, Document{Path: abs, Source: sourceURL})
	if err != nil {
		return nil, err
	}
	result = &core.Result{Chunks: outcome.Chunks, Count: 1}
	if outcome.Unchanged {
		result.Unchanged = 1
	}
	return result, nil
}

// IngestFolder transforms every recognized document under a local folder,
// walking it recursively. Other files are skipped with a warning.
func (s *Service) IngestFolder(ctx context.Context, folderPath string) (*core.Result, error) {
	abs, err := filepath.Abs(folderPath)
	if err != nil {
		return nil, err
	}
	urls, err := s.local.List(ctx, source.FileURL(abs), true)
	if err != nil {
		return nil, err
	}

	var matched []string
	for _, url := range urls {
		if s.matches(url) {
			matched = append(matched, url)
			continue
		}
		s.logger.Warn("skipping unrecognized file", "path", source.LocalPath(url), "extension", s.extension)
	}

	result, err := s.ingestBatch(ctx, matched, func(ctx context.Context, _ int, url string) (Document, func(), error) {
		p := source.LocalPath(url)
		return Document{Path: p, Source: url}, func() {}, nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("ingested folder", "folder", abs, "documents", result.Count, "unchanged", result.Unchanged)
	return result, nil
}

// IngestFromLocation transforms every recognized document at a storage URL.
// Each document is fetched into a scratch directory owned by this call and
// removed once processed.
func (s *Service) IngestFromLocation(ctx context.Context, url string, recursive bool) (*core.Result, error) {
	src, err := s.resolver.Resolve(url)
	if err != nil {
		return nil, err
	}
	urls, err := src.List(ctx, url, recursive)
	if err != nil {
		return nil, err
	}

	var matched []string
	for _, candidate := range urls {
		if s.matches(candidate) {
			matched = append(matched, candidate)
		} else {
			s.logger.Debug("skipping unrecognized object", "url", candidate)
		}
	}
	if len(matched) == 0 {
		s.logger.Warn("no documents found", "url", url, "extension", s.extension, "recursive", recursive)
		return &core.Result{}, nil
	}

	scratch, err := os.MkdirTemp(s.scratchRoot, "ingest-*")
	if err != nil {
		return nil, fmt.Errorf("creating scratch directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			s.logger.Warn("failed to remove scratch directory", "dir", scratch, "err", err)
		}
	}()

	result, err := s.ingestBatch(ctx, matched, func(ctx context.Context, i int, url string) (Document, func(), error) {
		dst := filepath.Join(scratch, fmt.Sprintf("%05d-%s", i, path.Base(url)))
		cleanup := func() {
			if err := os.Remove(dst); err != nil && !errors.Is(err, os.ErrNotExist) {
				s.logger.Warn("failed to remove scratch file", "path", dst, "err", err)
			}
		}
		local, err := src.Fetch(ctx, url, dst)
		if err != nil {
			return Document{}, cleanup, err
		}
		return Document{Path: local, Source: url}, cleanup, nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("ingested location", "url", url, "documents", result.Count, "unchanged", result.Unchanged)
	return result, nil
}

// prepareFunc materializes the i-th document of a batch. The returned
// cleanup func runs after the document is processed, whatever the outcome.
type prepareFunc func(ctx context.Context, i int, url string) (Document, func(), error)

// ingestBatch processes documents one at a time in order. A document that
// fails is logged and not counted; the batch continues.
func (s *Service) ingestBatch(ctx context.Context, urls []string, prepare prepareFunc) (result *core.Result, err error) {
	result = &core.Result{}
	if len(urls) == 0 {
		return result, nil
	}
	if err := s.transformer.LoadCheckpoint(ctx); err != nil {
		return nil, err
	}
	defer func() {
		if persistErr := s.transformer.PersistCheckpoint(ctx); persistErr != nil {
			result, err = nil, persistErr
		}
	}()

	if s.progress != nil {
		s.progress.Start(len(urls))
		defer s.progress.Finish()
	}

	for i, url := range urls {
		outcome, err := s.ingestOne(ctx, i, url, prepare)
		if s.progress != nil {
			s.progress.Done(err != nil)
		}
		if err != nil {
			s.logger.Error("failed to ingest document", "url", url, "err", err)
			continue
		}
		result.Count++
		if outcome.Unchanged {
			result.Unchanged++
		}
	}
	return result, nil
}

func (s *Service) ingestOne(ctx context.Context, i int, url string, prepare prepareFunc) (*Outcome, error) {
	doc, cleanup, err := prepare(ctx, i, url)
	if cleanup != nil {
		defer cleanup()
	}
	if err != nil {
		return nil, err
	}
	return s.transformer.Run(ctx, doc)
}

func (s *Service) matches(url string) bool {
	return strings.HasSuffix(strings.ToLower(url), s.extension)
}
