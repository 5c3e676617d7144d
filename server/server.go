// Package server exposes ingestion and retrieval over HTTP using gin.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/poiesic/ingestor/core"
)

var (
	ErrHandlerRequired  = errors.New("command handler required")
	ErrListerRequired   = errors.New("collection lister required")
	ErrSearcherRequired = errors.New("searcher required")
)

// DefaultMaxUploadBytes caps the request body of /ingest-pdf.
const DefaultMaxUploadBytes = 64 << 20

// CommandHandler executes ingestion commands. *handler.Handler implements it.
type CommandHandler interface {
	Handle(ctx context.Context, cmd core.Command) (*core.Result, error)
}

type CollectionLister interface {
	ListCollections(ctx context.Context) ([]string, error)
}

type Searcher interface {
	FindSimilar(ctx context.Context, query string, maxHits int) ([]*core.SearchResult, error)
}

type Server struct {
	router         *gin.Engine
	handler        CommandHandler
	collections    CollectionLister
	searcher       Searcher
	uploadDir      string
	maxUploadBytes int64
	maxHits        int
	logger         *slog.Logger
}

type Option func(*Server) error

// WithLogger sets the request and error logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) error {
		s.logger = logger
		return nil
	}
}

// WithUploadDir sets where uploaded files are staged before ingestion.
// Defaults to the system temp directory.
func WithUploadDir(dir string) Option {
	return func(s *Server) error {
		s.uploadDir = dir
		return nil
	}
}

func WithMaxUploadBytes(limit int64) Option {
	return func(s *Server) error {
		s.maxUploadBytes = limit
		return nil
	}
}

// WithMaxHits sets the default k for /search.
func WithMaxHits(k int) Option {
	return func(s *Server) error {
		if k < 1 {
			return errors.New("max hits must be at least 1")
		}
		s.maxHits = k
		return nil
	}
}

// New builds a Server and registers its routes.
func New(handler CommandHandler, collections CollectionLister, searcher Searcher, opts ...Option) (*Server, error) {
	if handler == nil {
		return nil, ErrHandlerRequired
	}
	if collections == nil {
		return nil, ErrListerRequired
	}
	if searcher == nil {
		return nil, ErrSearcherRequired
	}

	s := &Server{
		handler:        handler,
		collections:    collections,
		searcher:       searcher,
		uploadDir:      os.TempDir(),
		maxUploadBytes: DefaultMaxUploadBytes,
		maxHits:        5,
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("component", "server")

	s.router = gin.New()
	s.router.Use(gin.Recovery())
	s.router.Use(s.requestLogger())
	s.registerRoutes()
	return s, nil
}

// Handler returns the underlying http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}
