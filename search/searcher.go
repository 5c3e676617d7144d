package search

import (
	"context"
	"log/slog"
	"slices"
	"strings"

	"github.com/poiesic/ingestor/ai"
	"github.com/poiesic/ingestor/core"
	"github.com/poiesic/ingestor/storage"
)

// Scoring constants.
const (
	DefaultMinScore = 0.3
	verbatimBoost   = 0.3
	// candidateFactor widens the vector query so re-ranking has room to promote verbatim hits.
	candidateFactor = 3
)

// Searcher finds chunks related to a query in one collection.
type Searcher struct {
	vectors    storage.VectorStore
	embedder   ai.Embedder
	collection string
	minScore   float32
	logger     *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithMinScore drops hits whose similarity is below score.
func WithMinScore(score float32) Option {
	return func(s *Searcher) error {
		s.minScore = score
		return nil
	}
}

// NewSearcher creates a searcher over collection.
func NewSearcher(
	vectors storage.VectorStore,
	embedder ai.Embedder,
	collection string,
	opts ...Option,
) (*Searcher, error) {
	if vectors == nil {
		return nil, ErrVectorStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	s := &Searcher{
		vectors:    vectors,
		embedder:   embedder,
		collection: collection,
		minScore:   DefaultMinScore,
		logger:     slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "searcher", "collection", collection)

	return s, nil
}

// FindSimilar searches for chunks similar to the query.
// Returns up to maxHits results, ranked by relevance score.
func (s *Searcher) FindSimilar(ctx context.Context, query string, maxHits int) ([]*core.SearchResult, error) {
	return s.FindSimilarWithMonitor(ctx, query, maxHits, nil)
}

// FindSimilarWithMonitor searches for chunks similar to the query with monitoring.
// The monitor receives callbacks at each stage of the search process.
func (s *Searcher) FindSimilarWithMonitor(ctx context.Context, query string, maxHits int, monitor SearchMonitor) ([]*core.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if maxHits <= 0 {
		return []*core.SearchResult{}, nil
	}
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	monitor.Start(query)

	embedding, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		s.logger.Error("error generating embedding for query", "query", query, "err", err)
		return nil, err
	}

	candidates, err := s.vectors.Search(ctx, s.collection, embedding, maxHits*candidateFactor)
	if err != nil {
		s.logger.Error("error querying for similar chunks", "err", err)
		return nil, err
	}
	monitor.AfterSemanticSearch(candidates)

	queryTerms := terms(query)
	results := make([]*core.SearchResult, 0, len(candidates))
	for _, candidate := range candidates {
		if candidate.Score < s.minScore {
			monitor.BelowThreshold(candidate.Chunk, candidate.Score)
			continue
		}
		score := candidate.Score
		if verbatimMatch(candidate.Chunk.Text, queryTerms) {
			score += verbatimBoost
			monitor.VerbatimHit(candidate.Chunk)
		}
		results = append(results, &core.SearchResult{Chunk: candidate.Chunk, Score: score})
	}

	// Sort by score descending
	slices.SortStableFunc(results, func(a, b *core.SearchResult) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})
	if len(results) > maxHits {
		results = results[:maxHits]
	}
	monitor.Finish(results)

	s.logger.Debug("search complete", "query", query, "candidates", len(candidates), "results", len(results))
	return results, nil
}
