package search

import "github.com/poiesic/ingestor/core"

// SearchMonitor provides hooks to observe the search process.
// Implement this interface to track intermediate steps and results during search.
type SearchMonitor interface {
	Start(query string)
	AfterSemanticSearch(candidates []*core.SearchResult)
	VerbatimHit(chunk *core.ChunkRecord)
	BelowThreshold(chunk *core.ChunkRecord, score float32)
	Finish(results []*core.SearchResult)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                                {}
func (n *noopMonitor) AfterSemanticSearch(_ []*core.SearchResult)    {}
func (n *noopMonitor) VerbatimHit(_ *core.ChunkRecord)               {}
func (n *noopMonitor) BelowThreshold(_ *core.ChunkRecord, _ float32) {}
func (n *noopMonitor) Finish(_ []*core.SearchResult)                 {}
