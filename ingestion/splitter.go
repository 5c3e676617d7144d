package ingestion

import (
	"fmt"

	"github.com/tmc/langchaingo/textsplitter"
)

// Default chunking parameters.
const (
	DefaultChunkSize    = 512
	DefaultChunkOverlap = 128
)

// Splitter modes.
const (
	SplitCharacters = "characters"
	SplitTokens     = "tokens"
)

// NewSplitter builds a text splitter producing overlapping chunks.
// Mode "characters" measures chunks in runes with recursive separators;
// mode "tokens" measures them in tiktoken tokens.
func NewSplitter(mode string, chunkSize, chunkOverlap int) (textsplitter.TextSplitter, error) {
	if chunkSize <= 0 || chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("%w: size %d overlap %d", ErrInvalidChunking, chunkSize, chunkOverlap)
	}
	switch mode {
	case "", SplitCharacters:
		return textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
		), nil
	case SplitTokens:
		return textsplitter.NewTokenSplitter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
		), nil
	default:
		return nil, fmt.Errorf("unknown splitter mode %q", mode)
	}
}
