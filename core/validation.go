package core

import (
	"fmt"
	"strings"
)

// ValidateCommand checks that a command carries the fields it needs.
// Returns ErrUnknownCommand for nil or undeclared commands.
func ValidateCommand(cmd Command) error {
	switch c := cmd.(type) {
	case IngestSingleFile:
		if strings.TrimSpace(c.Path) == "" {
			return fmt.Errorf("%w: %s: %w", ErrInvalidCommand, c.Name(), ErrEmptyPath)
		}
	case IngestFolder:
		if strings.TrimSpace(c.FolderPath) == "" {
			return fmt.Errorf("%w: %s: %w", ErrInvalidCommand, c.Name(), ErrEmptyPath)
		}
	case IngestFromLocation:
		if strings.TrimSpace(c.URL) == "" {
			return fmt.Errorf("%w: %s: %w", ErrInvalidCommand, c.Name(), ErrEmptyPath)
		}
	default:
		return ErrUnknownCommand
	}
	return nil
}

// Validate checks that a ChunkRecord is ready to be written to a vector store.
func (c *ChunkRecord) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: chunk is nil", ErrInvalidChunk)
	}
	if c.Id == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidChunk)
	}
	if c.Index < 0 {
		return fmt.Errorf("%w: negative index %d", ErrInvalidChunk, c.Index)
	}
	if len(c.Vector) == 0 {
		return fmt.Errorf("%w: chunk %s has no vector", ErrInvalidChunk, c.Id)
	}
	return nil
}

// Validate checks that a DocumentRecord can be persisted.
func (d *DocumentRecord) Validate() error {
	if d == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidDocumentRecord)
	}
	if d.Namespace == "" {
		return fmt.Errorf("%w: empty namespace", ErrInvalidDocumentRecord)
	}
	if d.Source == "" {
		return fmt.Errorf("%w: empty source", ErrInvalidDocumentRecord)
	}
	if d.Hash == "" {
		return fmt.Errorf("%w: empty hash", ErrInvalidDocumentRecord)
	}
	return nil
}
