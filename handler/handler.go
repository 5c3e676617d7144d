// Package handler dispatches ingestion commands.
package handler

import (
	"context"
	"errors"
	"log/slog"

	"github.com/poiesic/ingestor/core"
)

// ErrProcessorRequired is returned when a handler is built without a processor.
var ErrProcessorRequired = errors.New("processor required")

// Processor executes validated commands. *ingestion.Service implements it.
type Processor interface {
	IngestFile(ctx context.Context, path, sourceURL string) (*core.Result, error)
	IngestFolder(ctx context.Context, folderPath string) (*core.Result, error)
	IngestFromLocation(ctx context.Context, url string, recursive bool) (*core.Result, error)
}

// Handler routes each command variant to the processor operation for it.
type Handler struct {
	processor Processor
	logger    *slog.Logger
}

// New creates a Handler.
func New(processor Processor, logger *slog.Logger) (*Handler, error) {
	if processor == nil {
		return nil, ErrProcessorRequired
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{processor: processor, logger: logger.With("component", "handler")}, nil
}

// Handle validates cmd and forwards it to the processor.
// Values that are not one of the declared commands fail with core.ErrUnknownCommand.
func (h *Handler) Handle(ctx context.Context, cmd core.Command) (*core.Result, error) {
	if err := core.ValidateCommand(cmd); err != nil {
		return nil, err
	}
	h.logger.Debug("handling command", "command", cmd.Name())

	switch c := cmd.(type) {
	case core.IngestSingleFile:
		return h.processor.IngestFile(ctx, c.Path, c.Source)
	case core.IngestFolder:
		return h.processor.IngestFolder(ctx, c.FolderPath)
	case core.IngestFromLocation:
		return h.processor.IngestFromLocation(ctx, c.URL, c.Recursive)
	default:
		return nil, core.ErrUnknownCommand
	}
}
