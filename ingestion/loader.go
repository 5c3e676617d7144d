package ingestion

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/poiesic/ingestor/core"
	"github.com/tmc/langchaingo/documentloaders"
)

// Loader extracts text units from a local document.
type Loader interface {
	Load(ctx context.Context, path string) ([]core.TextUnit, error)
}

// PDFLoader extracts one text unit per PDF page.
type PDFLoader struct{}

var _ Loader = PDFLoader{}

func (PDFLoader) Load(ctx context.Context, path string) ([]core.TextUnit, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}

	docs, err := documentloaders.NewPDF(f, info.Size()).Load(ctx)
	if err != nil {
		return nil, err
	}

	units := make([]core.TextUnit, 0, len(docs))
	for _, doc := range docs {
		if strings.TrimSpace(doc.PageContent) == "" {
			continue
		}
		metadata := make(map[string]string, len(doc.Metadata))
		for k, v := range doc.Metadata {
			metadata[k] = fmt.Sprint(v)
		}
		units = append(units, core.TextUnit{Text: doc.PageContent, Metadata: metadata})
	}
	return units, nil
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context, path string) ([]core.TextUnit, error)

func (f LoaderFunc) Load(ctx context.Context, path string) ([]core.TextUnit, error) {
	return f(ctx, path)
}
