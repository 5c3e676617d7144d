package ingestion

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/ingestor/ai/mock"
	"github.com/poiesic/ingestor/core"
	"github.com/poiesic/ingestor/storage/badger"
	"github.com/stretchr/testify/require"
)

// logCapture collects log output for counting entries by level.
type logCapture struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (l *logCapture) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buf.Write(p)
}

func (l *logCapture) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.buf.String()
}

func (l *logCapture) count(level string) int {
	return strings.Count(l.String(), "level="+level)
}

func (l *logCapture) logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(l, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// textLoader treats every file as plain text. Files containing "corrupt" fail to load.
var textLoader = LoaderFunc(func(ctx context.Context, path string) ([]core.TextUnit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if strings.Contains(string(data), "corrupt") {
		return nil, errors.New("malformed document")
	}
	return []core.TextUnit{{Text: string(data), Metadata: map[string]string{"page": "1"}}}, nil
})

type testEnv struct {
	docs     *badger.DocumentStore
	vectors  *badger.VectorStore
	embedder *mock.MockEmbedder
	logs     *logCapture
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	docs, vectors, backend, err := badger.NewMemoryStores()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	return &testEnv{
		docs:     docs,
		vectors:  vectors,
		embedder: mock.NewMockEmbedder(),
		logs:     &logCapture{},
	}
}

func (e *testEnv) pipeline(t *testing.T, opts ...Option) *Pipeline {
	t.Helper()
	splitter, err := NewSplitter(SplitCharacters, 40, 10)
	require.NoError(t, err)

	defaults := []Option{
		WithLoader(textLoader),
		WithSplitter(splitter),
		WithLogger(e.logs.logger()),
		WithRetry(2, time.Millisecond),
		WithPoolSize(2),
		WithEmbedBatchSize(2),
	}
	p, err := NewPipeline(e.docs, e.vectors, e.embedder, append(defaults, opts...)...)
	require.NoError(t, err)
	t.Cleanup(p.Release)
	return p
}

func (e *testEnv) chunkCount(t *testing.T) int {
	t.Helper()
	count, err := e.vectors.CountChunks(context.Background(), DefaultCollection)
	require.NoError(t, err)
	return count
}

const sampleText = "The quick brown fox jumps over the lazy dog. " +
	"Pack my box with five dozen liquor jugs. " +
	"How vexingly quick daft zebras jump."

func writeDoc(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}
