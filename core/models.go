package core

import (
	"encoding/binary"
	"encoding/hex"
	"io"
	"os"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// Document IDs are content-based hashes of the document's source location.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// HashFile returns the hex-encoded BLAKE2b-256 digest of the file at path.
// The digest identifies a document's content for change detection.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h, err := blake2b.New(32, nil)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// TextUnit is a normalized unit of text extracted from a document,
// typically one page of a PDF.
type TextUnit struct {
	Text     string
	Metadata map[string]string
}

// ChunkRecord is one embedded slice of a document as written to the vector store.
type ChunkRecord struct {
	Id         string            // Deterministic point ID (UUIDv5)
	DocumentId ID                // Owning document
	Source     string            // Original location of the document (URL or path)
	Index      int               // Position of the chunk within the document
	Text       string            // Chunk contents
	Vector     []float32         // Embedding vector (populated by the embed stage)
	Metadata   map[string]string // Loader metadata (e.g. "page")
}

// DocumentRecord is the checkpoint entry for one ingested document.
// The docstore keys these by namespace and document ID.
type DocumentRecord struct {
	Namespace  string
	DocumentId ID
	Source     string
	Hash       string   // Content digest, see HashFile
	Collection string   // Collection the chunks were written to
	ChunkIds   []string // Point IDs written for this document
	UpdatedAt  time.Time
}

// SearchResult is a chunk returned by a similarity query together with its score.
type SearchResult struct {
	Chunk *ChunkRecord
	Score float32
}

// Result is the outcome of processing one Command.
// Single-file ingestion fills Chunks; folder and location ingestion fill Count.
type Result struct {
	Chunks []*ChunkRecord
	// Count is the number of documents successfully processed. Documents that
	// failed transformation are never included.
	Count int
	// Unchanged is the number of counted documents skipped because the
	// checkpoint already held their current content.
	Unchanged int
}
