package badger

import (
	"encoding/binary"
	"strings"

	"github.com/poiesic/ingestor/core"
)

// Key prefixes for different data types
const (
	documentRecordPrefix = "docrec"
	collectionPrefix     = "vcoll"
	chunkPrefix          = "vchunk"
)

// makeDocumentPrefix generates the prefix shared by all records in a namespace.
// Format: prefix:namespace:
func makeDocumentPrefix(namespace string) []byte {
	return []byte(documentRecordPrefix + ":" + namespace + ":")
}

// makeDocumentKey generates a key for a document record.
// Format: prefix:namespace:id (id in BigEndian so iteration follows ID order)
func makeDocumentKey(namespace string, id core.ID) []byte {
	prefix := makeDocumentPrefix(namespace)
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(id))
	return buf
}

// makeCollectionKey generates the registry key for a collection.
func makeCollectionKey(collection string) []byte {
	return []byte(collectionPrefix + ":" + collection)
}

// collectionFromKey extracts the collection name from a registry key.
func collectionFromKey(key []byte) string {
	return strings.TrimPrefix(string(key), collectionPrefix+":")
}

// makeCollectionChunkPrefix generates the prefix shared by all chunks in a collection.
func makeCollectionChunkPrefix(collection string) []byte {
	return []byte(chunkPrefix + ":" + collection + ":")
}

// makeDocumentChunkPrefix generates the prefix shared by a document's chunks.
// Format: prefix:collection:documentID
func makeDocumentChunkPrefix(collection string, documentID core.ID) []byte {
	prefix := makeCollectionChunkPrefix(collection)
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(documentID))
	return buf
}

// makeChunkKey generates a key for a chunk.
// Format: prefix:collection:documentID:chunkID
func makeChunkKey(collection string, documentID core.ID, chunkID string) []byte {
	prefix := makeDocumentChunkPrefix(collection, documentID)
	buf := make([]byte, 0, len(prefix)+1+len(chunkID))
	buf = append(buf, prefix...)
	buf = append(buf, ':')
	return append(buf, chunkID...)
}
