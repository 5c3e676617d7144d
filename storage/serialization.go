package storage

import (
	"fmt"
	"slices"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/ingestor/core"
)

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	buf := make([]byte, varint.Uint64.Size(uint64(id)))
	varint.Uint64.Marshal(uint64(id), buf)
	return buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	v, _, err := varint.Uint64.Unmarshal(data)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return core.ID(v), nil
}

// MarshalDocumentRecord serializes a DocumentRecord to bytes.
func MarshalDocumentRecord(record *core.DocumentRecord) []byte {
	size := ord.String.Size(record.Namespace) +
		varint.Uint64.Size(uint64(record.DocumentId)) +
		ord.String.Size(record.Source) +
		ord.String.Size(record.Hash) +
		ord.String.Size(record.Collection) +
		stringSliceSize(record.ChunkIds) +
		varint.Int64.Size(record.UpdatedAt.UnixMicro())

	buf := make([]byte, size)
	n := ord.String.Marshal(record.Namespace, buf)
	n += varint.Uint64.Marshal(uint64(record.DocumentId), buf[n:])
	n += ord.String.Marshal(record.Source, buf[n:])
	n += ord.String.Marshal(record.Hash, buf[n:])
	n += ord.String.Marshal(record.Collection, buf[n:])
	n += marshalStringSlice(record.ChunkIds, buf[n:])
	varint.Int64.Marshal(record.UpdatedAt.UnixMicro(), buf[n:])
	return buf
}

// UnmarshalDocumentRecord deserializes a DocumentRecord from bytes.
func UnmarshalDocumentRecord(data []byte) (*core.DocumentRecord, error) {
	r := &reader{data: data}
	record := &core.DocumentRecord{
		Namespace:  r.readString(),
		DocumentId: core.ID(r.readUint64()),
		Source:     r.readString(),
		Hash:       r.readString(),
		Collection: r.readString(),
		ChunkIds:   r.readStringSlice(),
	}
	micros := r.readInt64()
	if r.err != nil {
		return nil, r.err
	}
	record.UpdatedAt = time.UnixMicro(micros).UTC()
	return record, nil
}

// MarshalChunkRecord serializes a ChunkRecord to bytes.
func MarshalChunkRecord(chunk *core.ChunkRecord) []byte {
	size := ord.String.Size(chunk.Id) +
		varint.Uint64.Size(uint64(chunk.DocumentId)) +
		ord.String.Size(chunk.Source) +
		varint.Int.Size(chunk.Index) +
		ord.String.Size(chunk.Text) +
		varint.Int.Size(len(chunk.Vector)) +
		len(chunk.Vector)*raw.Float32.Size(0) +
		stringMapSize(chunk.Metadata)

	buf := make([]byte, size)
	n := ord.String.Marshal(chunk.Id, buf)
	n += varint.Uint64.Marshal(uint64(chunk.DocumentId), buf[n:])
	n += ord.String.Marshal(chunk.Source, buf[n:])
	n += varint.Int.Marshal(chunk.Index, buf[n:])
	n += ord.String.Marshal(chunk.Text, buf[n:])
	n += varint.Int.Marshal(len(chunk.Vector), buf[n:])
	for _, v := range chunk.Vector {
		n += raw.Float32.Marshal(v, buf[n:])
	}
	marshalStringMap(chunk.Metadata, buf[n:])
	return buf
}

// UnmarshalChunkRecord deserializes a ChunkRecord from bytes.
func UnmarshalChunkRecord(data []byte) (*core.ChunkRecord, error) {
	r := &reader{data: data}
	chunk := &core.ChunkRecord{
		Id:         r.readString(),
		DocumentId: core.ID(r.readUint64()),
		Source:     r.readString(),
		Index:      r.readInt(),
		Text:       r.readString(),
	}
	dim := r.readLength()
	if r.err == nil && dim > 0 {
		chunk.Vector = make([]float32, dim)
		for i := range chunk.Vector {
			chunk.Vector[i] = r.readFloat32()
		}
	}
	chunk.Metadata = r.readStringMap()
	if r.err != nil {
		return nil, r.err
	}
	return chunk, nil
}

func stringSliceSize(values []string) int {
	size := varint.Int.Size(len(values))
	for _, v := range values {
		size += ord.String.Size(v)
	}
	return size
}

func marshalStringSlice(values []string, buf []byte) int {
	n := varint.Int.Marshal(len(values), buf)
	for _, v := range values {
		n += ord.String.Marshal(v, buf[n:])
	}
	return n
}

func stringMapSize(m map[string]string) int {
	size := varint.Int.Size(len(m))
	for k, v := range m {
		size += ord.String.Size(k) + ord.String.Size(v)
	}
	return size
}

// marshalStringMap writes keys in sorted order so equal maps encode identically.
func marshalStringMap(m map[string]string, buf []byte) int {
	n := varint.Int.Marshal(len(m), buf)
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		n += ord.String.Marshal(k, buf[n:])
		n += ord.String.Marshal(m[k], buf[n:])
	}
	return n
}

// reader decodes consecutive mus-encoded fields, stopping at the first error.
type reader struct {
	data []byte
	off  int
	err  error
}

func (r *reader) fail(err error) {
	if r.err == nil && err != nil {
		r.err = fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
}

func (r *reader) readString() string {
	if r.err != nil {
		return ""
	}
	v, n, err := ord.String.Unmarshal(r.data[r.off:])
	r.off += n
	r.fail(err)
	return v
}

func (r *reader) readUint64() uint64 {
	if r.err != nil {
		return 0
	}
	v, n, err := varint.Uint64.Unmarshal(r.data[r.off:])
	r.off += n
	r.fail(err)
	return v
}

func (r *reader) readInt64() int64 {
	if r.err != nil {
		return 0
	}
	v, n, err := varint.Int64.Unmarshal(r.data[r.off:])
	r.off += n
	r.fail(err)
	return v
}

func (r *reader) readInt() int {
	if r.err != nil {
		return 0
	}
	v, n, err := varint.Int.Unmarshal(r.data[r.off:])
	r.off += n
	r.fail(err)
	return v
}

func (r *reader) readFloat32() float32 {
	if r.err != nil {
		return 0
	}
	v, n, err := raw.Float32.Unmarshal(r.data[r.off:])
	r.off += n
	r.fail(err)
	return v
}

// length reads a collection length and rejects values that cannot fit in the remaining data.
func (r *reader) readLength() int {
	l := r.readInt()
	if r.err == nil && (l < 0 || l > len(r.data)-r.off) {
		r.fail(fmt.Errorf("invalid length %d", l))
		return 0
	}
	return l
}

func (r *reader) readStringSlice() []string {
	l := r.readLength()
	if r.err != nil || l == 0 {
		return nil
	}
	values := make([]string, l)
	for i := range values {
		values[i] = r.readString()
	}
	return values
}

func (r *reader) readStringMap() map[string]string {
	l := r.readLength()
	if r.err != nil || l == 0 {
		return nil
	}
	m := make(map[string]string, l)
	for range l {
		k := r.readString()
		m[k] = r.readString()
	}
	return m
}

// MarshalInt serializes an int to bytes.
func MarshalInt(v int) []byte {
	buf := make([]byte, varint.Int.Size(v))
	varint.Int.Marshal(v, buf)
	return buf
}

// UnmarshalInt deserializes an int from bytes.
func UnmarshalInt(data []byte) (int, error) {
	v, _, err := varint.Int.Unmarshal(data)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrSerializationFailed, err)
	}
	return v, nil
}
