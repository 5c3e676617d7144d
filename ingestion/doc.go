// Package ingestion turns documents into embedded, indexed chunks.
//
// A Pipeline transforms one local document at a time:
//
//	hash -> checkpoint lookup -> load -> split -> embed -> upsert -> checkpoint
//
// Documents whose content hash matches the checkpoint are skipped, which
// makes re-ingesting a folder or bucket incremental. A document either
// reaches the vector store with all of its chunks or contributes nothing.
//
// A Service executes core.Command values. It resolves locations to a
// source.StorageSource, fetches each candidate into a per-call scratch
// directory, runs the pipeline, and isolates per-document failures so a
// batch reports how many documents succeeded instead of aborting.
//
// Embedding batches of a single document run concurrently on an ants
// worker pool; documents themselves are processed one at a time.
package ingestion
