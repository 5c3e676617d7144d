// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package storage provides the storage abstraction layer for the ingestor.
//
// Two capabilities are defined here:
//
//   - DocumentStore: the checkpoint docstore recording which documents have
//     already been ingested, keyed by namespace and document ID
//   - VectorStore: named collections of embedded chunks with upsert,
//     per-document deletion and similarity search
//
// Implementations live in subpackages:
//
//	store, err := badger.NewDocumentStore(backend)   // BadgerDB docstore
//	vectors, err := badger.NewVectorStore(backend)   // embedded vector index
//	vectors, err := qdrant.NewStore(cfg)             // Qdrant collections
//
// # Serialization
//
// Records are encoded with mus-format (see serialization.go) before being
// written to BadgerDB.
//
// # Thread Safety
//
// All implementations must be thread-safe and support concurrent access
// from multiple goroutines.
//
// # Context Support
//
// All methods accept context.Context for cancellation and timeout support.
package storage
