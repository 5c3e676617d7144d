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

package ingestion

import (
	"errors"
	"fmt"
)

var (
	// ErrDocumentStoreRequired is returned when a document store is not provided.
	ErrDocumentStoreRequired = errors.New("document store required")

	// ErrVectorStoreRequired is returned when a vector store is not provided.
	ErrVectorStoreRequired = errors.New("vector store required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrTransformerRequired is returned when a service is built without a pipeline.
	ErrTransformerRequired = errors.New("transformer required")

	// ErrResolverRequired is returned when a service is built without a resolver.
	ErrResolverRequired = errors.New("source resolver required")

	// ErrTransformation matches every TransformationError.
	ErrTransformation = errors.New("transformation failed")

	// ErrEmptyDocument indicates a document that produced no text to embed.
	ErrEmptyDocument = errors.New("document has no text")

	// ErrInvalidMaxAttempts is returned when maxAttempts is not positive.
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrInvalidChunking is returned for a non-positive chunk size or an
	// overlap that is negative or not smaller than the chunk size.
	ErrInvalidChunking = errors.New("invalid chunk size or overlap")
)

// Pipeline stages, reported in TransformationError.Stage.
const (
	StageHash   = "hash"
	StageLoad   = "load"
	StageSplit  = "split"
	StageEmbed  = "embed"
	StageUpsert = "upsert"
)

// TransformationError reports a failure transforming one document.
type TransformationError struct {
	Stage  string
	Source string
	Err    error
}

func (e *TransformationError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Stage, e.Source, e.Err)
}

func (e *TransformationError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrTransformation.
func (e *TransformationError) Is(target error) bool {
	return target == ErrTransformation
}
