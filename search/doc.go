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

// Package search retrieves ingested chunks for a natural-language query.
//
// The Searcher embeds the query, asks the vector store for the nearest
// chunks in a collection, and re-ranks them:
//   - Cosine similarity from the vector store is the base score
//   - Chunks containing every non-stop-word of the query get a verbatim boost
//   - Hits below the configured minimum similarity are dropped
package search
