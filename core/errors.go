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


package core

import "errors"

// Domain validation errors
var (
	// ErrUnknownCommand indicates a value that is not one of the declared commands.
	ErrUnknownCommand = errors.New("unknown command")

	// ErrInvalidCommand indicates a Command failed validation.
	ErrInvalidCommand = errors.New("invalid command")

	// ErrEmptyPath indicates a path or URL field is empty.
	ErrEmptyPath = errors.New("path cannot be empty")

	// ErrInvalidChunk indicates a ChunkRecord failed validation.
	ErrInvalidChunk = errors.New("invalid chunk")

	// ErrInvalidDocumentRecord indicates a DocumentRecord failed validation.
	ErrInvalidDocumentRecord = errors.New("invalid document record")
)
