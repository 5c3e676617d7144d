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

// Command is an immutable ingestion request.
// The set of commands is closed: only the types declared in this file
// implement it, so dispatchers can switch over them exhaustively.
type Command interface {
	// Name identifies the command kind for logging.
	Name() string

	isCommand()
}

// IngestSingleFile ingests one local document.
// Source optionally overrides the document's identity, which otherwise is
// the file:// URL of Path. Staged uploads set it from the content digest so
// the same bytes always map to the same checkpoint record.
type IngestSingleFile struct {
	Path   string
	Source string
}

// IngestFolder ingests every recognized document under a local folder.
type IngestFolder struct {
	FolderPath string
}

// IngestFromLocation ingests every recognized document at a storage URL
// (s3:// or file://).
type IngestFromLocation struct {
	URL       string
	Recursive bool
}

var (
	_ Command = IngestSingleFile{}
	_ Command = IngestFolder{}
	_ Command = IngestFromLocation{}
)

func (IngestSingleFile) Name() string   { return "ingest-single-file" }
func (IngestFolder) Name() string       { return "ingest-folder" }
func (IngestFromLocation) Name() string { return "ingest-from-location" }

func (IngestSingleFile) isCommand()   {}
func (IngestFolder) isCommand()       {}
func (IngestFromLocation) isCommand() {}
