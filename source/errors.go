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


package source

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedScheme indicates a URL that no source recognizes.
	ErrUnsupportedScheme = errors.New("unsupported URL scheme")

	// ErrPathNotFound indicates a local listing root that does not exist.
	ErrPathNotFound = errors.New("path not found")

	// ErrSourceNotFound indicates a local document that does not exist at fetch time.
	ErrSourceNotFound = errors.New("source not found")

	// ErrStorageIO matches every StorageIOError.
	ErrStorageIO = errors.New("storage I/O error")

	// ErrInvalidURL indicates a URL that matched a scheme but could not be parsed.
	ErrInvalidURL = errors.New("invalid URL")

	// ErrClientRequired is returned when an S3 source is built without a client.
	ErrClientRequired = errors.New("S3 client is required")
)

// StorageIOError wraps a failure reported by a cloud storage provider.
type StorageIOError struct {
	Op  string // "list" or "fetch"
	URL string
	Err error
}

func (e *StorageIOError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *StorageIOError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrStorageIO.
func (e *StorageIOError) Is(target error) bool {
	return target == ErrStorageIO
}
