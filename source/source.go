// Package source lists and fetches documents from the places they live.
//
// Each StorageSource handles one URL scheme. A Resolver picks the source
// for a URL from a fixed, ordered table so callers never inspect schemes
// themselves.
package source

import "context"

// StorageSource is the list/fetch contract shared by all storage backends.
type StorageSource interface {
	// IsMatch reports whether this source handles the URL's scheme.
	IsMatch(url string) bool

	// IsCloudURL reports whether the URL names remote object storage.
	IsCloudURL(url string) bool

	// List returns the URLs of the documents under url. When recursive is
	// false only documents directly under url are returned.
	List(ctx context.Context, url string, recursive bool) ([]string, error)

	// Fetch materializes the document at url to the local path dst and
	// returns the path holding its content.
	Fetch(ctx context.Context, url, dst string) (string, error)
}
