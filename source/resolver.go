package source

import "fmt"

// Resolver selects the StorageSource for a URL.
type Resolver struct {
	sources []StorageSource
}

// NewResolver creates a resolver that checks sources in the given order.
func NewResolver(sources ...StorageSource) *Resolver {
	return &Resolver{sources: sources}
}

// Resolve returns the first source whose scheme predicate matches url.
// Returns ErrUnsupportedScheme when none does.
func (r *Resolver) Resolve(url string) (StorageSource, error) {
	for _, src := range r.sources {
		if src.IsMatch(url) {
			return src, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, url)
}
