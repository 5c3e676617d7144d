package badger

import (
	"fmt"
	"strings"

	"github.com/poiesic/ingestor/storage"
)

// validateName rejects namespace and collection names that would break key prefixes.
func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", storage.ErrInvalidQuery)
	}
	if strings.Contains(name, ":") {
		return fmt.Errorf("%w: name %q must not contain ':'", storage.ErrInvalidQuery, name)
	}
	return nil
}
