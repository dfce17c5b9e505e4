// Package filestore holds the domain.FileStore implementations that live
// outside the document database.
package filestore

import (
	"fmt"
	"path"

	"github.com/msomdec/snapgram/internal/domain"
)

// ValidateKey rejects keys that could escape the store root or address a
// directory. Keys are flat file ids.
func ValidateKey(key string) error {
	if key == "" || key == "." || key == ".." {
		return fmt.Errorf("%w: storage key %q", domain.ErrInvalidInput, key)
	}
	if path.Base(key) != key {
		return fmt.Errorf("%w: storage key %q must not be a path", domain.ErrInvalidInput, key)
	}
	return nil
}
