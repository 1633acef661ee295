// Package pathutil cleans user-supplied file paths before they are opened.
package pathutil

import (
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
)

var (
	ErrEmptyPath = errors.New("path is empty")
	ErrNullBytes = errors.New("path contains null bytes")
)

// ValidatePath cleans path and resolves symlinks when the target exists.
// A path that does not exist yet is returned cleaned, so new files can be
// created at it.
func ValidatePath(path string) (string, error) {
	if path == "" {
		return "", ErrEmptyPath
	}
	if strings.ContainsRune(path, 0) {
		return "", ErrNullBytes
	}
	cleaned := filepath.Clean(path)
	real, err := filepath.EvalSymlinks(cleaned)
	if err != nil {
		return cleaned, nil
	}
	return real, nil
}
