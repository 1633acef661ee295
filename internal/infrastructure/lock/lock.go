// Package lock keeps two sessions from erasing or reading each other's
// coverage data. Lock files live in the user cache directory, never next to
// the data itself.
package lock

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
)

// Lock is an exclusive lock held on a data file.
type Lock struct {
	file *os.File
}

// Path returns the lock file guarding target. Equal targets, however they
// are spelled, map to the same lock file.
func Path(target string) (string, error) {
	abs, err := filepath.Abs(target)
	if err != nil {
		return "", errors.Wrapf(err, "resolve %s", target)
	}
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	sum := sha256.Sum256([]byte(abs))
	return filepath.Join(base, "testcov", "locks", hex.EncodeToString(sum[:8])+".lock"), nil
}

// Acquire blocks until the exclusive lock on target is held.
func Acquire(target string) (*Lock, error) {
	path, err := Path(target)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, errors.Wrap(err, "create lock directory")
	}
	// #nosec G304 -- path is derived from a hash under the cache directory
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, errors.Wrap(err, "open lock file")
	}
	if err := lockFile(file); err != nil {
		_ = file.Close()
		return nil, errors.Wrapf(err, "lock %s", path)
	}
	return &Lock{file: file}, nil
}

// Release unlocks and closes the lock file. It is safe to call more than once.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	unlockErr := unlockFile(l.file)
	closeErr := l.file.Close()
	l.file = nil
	if unlockErr != nil {
		return unlockErr
	}
	return closeErr
}
