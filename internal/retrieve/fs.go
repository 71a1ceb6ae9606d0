package retrieve

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// FileSystem is what the engine needs from the filesystem.
type FileSystem interface {
	// MkdirAll creates path and its parents. An existing directory is not an error.
	MkdirAll(path string) error

	// Exists reports whether path exists.
	Exists(path string) (bool, error)

	// WriteAtomic copies r to path. Either the complete content ends up at
	// path or path is left untouched.
	WriteAtomic(path string, r io.Reader) (int64, error)
}

// OSFileSystem is the FileSystem of the host.
type OSFileSystem struct{}

var _ FileSystem = OSFileSystem{}

// MkdirAll implements FileSystem.
func (OSFileSystem) MkdirAll(path string) error {
	return os.MkdirAll(path, 0o750)
}

// Exists implements FileSystem.
func (OSFileSystem) Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, err
	}
}

// WriteAtomic implements FileSystem. The content is written to a temporary
// file in the target directory, synced, and renamed over path.
func (OSFileSystem) WriteAtomic(path string, r io.Reader) (n int64, err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.part")
	if err != nil {
		return 0, fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if n, err = io.Copy(tmp, r); err != nil {
		return n, fmt.Errorf("failed to write body: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return n, fmt.Errorf("failed to sync %s: %w", tmp.Name(), err)
	}
	if err = tmp.Close(); err != nil {
		return n, fmt.Errorf("failed to close %s: %w", tmp.Name(), err)
	}
	if err = os.Chmod(tmp.Name(), 0o644); err != nil {
		return n, fmt.Errorf("failed to set permissions on %s: %w", tmp.Name(), err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return n, fmt.Errorf("failed to move file into place: %w", err)
	}
	return n, nil
}
