// Package filesystem provides a virtualized abstraction layer for all filesystem operations.
//
// It utilizes the afero library to allow switching between OS-level and in-memory filesystem backends.
package filesystem

import (
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

var backend = afero.Afero{Fs: afero.NewOsFs()}

// API returns the active afero.Afero instance for filesystem interaction.
func API() afero.Afero {
	return backend
}

// SetOsFs restores the filesystem backend to the native operating system implementation.
func SetOsFs() {
	backend = afero.Afero{Fs: afero.NewOsFs()}
}

// SetMemMapFs initializes a volatile in-memory filesystem backend for unit testing.
func SetMemMapFs() {
	backend = afero.Afero{Fs: afero.NewMemMapFs()}
}

// WritePrivate replaces path with data readable only by the current user.
// The content is staged in a sibling temp file and renamed into place so readers never observe a partial write.
func WritePrivate(path string, data []byte) error {
	fs := API()
	if err := fs.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}

	tmp, err := fs.TempFile(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	name := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = fs.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = fs.Remove(name)
		return err
	}
	if err := fs.Chmod(name, 0o600); err != nil {
		_ = fs.Remove(name)
		return err
	}

	return fs.Rename(name, path)
}

// ReadIfExists returns the file content, or nil when the file does not exist.
func ReadIfExists(path string) ([]byte, error) {
	data, err := API().ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	return data, err
}
