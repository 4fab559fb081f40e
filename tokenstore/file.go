package tokenstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/eolscan/eolscan/filesystem"
)

// FileBackend keeps each namespace in <Dir>/<namespace>.json, readable only by the owner.
type FileBackend struct {
	Dir string
}

func (b FileBackend) path(ns Namespace) string {
	return filepath.Join(b.Dir, string(ns)+".json")
}

// Load implements Backend.
func (b FileBackend) Load(ns Namespace) (map[string]string, error) {
	data, err := filesystem.ReadIfExists(b.path(ns))
	if err != nil {
		return nil, err
	}

	values := map[string]string{}
	if len(data) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("parse %s: %w", b.path(ns), err)
	}
	return values, nil
}

// Save implements Backend. An empty map removes the file.
func (b FileBackend) Save(ns Namespace, values map[string]string) error {
	if len(values) == 0 {
		err := filesystem.API().Remove(b.path(ns))
		if err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}

	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return err
	}
	return filesystem.WritePrivate(b.path(ns), data)
}
