package tokenstore

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/eolscan/eolscan/constant"
	"github.com/zalando/go-keyring"
)

// KeyringBackend keeps each namespace as one item of the OS keyring.
// Values are still sealed by the Store, so the item is opaque to other tools reading the keyring.
type KeyringBackend struct {
	Service string
}

func (b KeyringBackend) service() string {
	if b.Service == "" {
		return constant.App
	}
	return b.Service
}

// Load implements Backend.
func (b KeyringBackend) Load(ns Namespace) (map[string]string, error) {
	raw, err := keyring.Get(b.service(), string(ns))
	if errors.Is(err, keyring.ErrNotFound) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}

	values := map[string]string{}
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		return nil, fmt.Errorf("parse keyring item %s: %w", ns, err)
	}
	return values, nil
}

// Save implements Backend. An empty map deletes the item.
func (b KeyringBackend) Save(ns Namespace, values map[string]string) error {
	if len(values) == 0 {
		err := keyring.Delete(b.service(), string(ns))
		if errors.Is(err, keyring.ErrNotFound) {
			return nil
		}
		return err
	}

	data, err := json.Marshal(values)
	if err != nil {
		return err
	}
	return keyring.Set(b.service(), string(ns), string(data))
}

// NewBackend selects a backend by its configuration name.
func NewBackend(kind, dir string) (Backend, error) {
	switch kind {
	case "", "file":
		return FileBackend{Dir: dir}, nil
	case "keyring":
		return KeyringBackend{}, nil
	default:
		return nil, fmt.Errorf("unknown token store %q, expected file or keyring", kind)
	}
}
