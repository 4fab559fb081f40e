// Package tokenstore persists credentials encrypted at rest, one logical store per namespace.
package tokenstore

import (
	"fmt"

	"github.com/eolscan/eolscan/constant"
	"github.com/eolscan/eolscan/log"
	"github.com/samber/mo"
)

// Namespace separates independently encrypted groups of credentials.
type Namespace string

const (
	// Session holds the interactive login credential pair.
	Session Namespace = "auth-token"
	// CI holds the long-lived CI refresh token.
	CI Namespace = "ci-token"
)

// Cipher seals values before they reach a Backend. *secret.Sealer implements it.
type Cipher interface {
	Encrypt(plaintext, salt string) (string, error)
	Decrypt(blob, salt string) (string, error)
}

// Backend loads and saves the encrypted key/value map of a namespace.
// Load of a namespace that was never written returns an empty map.
type Backend interface {
	Load(ns Namespace) (map[string]string, error)
	Save(ns Namespace, values map[string]string) error
}

// Store is a handle on one namespace. It is opened once per process and reused.
//
// Every write re-reads the namespace before saving; there is no inter-process locking,
// so concurrent invocations writing the same namespace race and the last writer wins.
type Store struct {
	ns      Namespace
	salt    string
	backend Backend
	cipher  Cipher
}

// Open returns a Store for ns.
func Open(ns Namespace, backend Backend, cipher Cipher) *Store {
	return &Store{
		ns:      ns,
		salt:    constant.App + "/" + string(ns),
		backend: backend,
		cipher:  cipher,
	}
}

// Namespace reports which namespace the store serves.
func (s *Store) Namespace() Namespace {
	return s.ns
}

// Get returns the decrypted value for key.
// A missing key and a value that no longer decrypts are both reported as absent.
func (s *Store) Get(key string) mo.Option[string] {
	values, err := s.backend.Load(s.ns)
	if err != nil {
		log.WithFields(log.Fields{"namespace": s.ns, "key": key}).Debugf("token store unreadable: %v", err)
		return mo.None[string]()
	}

	blob, ok := values[key]
	if !ok {
		return mo.None[string]()
	}

	plain, err := s.cipher.Decrypt(blob, s.salt)
	if err != nil {
		log.WithFields(log.Fields{"namespace": s.ns, "key": key}).Debugf("ignoring undecryptable value: %v", err)
		return mo.None[string]()
	}

	return mo.Some(plain)
}

// Set encrypts and stores a single value.
func (s *Store) Set(key, value string) error {
	return s.SetAll(map[string]string{key: value})
}

// SetAll encrypts and stores several values in one read-modify-write.
func (s *Store) SetAll(entries map[string]string) error {
	values, err := s.load()
	if err != nil {
		return err
	}

	for k, v := range entries {
		blob, err := s.cipher.Encrypt(v, s.salt)
		if err != nil {
			return fmt.Errorf("encrypt %s/%s: %w", s.ns, k, err)
		}
		values[k] = blob
	}

	return s.save(values)
}

// Delete removes keys. Removing an absent key is not an error.
func (s *Store) Delete(keys ...string) error {
	values, err := s.load()
	if err != nil {
		return err
	}

	for _, k := range keys {
		delete(values, k)
	}

	return s.save(values)
}

// Clear removes every value of the namespace.
func (s *Store) Clear() error {
	return s.save(map[string]string{})
}

// load tolerates an unreadable namespace on write paths: it is replaced rather than blocking a fresh login.
func (s *Store) load() (map[string]string, error) {
	values, err := s.backend.Load(s.ns)
	if err != nil {
		log.WithFields(log.Fields{"namespace": s.ns}).Warnf("discarding unreadable token store: %v", err)
		return map[string]string{}, nil
	}
	if values == nil {
		values = map[string]string{}
	}
	return values, nil
}

func (s *Store) save(values map[string]string) error {
	if err := s.backend.Save(s.ns, values); err != nil {
		return fmt.Errorf("save %s: %w", s.ns, err)
	}
	return nil
}
