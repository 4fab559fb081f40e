// Package secret seals short strings with a key bound to the local machine and user.
//
// It defends credentials against casual exposure (synced dotfiles, copied token files).
// It does not defend against someone who can run code as the same user on the same host.
package secret

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"os/user"
	"unicode/utf8"

	"golang.org/x/crypto/chacha20poly1305"
)

const (
	nonceSize = chacha20poly1305.NonceSize
	tagSize   = chacha20poly1305.Overhead
)

// ErrDecryption is matched by every *DecryptionError.
var ErrDecryption = errors.New("decryption failed")

// DecryptionError reports a blob that cannot be opened: corrupted, truncated, tampered,
// or produced on another host, by another user, or under another salt.
type DecryptionError struct {
	Reason string
	Err    error
}

func (e *DecryptionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("decryption failed: %s: %v", e.Reason, e.Err)
	}
	return "decryption failed: " + e.Reason
}

func (e *DecryptionError) Unwrap() error { return e.Err }

func (e *DecryptionError) Is(target error) bool { return target == ErrDecryption }

// Sealer derives per-salt keys from a host and user identity.
type Sealer struct {
	host string
	user string
}

// NewSealer binds a Sealer to the current hostname and local username.
func NewSealer() (*Sealer, error) {
	host, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("resolve hostname: %w", err)
	}

	name := os.Getenv("USER")
	if u, err := user.Current(); err == nil && u.Username != "" {
		name = u.Username
	}
	if name == "" {
		return nil, errors.New("resolve local username: not available")
	}

	return NewSealerFor(host, name), nil
}

// NewSealerFor binds a Sealer to an explicit identity.
func NewSealerFor(host, user string) *Sealer {
	return &Sealer{host: host, user: user}
}

func (s *Sealer) key(salt string) []byte {
	sum := sha256.Sum256([]byte(s.host + ":" + s.user + ":" + salt))
	return sum[:]
}

// Encrypt seals plaintext and returns a URL-safe blob laid out as nonce || tag || ciphertext.
// Every call draws a fresh nonce, so equal inputs produce different blobs.
func (s *Sealer) Encrypt(plaintext, salt string) (string, error) {
	aead, err := chacha20poly1305.New(s.key(salt))
	if err != nil {
		return "", err
	}

	nonce := make([]byte, nonceSize, nonceSize+tagSize+len(plaintext))
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	// Seal appends ciphertext || tag; the stored layout puts the tag first.
	sealed := aead.Seal(nil, nonce, []byte(plaintext), nil)
	ciphertext, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]

	out := append(nonce, tag...)
	out = append(out, ciphertext...)
	return base64.RawURLEncoding.EncodeToString(out), nil
}

// Decrypt opens a blob produced by Encrypt with the same identity and salt.
func (s *Sealer) Decrypt(blob, salt string) (string, error) {
	raw, err := base64.RawURLEncoding.DecodeString(blob)
	if err != nil {
		return "", &DecryptionError{Reason: "malformed encoding", Err: err}
	}
	if len(raw) < nonceSize+tagSize {
		return "", &DecryptionError{Reason: "payload too short"}
	}

	nonce := raw[:nonceSize]
	tag := raw[nonceSize : nonceSize+tagSize]
	ciphertext := raw[nonceSize+tagSize:]

	aead, err := chacha20poly1305.New(s.key(salt))
	if err != nil {
		return "", err
	}

	sealed := make([]byte, 0, len(ciphertext)+tagSize)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plain, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", &DecryptionError{Reason: "authentication failed", Err: err}
	}
	if !utf8.Valid(plain) {
		return "", &DecryptionError{Reason: "plaintext is not valid UTF-8"}
	}

	return string(plain), nil
}
