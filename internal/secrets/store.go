// Package secrets stores playlist-source credentials encrypted at rest.
// Values are sealed with AES-GCM under a key derived from a machine secret
// via scrypt, so passwords never appear in the settings file or database.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/scrypt"
)

const (
	saltSize = 16
	keySize  = 32
)

var ErrNotFound = errors.New("secret not found")

// Store is a file-backed encrypted key/value store.
type Store struct {
	mu       sync.Mutex
	path     string
	key      []byte
	salt     []byte
	values   map[string][]byte // key -> nonce||ciphertext
	modified bool
}

type storeFile struct {
	Salt   []byte            `json:"salt"`
	Values map[string][]byte `json:"values"`
}

// Open loads the store at path, creating it on first use. The passphrase is
// stretched with scrypt; changing it orphans previously stored values.
func Open(path, passphrase string) (*Store, error) {
	s := &Store{
		path:   path,
		values: make(map[string][]byte),
	}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		s.salt = make([]byte, saltSize)
		if _, err := io.ReadFull(rand.Reader, s.salt); err != nil {
			return nil, fmt.Errorf("generate salt: %w", err)
		}
		s.modified = true
	case err != nil:
		return nil, fmt.Errorf("read secrets file: %w", err)
	default:
		var f storeFile
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, fmt.Errorf("parse secrets file: %w", err)
		}
		s.salt = f.Salt
		if f.Values != nil {
			s.values = f.Values
		}
	}

	s.key, err = scrypt.Key([]byte(passphrase), s.salt, 1<<15, 8, 1, keySize)
	if err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}

	if s.modified {
		if err := s.save(); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Set seals value under name and persists the store.
func (s *Store) Set(name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	gcm, err := s.aead()
	if err != nil {
		return err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}
	s.values[name] = gcm.Seal(nonce, nonce, []byte(value), nil)
	return s.save()
}

// Get opens the value stored under name.
func (s *Store) Get(name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sealed, ok := s.values[name]
	if !ok {
		return "", ErrNotFound
	}
	gcm, err := s.aead()
	if err != nil {
		return "", err
	}
	if len(sealed) < gcm.NonceSize() {
		return "", fmt.Errorf("secret %s: sealed value too short", name)
	}
	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("open secret %s: %w", name, err)
	}
	return string(plain), nil
}

// Delete removes the value stored under name and persists the store.
func (s *Store) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.values[name]; !ok {
		return nil
	}
	delete(s.values, name)
	return s.save()
}

func (s *Store) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

// save writes to a temp file and renames it into place.
func (s *Store) save() error {
	data, err := json.MarshalIndent(storeFile{Salt: s.salt, Values: s.values}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode secrets file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create secrets dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write secrets file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace secrets file: %w", err)
	}
	s.modified = false
	return nil
}

// SourcePasswordKey names the secret that holds a playlist source's password.
func SourcePasswordKey(sourceID int64) string {
	return fmt.Sprintf("source.%d.password", sourceID)
}
