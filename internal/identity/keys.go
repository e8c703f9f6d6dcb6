package identity

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const sessionKeyBits = 2048

// KeyManager creates or loads the registry's RSA session-signing key from a
// directory on disk. The key never leaves the process; only JWTs signed with
// it do.
type KeyManager struct {
	dir string
	key *rsa.PrivateKey
}

// NewKeyManager creates a KeyManager rooted at dir.
func NewKeyManager(dir string) *KeyManager {
	return &KeyManager{dir: dir}
}

// LoadOrCreate loads the signing key from disk if present; generates and
// persists a new one otherwise.
func (m *KeyManager) LoadOrCreate() error {
	path := filepath.Join(m.dir, "session.key")

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		block, _ := pem.Decode(data)
		if block == nil || block.Type != "RSA PRIVATE KEY" {
			return fmt.Errorf("no RSA private key in %s", path)
		}
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return fmt.Errorf("parse session key: %w", err)
		}
		m.key = key
		return nil

	case errors.Is(err, os.ErrNotExist):
		key, err := rsa.GenerateKey(rand.Reader, sessionKeyBits)
		if err != nil {
			return fmt.Errorf("generate session key: %w", err)
		}
		if err := os.MkdirAll(m.dir, 0o700); err != nil {
			return fmt.Errorf("create key dir: %w", err)
		}
		keyPEM := pem.EncodeToMemory(&pem.Block{
			Type:  "RSA PRIVATE KEY",
			Bytes: x509.MarshalPKCS1PrivateKey(key),
		})
		if err := os.WriteFile(path, keyPEM, 0o600); err != nil {
			return fmt.Errorf("write session key: %w", err)
		}
		m.key = key
		return nil

	default:
		return fmt.Errorf("read session key: %w", err)
	}
}

// Key returns the loaded private key.
func (m *KeyManager) Key() *rsa.PrivateKey { return m.key }
