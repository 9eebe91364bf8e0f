// Package keyvault seals private key material for storage at rest.
// Plaintext keys exist only in memory; everything persisted goes through
// Seal, and everything read back goes through Open.
package keyvault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// KeySize is the AES-256 key length in bytes.
const KeySize = 32

// ErrUnsealable is returned when sealed data cannot be decrypted, whether
// because the vault key is wrong or the ciphertext was truncated or
// tampered with. The two cases are indistinguishable by design of the AEAD.
var ErrUnsealable = errors.New("sealed data cannot be opened with this vault key")

// Vault encrypts and decrypts byte blobs with AES-256-GCM under a single
// symmetric key. It is safe for concurrent use.
type Vault struct {
	aead cipher.AEAD
}

// New builds a Vault from a raw 32-byte key.
func New(key []byte) (*Vault, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("vault key must be %d bytes, got %d", KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("initializing cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("initializing GCM: %w", err)
	}
	return &Vault{aead: aead}, nil
}

// NewFromHex builds a Vault from a 64-character hex key string.
func NewFromHex(hexKey string) (*Vault, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("decoding vault key: %w", err)
	}
	return New(key)
}

// Derive stretches a passphrase and salt into a vault key with
// HKDF-SHA256. The same passphrase and salt always yield the same key, so
// a vault can be reopened across restarts without storing the key itself.
func Derive(passphrase, salt string) ([]byte, error) {
	if passphrase == "" {
		return nil, errors.New("vault passphrase is empty")
	}
	r := hkdf.New(sha256.New, []byte(passphrase), []byte(salt), []byte("certvault key sealing v1"))
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("deriving vault key: %w", err)
	}
	return key, nil
}

// Seal encrypts plaintext and returns nonce||ciphertext. Each call uses a
// fresh random nonce, so sealing the same plaintext twice yields different
// blobs.
func (v *Vault) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}
	return v.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts a blob produced by Seal. Any failure, including a
// truncated blob, reports ErrUnsealable.
func (v *Vault) Open(sealed []byte) ([]byte, error) {
	ns := v.aead.NonceSize()
	if len(sealed) < ns+v.aead.Overhead() {
		return nil, ErrUnsealable
	}
	plaintext, err := v.aead.Open(nil, sealed[:ns], sealed[ns:], nil)
	if err != nil {
		return nil, ErrUnsealable
	}
	return plaintext, nil
}

// Zeroize overwrites a plaintext buffer once it is no longer needed.
func Zeroize(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
