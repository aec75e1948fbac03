// Package cryptoutils provides the symmetric encryption primitives used by
// the credential vault: AES-256-GCM authenticated encryption and Argon2id
// key derivation for passphrase-based keys.
package cryptoutils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

// KeySize is the required symmetric key length in bytes (AES-256).
const KeySize = 32

// gcmNonceSize is the standard 12-byte nonce for AES-GCM.
const gcmNonceSize = 12

// EncryptWithKey encrypts data using AES-256-GCM with the given key.
// A fresh random nonce is generated for each call, so two encryptions of
// the same plaintext never produce equal output.
//
// Output format: [nonce (12 bytes)][ciphertext+tag].
func EncryptWithKey(key, data []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", KeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := make([]byte, gcmNonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return aesGCM.Seal(nonce, nonce, data, nil), nil
}

// DecryptWithKey decrypts data produced by EncryptWithKey using the same
// key. It fails if the data is malformed, truncated, or was encrypted
// under a different key (GCM authentication failure).
func DecryptWithKey(key, encryptedData []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", KeySize, len(key))
	}
	if len(encryptedData) < gcmNonceSize {
		return nil, errors.New("encrypted data too short")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	aesGCM, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce := encryptedData[:gcmNonceSize]
	ciphertext := encryptedData[gcmNonceSize:]

	plaintext, err := aesGCM.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}

	return plaintext, nil
}

// DeriveKeyFromPassphrase derives a 32-byte AES key from an operator
// passphrase using Argon2id. The same passphrase and salt always yield
// the same key, so tokens remain decryptable across restarts.
//
// Parameters: time=1, memory=64MB, threads=4.
func DeriveKeyFromPassphrase(passphrase, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, 1, 64*1024, 4, KeySize)
}

// NewRandomKey generates a fresh random 32-byte key.
func NewRandomKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return key, nil
}
