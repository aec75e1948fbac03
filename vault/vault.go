// Package vault implements the credential vault owning symmetric
// encryption of secrets stored at rest. Every secret persisted by the
// signup store passes through this package; no other component holds key
// material or decrypts tokens.
package vault

import (
	"encoding/base64"
	"errors"
	"strings"

	"github.com/kingG4e/web-control-panel/cryptoutils"
	"github.com/kingG4e/web-control-panel/interfaces"
)

// tokenPrefix versions the token format so the scheme can evolve without
// breaking stored credentials.
const tokenPrefix = "pv1."

// CredentialVault encrypts and decrypts credential tokens with a
// process-wide AES-256 key. See ResolveKey for how the key is obtained.
type CredentialVault struct {
	key []byte
}

// New creates a vault with the given 32-byte key. Use NewFromEnvironment
// for the standard key resolution order.
func New(key []byte) (*CredentialVault, error) {
	if len(key) != cryptoutils.KeySize {
		return nil, errors.New("vault key must be 32 bytes")
	}
	v := &CredentialVault{key: make([]byte, len(key))}
	copy(v.key, key)
	return v, nil
}

// NewFromEnvironment creates a vault with a key resolved from the process
// environment, a remote Vault server, or a local key file, in that order.
// The key file is created with a fresh random key on first use.
func NewFromEnvironment(cfg KeySourceConfig) (*CredentialVault, error) {
	key, err := ResolveKey(cfg)
	if err != nil {
		return nil, err
	}
	return New(key)
}

// Encrypt seals plaintext into an opaque token. Tokens differ between
// calls for the same plaintext; callers must not compare them.
func (v *CredentialVault) Encrypt(plaintext []byte) (interfaces.Token, error) {
	sealed, err := cryptoutils.EncryptWithKey(v.key, plaintext)
	if err != nil {
		return "", &interfaces.CryptoError{Op: "encrypt", Err: err}
	}
	return interfaces.Token(tokenPrefix + base64.RawURLEncoding.EncodeToString(sealed)), nil
}

// Decrypt opens a token produced by Encrypt. A malformed token, or one
// produced under a different key, yields a CryptoError. Callers that need
// the secret for provisioning must abort and report the affected step,
// not skip it.
func (v *CredentialVault) Decrypt(token interfaces.Token) ([]byte, error) {
	raw, ok := strings.CutPrefix(string(token), tokenPrefix)
	if !ok {
		return nil, &interfaces.CryptoError{Op: "decrypt", Err: errors.New("unrecognized token format")}
	}

	sealed, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return nil, &interfaces.CryptoError{Op: "decrypt", Err: errors.New("malformed token encoding")}
	}

	plaintext, err := cryptoutils.DecryptWithKey(v.key, sealed)
	if err != nil {
		return nil, &interfaces.CryptoError{Op: "decrypt", Err: errors.New("authentication failed")}
	}
	return plaintext, nil
}
