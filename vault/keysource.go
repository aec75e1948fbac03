package vault

import (
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	vaultapi "github.com/hashicorp/vault/api"

	"github.com/kingG4e/web-control-panel/cryptoutils"
)

// Environment variables consulted during key resolution.
const (
	// EnvSecretKey holds a hex-encoded 32-byte key. Preferred source.
	EnvSecretKey = "PANEL_SECRET_KEY"

	// EnvSecretPassphrase holds an operator passphrase from which the key
	// is derived with Argon2id.
	EnvSecretPassphrase = "PANEL_SECRET_PASSPHRASE"

	// EnvVaultAddr and EnvVaultToken configure an optional HashiCorp
	// Vault KV source consulted before falling back to the key file.
	EnvVaultAddr  = "PANEL_VAULT_ADDR"
	EnvVaultToken = "PANEL_VAULT_TOKEN"
)

// passphraseSalt fixes the Argon2id salt for passphrase-derived keys so
// the same passphrase yields the same key across restarts.
var passphraseSalt = []byte("web-control-panel.credential-vault")

// vaultKeyPath is the KV path read from a remote Vault server.
const vaultKeyPath = "secret/data/web-control-panel/vault-key"

// KeySourceConfig controls where the vault key is resolved from.
type KeySourceConfig struct {
	// KeyFile is the local key file used as the last resort. Created with
	// a fresh random key (mode 0600) on first use; the containing
	// directory is created if missing.
	KeyFile string

	// DisableRemote skips the HashiCorp Vault source even if the
	// environment configures one. Used in tests.
	DisableRemote bool
}

// ResolveKey resolves the process-wide vault key. Resolution order:
//
//  1. PANEL_SECRET_KEY (hex-encoded 32-byte key)
//  2. PANEL_SECRET_PASSPHRASE (Argon2id-derived)
//  3. HashiCorp Vault KV, if PANEL_VAULT_ADDR is set
//  4. the local key file, created on first use
//
// The resolved key is never logged.
func ResolveKey(cfg KeySourceConfig) ([]byte, error) {
	if encoded := os.Getenv(EnvSecretKey); encoded != "" {
		key, err := hex.DecodeString(encoded)
		if err != nil || len(key) != cryptoutils.KeySize {
			return nil, fmt.Errorf("%s must be %d hex-encoded bytes", EnvSecretKey, cryptoutils.KeySize)
		}
		return key, nil
	}

	if passphrase := os.Getenv(EnvSecretPassphrase); passphrase != "" {
		return cryptoutils.DeriveKeyFromPassphrase([]byte(passphrase), passphraseSalt), nil
	}

	if addr := os.Getenv(EnvVaultAddr); addr != "" && !cfg.DisableRemote {
		key, err := fetchRemoteKey(addr, os.Getenv(EnvVaultToken))
		if err != nil {
			return nil, fmt.Errorf("remote vault key source: %w", err)
		}
		return key, nil
	}

	if cfg.KeyFile == "" {
		return nil, errors.New("no key source configured")
	}
	return loadOrCreateKeyFile(cfg.KeyFile)
}

// fetchRemoteKey reads the key from a HashiCorp Vault KV v2 secret. The
// secret must contain a base64-encoded "key" field.
func fetchRemoteKey(addr, token string) ([]byte, error) {
	clientCfg := vaultapi.DefaultConfig()
	clientCfg.Address = addr

	client, err := vaultapi.NewClient(clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	client.SetToken(token)

	secret, err := client.Logical().Read(vaultKeyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", vaultKeyPath, err)
	}
	if secret == nil || secret.Data == nil {
		return nil, fmt.Errorf("no secret at %s", vaultKeyPath)
	}

	// KV v2 nests the payload under "data".
	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		data = secret.Data
	}

	encoded, ok := data["key"].(string)
	if !ok {
		return nil, errors.New("secret is missing the \"key\" field")
	}

	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || len(key) != cryptoutils.KeySize {
		return nil, errors.New("secret \"key\" field is not a base64-encoded 32-byte key")
	}
	return key, nil
}

// loadOrCreateKeyFile reads the key file, generating it with a fresh
// random key if absent.
func loadOrCreateKeyFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		key, decodeErr := hex.DecodeString(string(data))
		if decodeErr != nil || len(key) != cryptoutils.KeySize {
			return nil, fmt.Errorf("key file %s is corrupt", path)
		}
		return key, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create key directory: %w", err)
	}

	key, err := cryptoutils.NewRandomKey()
	if err != nil {
		return nil, err
	}

	if err := os.WriteFile(path, []byte(hex.EncodeToString(key)), 0600); err != nil {
		return nil, fmt.Errorf("failed to write key file: %w", err)
	}
	return key, nil
}
