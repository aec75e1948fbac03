package vault

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kingG4e/web-control-panel/cryptoutils"
	"github.com/kingG4e/web-control-panel/interfaces"
)

func newTestVault(t *testing.T) *CredentialVault {
	t.Helper()
	key, err := cryptoutils.NewRandomKey()
	require.NoError(t, err)
	v, err := New(key)
	require.NoError(t, err)
	return v
}

func TestEncryptDecryptRoundtrip(t *testing.T) {
	v := newTestVault(t)

	testCases := []struct {
		name string
		data []byte
	}{
		{name: "password", data: []byte("hunter2")},
		{name: "unicode", data: []byte("pässwörd-ñ")},
		{name: "binary", data: []byte{0x00, 0xFF, 0x10, 0x80}},
		{name: "long", data: make([]byte, 2048)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			token, err := v.Encrypt(tc.data)
			require.NoError(t, err)

			plaintext, err := v.Decrypt(token)
			require.NoError(t, err)
			require.Equal(t, tc.data, plaintext)
		})
	}
}

func TestTokensAreNotDeterministic(t *testing.T) {
	v := newTestVault(t)

	first, err := v.Encrypt([]byte("same secret"))
	require.NoError(t, err)
	second, err := v.Encrypt([]byte("same secret"))
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

// TestDecryptForeignToken verifies a token produced under a different key
// fails with a CryptoError rather than yielding garbage.
func TestDecryptForeignToken(t *testing.T) {
	v1 := newTestVault(t)
	v2 := newTestVault(t)

	token, err := v1.Encrypt([]byte("secret"))
	require.NoError(t, err)

	_, err = v2.Decrypt(token)
	require.Error(t, err)

	var cryptoErr *interfaces.CryptoError
	require.ErrorAs(t, err, &cryptoErr)
}

func TestDecryptMalformedToken(t *testing.T) {
	v := newTestVault(t)

	for _, token := range []interfaces.Token{
		"",
		"not-a-token",
		"pv1.",
		"pv1.%%%not-base64%%%",
		"pv1.dG9vc2hvcnQ",
	} {
		_, err := v.Decrypt(token)
		require.Error(t, err, "token %q should not decrypt", token)

		var cryptoErr *interfaces.CryptoError
		assert.ErrorAs(t, err, &cryptoErr)
	}
}

func TestKeyFileCreatedOnFirstUse(t *testing.T) {
	keyFile := filepath.Join(t.TempDir(), "keys", "vault.key")

	key1, err := ResolveKey(KeySourceConfig{KeyFile: keyFile, DisableRemote: true})
	require.NoError(t, err)
	require.Len(t, key1, cryptoutils.KeySize)

	// Second resolution reads the same key back.
	key2, err := ResolveKey(KeySourceConfig{KeyFile: keyFile, DisableRemote: true})
	require.NoError(t, err)
	assert.Equal(t, key1, key2)

	info, err := os.Stat(keyFile)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestEnvKeyPreferredOverKeyFile(t *testing.T) {
	t.Setenv(EnvSecretKey, "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f")

	key, err := ResolveKey(KeySourceConfig{KeyFile: filepath.Join(t.TempDir(), "unused.key"), DisableRemote: true})
	require.NoError(t, err)
	assert.Equal(t, byte(0x00), key[0])
	assert.Equal(t, byte(0x1f), key[31])
}

func TestEnvPassphraseDerivation(t *testing.T) {
	t.Setenv(EnvSecretKey, "")
	t.Setenv(EnvSecretPassphrase, "correct horse battery staple")

	key1, err := ResolveKey(KeySourceConfig{DisableRemote: true})
	require.NoError(t, err)
	key2, err := ResolveKey(KeySourceConfig{DisableRemote: true})
	require.NoError(t, err)
	assert.Equal(t, key1, key2)
}

func TestInvalidEnvKeyRejected(t *testing.T) {
	t.Setenv(EnvSecretKey, "deadbeef")

	_, err := ResolveKey(KeySourceConfig{DisableRemote: true})
	require.Error(t, err)
}
