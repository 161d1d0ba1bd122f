package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptorDisabledPassesThrough(t *testing.T) {
	t.Setenv("QCHAT_ENABLE_ENCRYPTION", "false")

	enc, err := NewEncryptor()
	require.NoError(t, err)

	out, err := enc.EncryptIfEnabled("secret-token")
	require.NoError(t, err)
	assert.Equal(t, "secret-token", out)

	out, err = enc.DecryptIfEnabled("secret-token")
	require.NoError(t, err)
	assert.Equal(t, "secret-token", out)
}

func TestEncryptorRoundTrip(t *testing.T) {
	t.Setenv("QCHAT_ENABLE_ENCRYPTION", "true")
	t.Setenv("QCHAT_ENCRYPTION_SECRET", "0123456789abcdef0123456789abcdef")

	enc, err := NewEncryptor()
	require.NoError(t, err)

	ciphertext, err := enc.Encrypt("secret-token")
	require.NoError(t, err)
	assert.NotEqual(t, "secret-token", ciphertext)

	plaintext, err := enc.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, "secret-token", plaintext)

	// Nonces are random, so the same plaintext encrypts differently.
	other, err := enc.Encrypt("secret-token")
	require.NoError(t, err)
	assert.NotEqual(t, ciphertext, other)
}

func TestEncryptorRequiresSecret(t *testing.T) {
	t.Setenv("QCHAT_ENABLE_ENCRYPTION", "true")
	t.Setenv("QCHAT_ENCRYPTION_SECRET", "")

	_, err := NewEncryptor()
	require.Error(t, err)
}

func TestEncryptorRejectsWeakSecret(t *testing.T) {
	t.Setenv("QCHAT_ENABLE_ENCRYPTION", "true")
	t.Setenv("QCHAT_ENCRYPTION_SECRET", "too-short")

	_, err := NewEncryptor()
	require.Error(t, err)
}

func TestDecryptRejectsGarbage(t *testing.T) {
	t.Setenv("QCHAT_ENABLE_ENCRYPTION", "true")
	t.Setenv("QCHAT_ENCRYPTION_SECRET", "0123456789abcdef0123456789abcdef")

	enc, err := NewEncryptor()
	require.NoError(t, err)

	_, err = enc.Decrypt("not-base64!!!")
	require.Error(t, err)

	_, err = enc.Decrypt("c2hvcnQ=")
	require.Error(t, err)
}
