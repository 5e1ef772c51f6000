package cryptoutil

import (
	"encoding/base64"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T, fill byte) []byte {
	t.Helper()
	key := make([]byte, 32)
	for i := range key {
		key[i] = fill + byte(i)
	}
	return key
}

func TestAESGCMEncryptor_RoundTrip(t *testing.T) {
	enc, err := NewAESGCMEncryptor(testKey(t, 0))
	require.NoError(t, err)

	plaintext := []byte("refresh-token-abc123")
	ciphertext, err := enc.Encrypt(plaintext)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(ciphertext, "v1:"))
	assert.NotContains(t, ciphertext, string(plaintext))

	decrypted, err := enc.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestAESGCMEncryptor_FreshNoncePerValue(t *testing.T) {
	enc, err := NewAESGCMEncryptor(testKey(t, 0))
	require.NoError(t, err)

	first, err := enc.Encrypt([]byte("same secret"))
	require.NoError(t, err)
	second, err := enc.Encrypt([]byte("same secret"))
	require.NoError(t, err)

	assert.NotEqual(t, first, second, "equal plaintexts must not produce equal ciphertexts")
}

func TestAESGCMEncryptor_WrongKeyFailsToDecrypt(t *testing.T) {
	enc, err := NewAESGCMEncryptor(testKey(t, 0))
	require.NoError(t, err)
	other, err := NewAESGCMEncryptor(testKey(t, 100))
	require.NoError(t, err)

	ciphertext, err := enc.Encrypt([]byte("secret"))
	require.NoError(t, err)

	_, err = other.Decrypt(ciphertext)
	require.Error(t, err)
}

func TestAESGCMEncryptor_TamperedCiphertextRejected(t *testing.T) {
	enc, err := NewAESGCMEncryptor(testKey(t, 0))
	require.NoError(t, err)

	ciphertext, err := enc.Encrypt([]byte("secret"))
	require.NoError(t, err)

	sealed, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(ciphertext, "v1:"))
	require.NoError(t, err)
	sealed[len(sealed)-1] ^= 0x01

	_, err = enc.Decrypt("v1:" + base64.StdEncoding.EncodeToString(sealed))
	require.Error(t, err)
}

func TestAESGCMEncryptor_OpensNoopValues(t *testing.T) {
	// Sessions written before a key was configured carry noop values;
	// they must stay readable after the key arrives.
	enc, err := NewAESGCMEncryptor(testKey(t, 0))
	require.NoError(t, err)

	plaintext := []byte("pre-key refresh token")
	stored, err := NoopEncryptor{}.Encrypt(plaintext)
	require.NoError(t, err)

	decrypted, err := enc.Decrypt(stored)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestNewAESGCMEncryptor_RejectsBadKeyLengths(t *testing.T) {
	for _, size := range []int{0, 16, 24, 31, 33, 64} {
		t.Run(fmt.Sprintf("%d bytes", size), func(t *testing.T) {
			_, err := NewAESGCMEncryptor(make([]byte, size))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "must be 32 bytes")
		})
	}
}

func TestAESGCMEncryptor_RejectsMalformedCiphertext(t *testing.T) {
	enc, err := NewAESGCMEncryptor(testKey(t, 0))
	require.NoError(t, err)

	t.Run("unknown version", func(t *testing.T) {
		_, err := enc.Decrypt("v2:somedata")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown ciphertext version")
	})

	t.Run("invalid base64", func(t *testing.T) {
		_, err := enc.Decrypt("v1:!!!invalid!!!")
		require.Error(t, err)
	})

	t.Run("shorter than a nonce", func(t *testing.T) {
		_, err := enc.Decrypt("v1:" + base64.StdEncoding.EncodeToString([]byte("x")))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "ciphertext too short")
	})
}

func TestNoopEncryptor(t *testing.T) {
	enc := NoopEncryptor{}

	plaintext := []byte("test value")
	ciphertext, err := enc.Encrypt(plaintext)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(ciphertext, "noop:"))

	decrypted, err := enc.Decrypt(ciphertext)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)

	_, err = enc.Decrypt("v1:somedata")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid noop ciphertext")
}
