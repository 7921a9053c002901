package crypto

import (
	"encoding/base64"
	"strings"
	"testing"

	"chatzam/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateKey(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)
	assert.Len(t, key, 44)

	decoded, err := base64.StdEncoding.DecodeString(key)
	require.NoError(t, err)
	assert.Len(t, decoded, KeySize)

	other, err := GenerateKey()
	require.NoError(t, err)
	assert.NotEqual(t, key, other)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	for _, plaintext := range []string{
		"hello world",
		"",
		"exactly sixteen.",
		"multi\nline\ncontent with unicode: héllo 世界",
	} {
		t.Run(plaintext, func(t *testing.T) {
			encoded, err := Encrypt(plaintext, key)
			require.NoError(t, err)

			parts := strings.Split(encoded, ":")
			require.Len(t, parts, 2)
			assert.Len(t, parts[0], 32) // 16-byte IV, hex-encoded

			decrypted, err := Decrypt(encoded, key)
			require.NoError(t, err)
			assert.Equal(t, plaintext, decrypted)
		})
	}
}

func TestEncryptUsesFreshIV(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	first, err := Encrypt("hello world", key)
	require.NoError(t, err)
	second, err := Encrypt("hello world", key)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)

	for _, encoded := range []string{first, second} {
		decrypted, err := Decrypt(encoded, key)
		require.NoError(t, err)
		assert.Equal(t, "hello world", decrypted)
	}
}

func TestDecryptMalformedEnvelope(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)

	cases := map[string]string{
		"no separator":    "deadbeef",
		"too many parts":  "aa:bb:cc",
		"bad iv hex":      "zz:deadbeef",
		"bad cipher hex":  strings.Repeat("ab", 16) + ":zz",
		"short iv":        "abcd:" + strings.Repeat("ab", 16),
		"unaligned bytes": strings.Repeat("ab", 16) + ":" + strings.Repeat("ab", 15),
	}
	for name, encoded := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decrypt(encoded, key)
			assert.Error(t, err)
			assert.True(t, models.IsEncryption(err))
		})
	}
}

func TestDecryptWrongKey(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)
	wrongKey, err := GenerateKey()
	require.NoError(t, err)

	encoded, err := Encrypt("secret message", key)
	require.NoError(t, err)

	decrypted, err := Decrypt(encoded, wrongKey)
	if err == nil {
		// CBC with a wrong key usually breaks the padding; when the
		// padding happens to survive, the plaintext must still differ.
		assert.NotEqual(t, "secret message", decrypted)
	} else {
		assert.True(t, models.IsEncryption(err))
	}
}

func TestEncryptRejectsBadKeys(t *testing.T) {
	_, err := Encrypt("hello", "not-base64!!")
	assert.True(t, models.IsEncryption(err))

	short := base64.StdEncoding.EncodeToString([]byte("too short"))
	_, err = Encrypt("hello", short)
	assert.True(t, models.IsEncryption(err))
}
