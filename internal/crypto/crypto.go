// Package crypto provides the per-conversation symmetric encryption
// primitives: 256-bit key generation and AES-CBC encryption with the
// "ivHex:cipherHex" envelope stored in message documents.
package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"chatzam/internal/models"
)

const (
	// KeySize is the size of AES-256 keys in bytes.
	KeySize = 32

	// IVSize is the size of CBC initialization vectors in bytes.
	IVSize = aes.BlockSize
)

// GenerateKey returns a fresh random 256-bit key, base64-encoded (44
// characters, no padding stripped).
func GenerateKey() (string, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", models.NewEncryptionError("key generation failed", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

// Encrypt encrypts plaintext with AES-256-CBC under the base64-encoded key
// and returns "ivHex:cipherHex". A fresh random IV is generated per call;
// an IV is never reused with the same key.
func Encrypt(plaintext, base64Key string) (string, error) {
	block, err := cipherForKey(base64Key)
	if err != nil {
		return "", err
	}

	iv := make([]byte, IVSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", models.NewEncryptionError("IV generation failed", err)
	}

	padded := pkcs5Pad([]byte(plaintext), aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return hex.EncodeToString(iv) + ":" + hex.EncodeToString(ciphertext), nil
}

// Decrypt reverses Encrypt. It fails with a typed encryption error when the
// envelope is not exactly two ':'-separated hex parts or the cipher rejects
// the key, IV, or padding.
func Decrypt(encoded, base64Key string) (string, error) {
	parts := strings.Split(encoded, ":")
	if len(parts) != 2 {
		return "", models.NewEncryptionError("invalid encrypted data format", nil)
	}

	iv, err := hex.DecodeString(parts[0])
	if err != nil {
		return "", models.NewEncryptionError("malformed IV hex", err)
	}
	ciphertext, err := hex.DecodeString(parts[1])
	if err != nil {
		return "", models.NewEncryptionError("malformed ciphertext hex", err)
	}
	if len(iv) != IVSize {
		return "", models.NewEncryptionError(fmt.Sprintf("invalid IV length %d", len(iv)), nil)
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return "", models.NewEncryptionError("ciphertext is not block-aligned", nil)
	}

	block, err := cipherForKey(base64Key)
	if err != nil {
		return "", err
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	unpadded, err := pkcs5Unpad(plaintext, aes.BlockSize)
	if err != nil {
		return "", models.NewEncryptionError("decryption failed", err)
	}
	return string(unpadded), nil
}

func cipherForKey(base64Key string) (cipher.Block, error) {
	key, err := base64.StdEncoding.DecodeString(base64Key)
	if err != nil {
		return nil, models.NewEncryptionError("malformed base64 key", err)
	}
	if len(key) != KeySize {
		return nil, models.NewEncryptionError(fmt.Sprintf("invalid key length %d", len(key)), nil)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, models.NewEncryptionError("cipher initialization failed", err)
	}
	return block, nil
}

func pkcs5Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(padding)}, padding)...)
}

func pkcs5Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("invalid padded length %d", len(data))
	}
	padding := int(data[len(data)-1])
	if padding == 0 || padding > blockSize {
		return nil, fmt.Errorf("invalid padding byte %d", padding)
	}
	for _, b := range data[len(data)-padding:] {
		if int(b) != padding {
			return nil, fmt.Errorf("inconsistent padding")
		}
	}
	return data[:len(data)-padding], nil
}
