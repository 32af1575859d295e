// internal/utils/crypto.go
package utils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
)

// encryptedPrefix marks values produced by EncryptSecret so plain values
// written by hand into config files are still accepted.
const encryptedPrefix = "enc:"

func newGCM(key string) (cipher.AEAD, error) {
	sum := sha256.Sum256([]byte(key))
	block, err := aes.NewCipher(sum[:])
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Encrypt encrypts the plaintext using AES-GCM with a key derived from key.
func Encrypt(plaintext, key string) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err = io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

// Decrypt reverses Encrypt.
func Decrypt(ciphertext, key string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", err
	}

	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(raw) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, body := raw[:nonceSize], raw[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, body, nil)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}

// EncryptSecret encrypts value for storage at rest. An empty key or value
// is returned unchanged.
func EncryptSecret(value, key string) (string, error) {
	if key == "" || value == "" || strings.HasPrefix(value, encryptedPrefix) {
		return value, nil
	}
	out, err := Encrypt(value, key)
	if err != nil {
		return "", err
	}
	return encryptedPrefix + out, nil
}

// DecryptSecret undoes EncryptSecret. Values without the prefix are plain.
func DecryptSecret(value, key string) (string, error) {
	if !strings.HasPrefix(value, encryptedPrefix) {
		return value, nil
	}
	if key == "" {
		return "", fmt.Errorf("encrypted secret found but no encryption key configured")
	}
	return Decrypt(strings.TrimPrefix(value, encryptedPrefix), key)
}
