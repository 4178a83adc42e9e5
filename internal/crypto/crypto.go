// Package crypto implements the authenticated encryption engine that
// protects stored institution access tokens. It is pure: no persistence,
// no I/O beyond the system randomness source.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrEncrypt wraps every encryption failure.
	ErrEncrypt = errors.New("crypto: encrypt failed")
	// ErrDecrypt wraps every decryption failure, including authentication
	// failures from tampered data or a wrong key. No partial plaintext is
	// ever returned alongside it.
	ErrDecrypt = errors.New("crypto: decrypt failed")
)

const (
	keySize = 32 // AES-256
	ivSize  = 12 // 96-bit GCM nonce
)

// Payload carries one encrypted secret. Ciphertext includes the 128-bit GCM
// authentication tag. The IV is kept separate rather than prepended so the
// two survive as distinct store columns. Both are standard base64.
type Payload struct {
	Ciphertext string
	IV         string
}

// Encrypt seals the UTF-8 bytes of plaintext under the base64-encoded
// 256-bit key, generating a fresh random IV per call. Encrypting the same
// plaintext twice yields different payloads that both decrypt back to it.
func Encrypt(plaintext, keyB64 string) (Payload, error) {
	if plaintext == "" {
		return Payload{}, fmt.Errorf("%w: plaintext is required", ErrEncrypt)
	}

	gcm, err := newGCM(keyB64, ErrEncrypt)
	if err != nil {
		return Payload{}, err
	}

	iv := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return Payload{}, fmt.Errorf("%w: rand iv: %v", ErrEncrypt, err)
	}

	ciphertext := gcm.Seal(nil, iv, []byte(plaintext), nil)

	return Payload{
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
		IV:         base64.StdEncoding.EncodeToString(iv),
	}, nil
}

// Decrypt opens a payload sealed by Encrypt with the same key. Any missing
// input, malformed encoding, wrong key length, or authentication failure
// returns an error wrapping ErrDecrypt.
func Decrypt(p Payload, keyB64 string) (string, error) {
	if p.Ciphertext == "" || p.IV == "" {
		return "", fmt.Errorf("%w: ciphertext and iv are required", ErrDecrypt)
	}

	gcm, err := newGCM(keyB64, ErrDecrypt)
	if err != nil {
		return "", err
	}

	iv, err := base64.StdEncoding.DecodeString(p.IV)
	if err != nil {
		return "", fmt.Errorf("%w: decode iv: %v", ErrDecrypt, err)
	}
	if len(iv) != gcm.NonceSize() {
		return "", fmt.Errorf("%w: iv must be %d bytes, got %d", ErrDecrypt, gcm.NonceSize(), len(iv))
	}

	ciphertext, err := base64.StdEncoding.DecodeString(p.Ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: decode ciphertext: %v", ErrDecrypt, err)
	}

	plaintext, err := gcm.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: authentication failed", ErrDecrypt)
	}

	return string(plaintext), nil
}

// GenerateKey returns a fresh base64-encoded 256-bit random key.
func GenerateKey() (string, error) {
	key := make([]byte, keySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", fmt.Errorf("crypto: generate key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

// newGCM decodes and validates the key, then builds an AES-256-GCM AEAD.
// Failures wrap the provided sentinel so callers see the right taxonomy.
func newGCM(keyB64 string, sentinel error) (cipher.AEAD, error) {
	if keyB64 == "" {
		return nil, fmt.Errorf("%w: key is required", sentinel)
	}

	key, err := base64.StdEncoding.DecodeString(keyB64)
	if err != nil {
		return nil, fmt.Errorf("%w: decode key: %v", sentinel, err)
	}
	if len(key) != keySize {
		return nil, fmt.Errorf("%w: key must be %d bytes, got %d", sentinel, keySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: aes.NewCipher: %v", sentinel, err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, ivSize)
	if err != nil {
		return nil, fmt.Errorf("%w: cipher.NewGCM: %v", sentinel, err)
	}
	return gcm, nil
}
