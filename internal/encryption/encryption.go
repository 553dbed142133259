package encryption

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
)

// Encryptor seals provider secrets with XChaCha20-Poly1305. The 24-byte
// nonce is random per message and prefixed to the ciphertext.
type Encryptor struct {
	aead cipher.AEAD
}

// NewEncryptor creates an Encryptor from a 32-byte key (base64-encoded or raw).
// If key is empty, it generates a random key and returns it encoded.
func NewEncryptor(key string) (*Encryptor, string, error) {
	var keyBytes []byte

	if key == "" {
		keyBytes = make([]byte, chacha20poly1305.KeySize)
		if _, err := io.ReadFull(rand.Reader, keyBytes); err != nil {
			return nil, "", fmt.Errorf("generating encryption key: %w", err)
		}
		key = base64.StdEncoding.EncodeToString(keyBytes)
	} else {
		decoded, err := base64.StdEncoding.DecodeString(key)
		switch {
		case err == nil:
			keyBytes = decoded
		case len(key) == chacha20poly1305.KeySize:
			keyBytes = []byte(key)
		default:
			return nil, "", fmt.Errorf("decoding encryption key: %w", err)
		}
	}

	if len(keyBytes) != chacha20poly1305.KeySize {
		return nil, "", fmt.Errorf("encryption key must be %d bytes, got %d", chacha20poly1305.KeySize, len(keyBytes))
	}

	aead, err := chacha20poly1305.NewX(keyBytes)
	if err != nil {
		return nil, "", fmt.Errorf("creating cipher: %w", err)
	}
	return &Encryptor{aead: aead}, key, nil
}

// Encrypt returns base64(nonce || ciphertext).
func (e *Encryptor) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, e.aead.NonceSize(), e.aead.NonceSize()+len(plaintext)+e.aead.Overhead())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generating nonce: %w", err)
	}
	sealed := e.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt.
func (e *Encryptor) Decrypt(encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decoding ciphertext: %w", err)
	}
	ns := e.aead.NonceSize()
	if len(raw) < ns {
		return "", errors.New("ciphertext too short")
	}
	plaintext, err := e.aead.Open(nil, raw[:ns], raw[ns:], nil)
	if err != nil {
		return "", fmt.Errorf("decrypting: %w", err)
	}
	return string(plaintext), nil
}
