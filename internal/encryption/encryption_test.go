package encryption

import (
	"encoding/base64"
	"strings"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	enc, key, err := NewEncryptor("")
	if err != nil {
		t.Fatalf("NewEncryptor: %v", err)
	}
	if key == "" {
		t.Fatal("expected generated key")
	}

	sealed, err := enc.Encrypt("lastfm-secret")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if strings.Contains(sealed, "lastfm-secret") {
		t.Error("ciphertext contains plaintext")
	}

	got, err := enc.Decrypt(sealed)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if got != "lastfm-secret" {
		t.Errorf("Decrypt = %q, want %q", got, "lastfm-secret")
	}
}

func TestReuseGeneratedKey(t *testing.T) {
	first, key, err := NewEncryptor("")
	if err != nil {
		t.Fatalf("NewEncryptor: %v", err)
	}
	sealed, err := first.Encrypt("abc")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	second, _, err := NewEncryptor(key)
	if err != nil {
		t.Fatalf("NewEncryptor(key): %v", err)
	}
	got, err := second.Decrypt(sealed)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if got != "abc" {
		t.Errorf("Decrypt = %q, want abc", got)
	}
}

func TestNonceIsRandom(t *testing.T) {
	enc, _, _ := NewEncryptor("")
	a, _ := enc.Encrypt("same")
	b, _ := enc.Encrypt("same")
	if a == b {
		t.Error("expected distinct ciphertexts for identical plaintexts")
	}
}

func TestRawKey(t *testing.T) {
	if _, _, err := NewEncryptor(strings.Repeat("k!", 16)); err != nil {
		t.Fatalf("raw 32-byte key rejected: %v", err)
	}
}

func TestBadKeyLength(t *testing.T) {
	short := base64.StdEncoding.EncodeToString([]byte("too-short"))
	if _, _, err := NewEncryptor(short); err == nil {
		t.Fatal("expected error for short key")
	}
}

func TestDecryptTampered(t *testing.T) {
	enc, _, _ := NewEncryptor("")
	sealed, _ := enc.Encrypt("payload")
	raw, _ := base64.StdEncoding.DecodeString(sealed)
	raw[len(raw)-1] ^= 0xff
	if _, err := enc.Decrypt(base64.StdEncoding.EncodeToString(raw)); err == nil {
		t.Fatal("expected error for tampered ciphertext")
	}
	if _, err := enc.Decrypt("@@not-base64@@"); err == nil {
		t.Fatal("expected error for invalid base64")
	}
}
