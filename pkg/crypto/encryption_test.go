package crypto

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	enc, err := NewEncryptor([]byte("test-secret"))
	if err != nil {
		t.Fatalf("NewEncryptor: %v", err)
	}

	tests := []string{
		"ya29.a0AfH6SMC-access-token",
		"short",
		"with spaces and symbols !@#$%^&*()",
		strings.Repeat("x", 4096),
		"유니코드 테스트",
	}

	for _, plaintext := range tests {
		ciphertext, err := enc.Encrypt(plaintext)
		if err != nil {
			t.Fatalf("Encrypt(%q): %v", plaintext, err)
		}
		if ciphertext == plaintext {
			t.Errorf("ciphertext equals plaintext for %q", plaintext)
		}

		decrypted, err := enc.Decrypt(ciphertext)
		if err != nil {
			t.Fatalf("Decrypt: %v", err)
		}
		if decrypted != plaintext {
			t.Errorf("round trip mismatch: got %q, want %q", decrypted, plaintext)
		}
	}
}

func TestEncryptEmptyString(t *testing.T) {
	enc, _ := NewEncryptor([]byte("test-secret"))

	ciphertext, err := enc.Encrypt("")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if ciphertext != "" {
		t.Errorf("empty plaintext should produce empty ciphertext, got %q", ciphertext)
	}

	plaintext, err := enc.Decrypt("")
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if plaintext != "" {
		t.Errorf("empty ciphertext should produce empty plaintext, got %q", plaintext)
	}
}

func TestEncryptNonceUniqueness(t *testing.T) {
	enc, _ := NewEncryptor([]byte("test-secret"))

	a, _ := enc.Encrypt("same plaintext")
	b, _ := enc.Encrypt("same plaintext")
	if a == b {
		t.Error("two encryptions of the same plaintext produced identical ciphertext")
	}
}

func TestDecryptWrongKey(t *testing.T) {
	enc1, _ := NewEncryptor([]byte("key-one"))
	enc2, _ := NewEncryptor([]byte("key-two"))

	ciphertext, _ := enc1.Encrypt("secret token")

	_, err := enc2.Decrypt(ciphertext)
	if !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("wrong key: got %v, want ErrDecryptionFailed", err)
	}
}

func TestDecryptTampered(t *testing.T) {
	enc, _ := NewEncryptor([]byte("test-secret"))

	ciphertext, _ := enc.Encrypt("secret token")
	raw, _ := base64.StdEncoding.DecodeString(ciphertext)
	raw[len(raw)-1] ^= 0xff
	tampered := base64.StdEncoding.EncodeToString(raw)

	_, err := enc.Decrypt(tampered)
	if !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("tampered ciphertext: got %v, want ErrDecryptionFailed", err)
	}
}

func TestDecryptInvalidInput(t *testing.T) {
	enc, _ := NewEncryptor([]byte("test-secret"))

	tests := []struct {
		name  string
		input string
	}{
		{"not base64", "!!!not-base64!!!"},
		{"truncated", base64.StdEncoding.EncodeToString([]byte("short"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := enc.Decrypt(tt.input)
			if !errors.Is(err, ErrInvalidCiphertext) {
				t.Errorf("got %v, want ErrInvalidCiphertext", err)
			}
		})
	}
}

func TestKeyDerivationFixedWidth(t *testing.T) {
	// Short secrets are zero-padded, long secrets truncated; a secret sharing
	// the first 32 bytes must decrypt blobs written by the other.
	long := strings.Repeat("k", 40)
	enc1, _ := NewEncryptor([]byte(long))
	enc2, _ := NewEncryptor([]byte(long[:32]))

	ciphertext, _ := enc1.Encrypt("payload")
	plaintext, err := enc2.Decrypt(ciphertext)
	if err != nil {
		t.Fatalf("Decrypt with truncated-equivalent key: %v", err)
	}
	if plaintext != "payload" {
		t.Errorf("got %q, want %q", plaintext, "payload")
	}
}

func TestIsEncrypted(t *testing.T) {
	enc, _ := NewEncryptor([]byte("test-secret"))
	ciphertext, _ := enc.Encrypt("token")

	if !IsEncrypted(ciphertext) {
		t.Error("ciphertext should be detected as encrypted")
	}
	if IsEncrypted("ya29.plain-token") {
		t.Error("plaintext token should not be detected as encrypted")
	}
	if IsEncrypted("") {
		t.Error("empty string should not be detected as encrypted")
	}
}
