package crypto

import (
	"errors"
	"strings"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	secret := "bybit-api-secret-XXXXXXXX"

	ciphertext, err := Encrypt(secret, key)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if ciphertext == secret {
		t.Fatal("ciphertext equals plaintext")
	}

	plaintext, err := Decrypt(ciphertext, key)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if plaintext != secret {
		t.Errorf("plaintext = %q, want %q", plaintext, secret)
	}
}

func TestEncryptRejectsShortKey(t *testing.T) {
	_, err := Encrypt("secret", []byte("too short"))
	if !errors.Is(err, ErrInvalidKeyLength) {
		t.Errorf("error = %v, want ErrInvalidKeyLength", err)
	}
}

func TestDecryptWithWrongKeyFails(t *testing.T) {
	key1, _ := GenerateKey()
	key2, _ := GenerateKey()

	ciphertext, err := Encrypt("secret", key1)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}

	_, err = Decrypt(ciphertext, key2)
	if !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("error = %v, want ErrDecryptionFailed", err)
	}
}

func TestDecryptGarbage(t *testing.T) {
	key, _ := GenerateKey()

	if _, err := Decrypt("not base64 !!!", key); err == nil {
		t.Error("expected error for invalid base64")
	}
	if _, err := Decrypt("YWJj", key); !errors.Is(err, ErrCiphertextTooShort) {
		t.Errorf("error = %v, want ErrCiphertextTooShort", err)
	}
}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("terminal-pass")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}

	if err := VerifyPassword("terminal-pass", hash); err != nil {
		t.Errorf("VerifyPassword with correct password: %v", err)
	}
	if err := VerifyPassword("wrong", hash); !errors.Is(err, ErrPasswordMismatch) {
		t.Errorf("error = %v, want ErrPasswordMismatch", err)
	}
}

func TestHashPasswordValidation(t *testing.T) {
	if _, err := HashPassword(""); !errors.Is(err, ErrEmptyPassword) {
		t.Errorf("empty password: error = %v, want ErrEmptyPassword", err)
	}

	long := strings.Repeat("a", 73)
	if _, err := HashPassword(long); !errors.Is(err, ErrPasswordTooLong) {
		t.Errorf("long password: error = %v, want ErrPasswordTooLong", err)
	}
}
