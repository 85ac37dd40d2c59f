package crypto

import (
	"bytes"
	"encoding/base64"
	"errors"
	"testing"
)

var testKey = []byte("12345678901234567890123456789012")

func TestEncryptDecrypt(t *testing.T) {
	tests := []struct {
		name      string
		plaintext string
	}{
		{
			name:      "profile record",
			plaintext: `{"firstName":"Ada","email":"ada@example.com"}`,
		},
		{
			name:      "empty",
			plaintext: "",
		},
		{
			name:      "unicode text",
			plaintext: `{"city":"Zürich","coverLetter":"こんにちは"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encrypted, err := Encrypt([]byte(tt.plaintext), testKey)
			if err != nil {
				t.Fatalf("Encrypt() error = %v", err)
			}

			if tt.plaintext != "" && encrypted == tt.plaintext {
				t.Error("Encrypt() returned plaintext without encryption")
			}

			decrypted, err := Decrypt(encrypted, testKey)
			if err != nil {
				t.Fatalf("Decrypt() error = %v", err)
			}

			if string(decrypted) != tt.plaintext {
				t.Errorf("Decrypt() = %q, want %q", decrypted, tt.plaintext)
			}
		})
	}
}

func TestEncrypt_Nonce(t *testing.T) {
	a, err := Encrypt([]byte("same"), testKey)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Encrypt([]byte("same"), testKey)
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Error("Encrypt() produced identical ciphertexts for the same input")
	}
}

func TestInvalidKey(t *testing.T) {
	for _, key := range [][]byte{[]byte("short"), make([]byte, 64), {}} {
		if _, err := Encrypt([]byte("x"), key); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("Encrypt() with %d byte key error = %v, want %v", len(key), err, ErrInvalidKey)
		}
		if _, err := Decrypt("eA==", key); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("Decrypt() with %d byte key error = %v, want %v", len(key), err, ErrInvalidKey)
		}
	}
}

func TestDecrypt_InvalidCiphertext(t *testing.T) {
	tests := []struct {
		name       string
		ciphertext string
		wantErr    error
	}{
		{
			name:       "not base64",
			ciphertext: "not-valid-base64!!!",
			wantErr:    ErrInvalidCiphertext,
		},
		{
			name:       "shorter than nonce",
			ciphertext: base64.StdEncoding.EncodeToString([]byte("short")),
			wantErr:    ErrInvalidCiphertext,
		},
		{
			name:       "tampered",
			ciphertext: base64.StdEncoding.EncodeToString(bytes.Repeat([]byte("x"), 40)),
			wantErr:    ErrDecryptionFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decrypt(tt.ciphertext, testKey)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Decrypt() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestDecrypt_WrongKey(t *testing.T) {
	encrypted, err := Encrypt([]byte("secret"), testKey)
	if err != nil {
		t.Fatal(err)
	}

	wrong := []byte("abcdefghijklmnopqrstuvwxyz123456")
	if _, err := Decrypt(encrypted, wrong); !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("Decrypt() with wrong key error = %v, want %v", err, ErrDecryptionFailed)
	}
}

func TestParseKey(t *testing.T) {
	raw := "abcdefghijklmnopqrstuvwxyz123456"
	encoded := base64.StdEncoding.EncodeToString(testKey)

	tests := []struct {
		name    string
		key     string
		want    []byte
		wantErr bool
	}{
		{name: "base64", key: encoded, want: testKey},
		{name: "raw", key: raw, want: []byte(raw)},
		{name: "too short", key: "short", wantErr: true},
		{name: "empty", key: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseKey(tt.key)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidKey) {
					t.Errorf("ParseKey() error = %v, want %v", err, ErrInvalidKey)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseKey() error = %v", err)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("ParseKey() = %q, want %q", got, tt.want)
			}
		})
	}
}
