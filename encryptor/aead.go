package encryptor

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// AEAD is a reference Encryptor backed by ChaCha20-Poly1305. A passphrase
// is stretched to a 32-byte key via HKDF-SHA256; ciphertext is
// base64(nonce || sealed).
type AEAD struct {
	key [chacha20poly1305.KeySize]byte
}

// NewAEAD derives an encryption key from passphrase via HKDF-SHA256 with
// the given salt (use a fixed, app-specific salt so the same passphrase
// always derives the same key).
func NewAEAD(passphrase, salt string) (*AEAD, error) {
	if passphrase == "" {
		return nil, errors.New("encryptor: passphrase must not be empty")
	}
	kdf := hkdf.New(sha256.New, []byte(passphrase), []byte(salt), []byte("nfig-aead"))
	a := &AEAD{}
	if _, err := io.ReadFull(kdf, a.key[:]); err != nil {
		return nil, fmt.Errorf("encryptor: derive key: %w", err)
	}
	return a, nil
}

func (a *AEAD) CanDecrypt() bool { return true }

func (a *AEAD) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	aead, err := chacha20poly1305.New(a.key[:])
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("encryptor: generate nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (a *AEAD) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("encryptor: decode ciphertext: %w", err)
	}
	aead, err := chacha20poly1305.New(a.key[:])
	if err != nil {
		return "", err
	}
	if len(raw) < aead.NonceSize() {
		return "", errors.New("encryptor: ciphertext too short")
	}
	nonce, sealed := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("encryptor: decrypt: %w", err)
	}
	return string(plaintext), nil
}
