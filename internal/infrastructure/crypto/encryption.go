// Package crypto protects secrets stored in configuration.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/wekeepgrowing/settlement-service/internal/config"
)

// adminKeyAAD binds sealed admin keys to their purpose.
var adminKeyAAD = []byte("settlement/admin-wallet-key")

type SecretBox interface {
	Seal(plaintext string) (ciphertext, iv string, err error)
	Open(ciphertext, iv string) (plaintext string, err error)
}

// AESSecretBox is AES-256-GCM with base64 ciphertext and nonce.
type AESSecretBox struct {
	aead cipher.AEAD
}

// NewAESSecretBox creates a box from a 64 hex char key
func NewAESSecretBox(hexKey string) (*AESSecretBox, error) {
	key, err := hex.DecodeString(strings.TrimSpace(hexKey))
	if err != nil {
		return nil, errors.New("invalid encryption key format")
	}
	if len(key) != 32 {
		return nil, errors.New("encryption key must be 32 bytes (64 hex chars)")
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &AESSecretBox{aead: aead}, nil
}

func (s *AESSecretBox) Seal(plaintext string) (string, string, error) {
	iv := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", "", err
	}

	ciphertext := s.aead.Seal(nil, iv, []byte(plaintext), adminKeyAAD)

	return base64.StdEncoding.EncodeToString(ciphertext),
		base64.StdEncoding.EncodeToString(iv),
		nil
}

func (s *AESSecretBox) Open(ciphertextB64, ivB64 string) (string, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(ciphertextB64)
	if err != nil {
		return "", fmt.Errorf("invalid ciphertext encoding: %w", err)
	}

	iv, err := base64.StdEncoding.DecodeString(ivB64)
	if err != nil {
		return "", fmt.Errorf("invalid iv encoding: %w", err)
	}
	if len(iv) != s.aead.NonceSize() {
		return "", fmt.Errorf("iv must be %d bytes", s.aead.NonceSize())
	}

	plaintext, err := s.aead.Open(nil, iv, ciphertext, adminKeyAAD)
	if err != nil {
		return "", errors.New("failed to decrypt secret")
	}

	return string(plaintext), nil
}

// AdminPrivateKey returns the admin wallet key, opening the sealed form when
// present. An empty result with no error means no key is configured.
func AdminPrivateKey(cfg config.PayoutConfig) (string, error) {
	if cfg.AdminPrivateKeyCiphertext == "" {
		return strings.TrimSpace(cfg.AdminPrivateKey), nil
	}
	if cfg.KeyEncryptionKey == "" {
		return "", errors.New("KEY_ENCRYPTION_KEY is required to open the encrypted admin key")
	}

	box, err := NewAESSecretBox(cfg.KeyEncryptionKey)
	if err != nil {
		return "", err
	}

	ciphertext, iv := cfg.AdminPrivateKeyCiphertext, cfg.AdminPrivateKeyIV
	// Accept "iv:ciphertext" in a single variable
	if iv == "" {
		parts := strings.SplitN(ciphertext, ":", 2)
		if len(parts) != 2 {
			return "", errors.New("encrypted admin key needs an iv")
		}
		iv, ciphertext = parts[0], parts[1]
	}

	return box.Open(ciphertext, iv)
}
