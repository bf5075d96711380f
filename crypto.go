package lime

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"github.com/pkg/errors"
	"io"
	"strings"
)

var ErrInvalidKeySize = errors.New("encryption key must be 32 bytes")
var ErrDecryptionFailed = errors.New("decryption failed")

const (
	// KeySize is the AES-256 key length in bytes.
	KeySize = 32
	// NonceSize is the GCM nonce length prepended to every ciphertext.
	NonceSize = 12
)

// Crypto seals and opens table snapshots with AES-256-GCM. A wrong key and a
// tampered ciphertext are indistinguishable, both fail authentication.
type Crypto struct {
	aead cipher.AEAD
}

func NewCrypto(key []byte) (*Crypto, error) {
	if len(key) != KeySize {
		return nil, errors.Wrapf(ErrInvalidKeySize, "got %d bytes", len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, "could not initialize cipher")
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Wrap(err, "could not initialize gcm")
	}

	return &Crypto{aead: aead}, nil
}

// Encrypt returns nonce || ciphertext. A fresh random nonce is drawn on every
// call and is never reused.
func (c *Crypto) Encrypt(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, errors.Wrap(err, "could not generate nonce")
	}

	return c.aead.Seal(nonce, nonce, plaintext, nil), nil
}

func (c *Crypto) Decrypt(data []byte) ([]byte, error) {
	if len(data) < NonceSize {
		return nil, errors.Wrapf(ErrDecryptionFailed, "ciphertext is only %d bytes", len(data))
	}

	nonce, ciphertext := data[:NonceSize], data[NonceSize:]

	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, errors.Wrap(ErrDecryptionFailed, err.Error())
	}

	return plaintext, nil
}

// GenerateKey returns a fresh random 256 bit key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, errors.Wrap(err, "could not generate key")
	}

	return key, nil
}

// ParseKey decodes a hex encoded encryption key.
func ParseKey(hexKey string) ([]byte, error) {
	key, err := hex.DecodeString(strings.TrimSpace(hexKey))
	if err != nil {
		return nil, errors.Wrap(ErrInvalidConfig, "encryption key is not valid hex")
	}

	if len(key) != KeySize {
		return nil, errors.Wrapf(ErrInvalidKeySize, "got %d bytes", len(key))
	}

	return key, nil
}
