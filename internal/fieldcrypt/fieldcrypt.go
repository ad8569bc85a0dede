// Package fieldcrypt encrypts individual text columns at rest. The codec is
// applied by the repositories when writing and reading, so everything above
// the store works with plaintext.
package fieldcrypt

import (
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

const KeySize = chacha20poly1305.KeySize

var ErrMalformedCiphertext = errors.New("malformed ciphertext")

type Codec interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// XChaChaCodec seals each value with XChaCha20-Poly1305 under a random
// 24 byte nonce and stores base64(nonce || ciphertext). The empty string is
// stored as-is so optional fields stay empty.
type XChaChaCodec struct {
	aead cipher.AEAD
}

func NewXChaChaCodec(key []byte) (*XChaChaCodec, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("field key must be %d bytes, got %d", KeySize, len(key))
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("new aead: %w", err)
	}

	return &XChaChaCodec{aead: aead}, nil
}

func (c *XChaChaCodec) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(plaintext)+c.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("read nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (c *XChaChaCodec) Decrypt(ciphertext string) (string, error) {
	if ciphertext == "" {
		return "", nil
	}

	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedCiphertext, err)
	}

	if len(raw) < c.aead.NonceSize()+c.aead.Overhead() {
		return "", ErrMalformedCiphertext
	}

	nonce, sealed := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	plain, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("open: %w", err)
	}

	return string(plain), nil
}

// NopCodec stores values unchanged.
type NopCodec struct{}

func (NopCodec) Encrypt(plaintext string) (string, error)  { return plaintext, nil }
func (NopCodec) Decrypt(ciphertext string) (string, error) { return ciphertext, nil }
