package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"strings"
)

var (
	ErrEncryption = errors.New("encryption failed")
	ErrDecryption = errors.New("decryption failed")
)

// sealedPrefix marks an encrypted field value. Values without it are
// treated as plaintext so records written before a key was configured
// still read back.
const sealedPrefix = "enc.v1:"

// FieldCipher encrypts individual document fields with AES-GCM. The
// 256-bit key is derived from the configured secret, so operators can
// use any passphrase length.
type FieldCipher struct {
	gcm cipher.AEAD
}

// NewFieldCipher builds a cipher from a secret passphrase. An empty
// secret returns (nil, nil); a nil *FieldCipher passes values through
// unchanged, so callers need no separate disabled path.
func NewFieldCipher(secret string) (*FieldCipher, error) {
	if secret == "" {
		return nil, nil
	}

	key := sha256.Sum256([]byte(secret))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, ErrEncryption
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, ErrEncryption
	}
	return &FieldCipher{gcm: gcm}, nil
}

// Seal encrypts value for storage. Already-sealed values are returned
// unchanged so repeated saves never double-encrypt.
func (c *FieldCipher) Seal(value string) (string, error) {
	if c == nil || value == "" || strings.HasPrefix(value, sealedPrefix) {
		return value, nil
	}

	nonce := make([]byte, c.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", ErrEncryption
	}
	sealed := c.gcm.Seal(nonce, nonce, []byte(value), nil)
	return sealedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a stored value. Plaintext values pass through.
func (c *FieldCipher) Open(value string) (string, error) {
	if c == nil || !strings.HasPrefix(value, sealedPrefix) {
		return value, nil
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, sealedPrefix))
	if err != nil {
		return "", ErrDecryption
	}
	nonceSize := c.gcm.NonceSize()
	if len(raw) < nonceSize {
		return "", ErrDecryption
	}
	plaintext, err := c.gcm.Open(nil, raw[:nonceSize], raw[nonceSize:], nil)
	if err != nil {
		return "", ErrDecryption
	}
	return string(plaintext), nil
}
